package gatekeeper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"
	"request-gatekeeper/middleware/gatekeeper/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCaller = "client_0123456789ab"
	testSecret = "topsecret-shared-key"
)

func newTestGatekeeper(t *testing.T, maxRequests int, allow ...string) *application.Gatekeeper {
	t.Helper()
	creds, err := infra.NewMemoryCredentialStore([]domain.Credential{
		{ID: testCaller, Secret: []byte(testSecret), Enabled: true},
	})
	require.NoError(t, err)
	if len(allow) == 0 {
		allow = []string{"192.0.2.0/24"} // RemoteAddr padrão do httptest
	}
	patterns, err := application.ParsePatterns(allow)
	require.NoError(t, err)

	return application.New(&application.Policy{
		Credentials: creds,
		Patterns:    patterns,
		DefaultRule: &domain.Rule{Name: "default", MaxRequests: maxRequests, Window: time.Minute},
	}, infra.NewWindowStore(), application.WithLogger(zerolog.Nop()))
}

func signedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rd)
	ts := time.Now().Unix()
	sig := application.SignatureVerifier{}.ExpectedSignature(method, r.URL.RequestURI(), []byte(body), ts, testCaller, []byte(testSecret))
	r.Header.Set(HeaderAPIKey, testCaller)
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderSignature, sig)
	return r
}

func decodeRejection(t *testing.T, w *httptest.ResponseRecorder) domain.Rejection {
	t.Helper()
	var rej domain.Rejection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rej))
	return rej
}

func TestMiddleware_AdmitsSignedRequest(t *testing.T) {
	g := newTestGatekeeper(t, 10)

	var (
		gotBody string
		gotCtx  domain.AuthenticatedContext
		ok      bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCtx, ok = FromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})
	h := Middleware(Options{Gatekeeper: g, AddRateLimitHeaders: true})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, http.MethodPost, "http://example/orders?x=1", `{"qty":2}`))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `{"qty":2}`, gotBody, "body must be restored for the handler")
	require.True(t, ok)
	assert.Equal(t, testCaller, gotCtx.CallerID)
	assert.Equal(t, gotCtx.RequestID.String(), w.Header().Get("X-Request-ID"))
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Window"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestMiddleware_UnsignedIsUnauthorized(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	calls := 0
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/orders", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	rej := decodeRejection(t, w)
	assert.False(t, rej.Success)
	assert.Equal(t, domain.CodeUnauthorized, rej.Code)
	assert.Equal(t, "Authentication failed", rej.Message)
	assert.Equal(t, rej.RequestID.String(), w.Header().Get("X-Request-ID"))
	assert.Empty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 0, calls)
}

func TestMiddleware_WrongSignatureDoesNotLeakReason(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := signedRequest(t, http.MethodGet, "http://example/orders", "")
	r.Header.Set(HeaderSignature, "AAAA")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "signature")
}

func TestMiddleware_ForbiddenAddress(t *testing.T) {
	g := newTestGatekeeper(t, 10, "10.0.0.0/8")
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, http.MethodGet, "http://example/orders", ""))

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domain.CodeForbidden, decodeRejection(t, w).Code)
}

func TestMiddleware_TrustedForwardedFor(t *testing.T) {
	g := newTestGatekeeper(t, 10, "203.0.113.0/24")
	h := Middleware(Options{
		Gatekeeper: g,
		Strategies: DefaultStrategies(true, false),
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	r := signedRequest(t, http.MethodGet, "http://example/", "")
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_RateLimitedWithRetryAfter(t *testing.T) {
	g := newTestGatekeeper(t, 1)
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, signedRequest(t, http.MethodGet, "http://example/", ""))
	require.Equal(t, http.StatusOK, w1.Code)
	assert.Empty(t, w1.Header().Get("X-RateLimit-Limit"), "headers on admitted responses are opt-in")

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, signedRequest(t, http.MethodGet, "http://example/", ""))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)

	retry, err := strconv.Atoi(w2.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
	assert.Equal(t, "1", w2.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w2.Header().Get("X-RateLimit-Remaining"))

	rej := decodeRejection(t, w2)
	assert.Equal(t, domain.CodeRateLimitExceeded, rej.Code)
	require.NotNil(t, rej.RetryAfterSeconds)
	assert.Equal(t, retry, *rej.RetryAfterSeconds)
}

func TestMiddleware_Preflight(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	h := Middleware(Options{Gatekeeper: g, AllowPreflight: true})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("preflight must not reach the handler")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "http://example/orders", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMiddleware_PreflightDisabledIsAuthenticated(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "http://example/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_BodyTooLarge(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	h := Middleware(Options{Gatekeeper: g, MaxBodyBytes: 8})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, http.MethodPost, "http://example/upload", strings.Repeat("x", 64)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_FloodGuardRunsBeforeAuth(t *testing.T) {
	g := newTestGatekeeper(t, 100)
	audit := infra.NewMemoryAuditSink()
	g = application.New(g.Policy(), infra.NewWindowStore(), application.WithAudit(audit), application.WithLogger(zerolog.Nop()))

	h := Middleware(Options{
		Gatekeeper: g,
		Flood:      infra.NewBucketStore(0.01, 1),
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, signedRequest(t, http.MethodGet, "http://example/", ""))
	require.Equal(t, http.StatusOK, w1.Code)

	// mesmo sem assinatura: o flood guard barra antes de gastar HMAC
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
	assert.Equal(t, int64(1), audit.Count(domain.EventFloodThrottled))
	assert.Equal(t, int64(0), audit.Count(domain.EventAuthFailure))
}

type denyAll struct{}

func (denyAll) Allow(string) domain.Decision {
	return domain.Decision{Allowed: false, Limit: 1, RetryAfter: time.Second}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestMiddleware_FloodGuardDoesNotReadBody(t *testing.T) {
	g := newTestGatekeeper(t, 100)
	h := Middleware(Options{Gatekeeper: g, Flood: denyAll{}})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatalf("handler must not run") }))

	body := &countingReader{r: strings.NewReader(strings.Repeat("x", 1<<20))}
	r := httptest.NewRequest(http.MethodPost, "http://example/upload", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Zero(t, body.n, "throttled request must not pay for the body read")
}

func TestMiddleware_OversizedCallerIDIsMaskedToFixedWidth(t *testing.T) {
	g := newTestGatekeeper(t, 100)
	audit := infra.NewMemoryAuditSink(infra.WithKeepEvents(4))
	g = application.New(g.Policy(), infra.NewWindowStore(), application.WithAudit(audit), application.WithLogger(zerolog.Nop()))
	h := Middleware(Options{Gatekeeper: g})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatalf("handler must not run") }))

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set(HeaderAPIKey, "çççç"+strings.Repeat("é", 100_000))
	r.Header.Set(HeaderTimestamp, "1700000000")
	r.Header.Set(HeaderSignature, "c2ln")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	evs := audit.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventAuthFailure, evs[0].Kind)
	assert.Equal(t, "çççç****", evs[0].MaskedIdentity)
}

func TestMiddleware_ConcurrencyLimit(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	pool := infra.NewSlotPool(1)
	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	h := Middleware(Options{Gatekeeper: g, Pool: pool, AcquireTimeout: 5 * time.Millisecond})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatalf("handler must not run") }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, http.MethodGet, "http://example/", ""))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMiddleware_Metrics(t *testing.T) {
	g := newTestGatekeeper(t, 10)
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	h := Middleware(Options{Gatekeeper: g, Metrics: m})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), signedRequest(t, http.MethodGet, "http://example/", ""))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("Admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(string(domain.CodeUnauthorized))))

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMiddleware_RequiresGatekeeper(t *testing.T) {
	assert.Panics(t, func() { Middleware(Options{}) })
}
