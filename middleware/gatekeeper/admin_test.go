package gatekeeper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRouter_StatusAndReset(t *testing.T) {
	g := newTestGatekeeper(t, 5)
	h := Middleware(Options{Gatekeeper: g})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), signedRequest(t, http.MethodGet, "http://example/", ""))
	}

	admin := AdminRouter(g, nil)

	w := httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ratelimit/"+testCaller, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var st clientStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Len(t, st.Rules, 1)
	assert.Equal(t, "default", st.Rules[0].Rule)
	assert.Equal(t, 2, st.Rules[0].Count)
	assert.Equal(t, 3, st.Rules[0].Remaining)
	assert.NotNil(t, st.Rules[0].ResetTime)
	assert.NotContains(t, st.Client, "0123456789ab", "caller id is masked")

	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ratelimit/"+testCaller, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cleared map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Equal(t, 1.0, cleared["cleared"])

	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ratelimit/"+testCaller, nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 0, st.Rules[0].Count)
}

func TestAdminRouter_Healthz(t *testing.T) {
	ok := AdminRouter(newTestGatekeeper(t, 1), nil)
	w := httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	empty := AdminRouter(application.New(nil, infra.NewWindowStore(), application.WithLogger(zerolog.Nop())), nil)
	w = httptest.NewRecorder()
	empty.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	admin := AdminRouter(newTestGatekeeper(t, 1), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	w := httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	AdminRouter(newTestGatekeeper(t, 1), nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
