package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMinCallerIDLength = 16
	MaxCallerIDLength        = 128
)

var callerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Policy é a configuração imutável usada por uma avaliação. Um reload troca o
// ponteiro inteiro, nunca muta uma Policy em uso.
type Policy struct {
	Credentials       domain.CredentialStore
	Patterns          []domain.AccessPattern
	NetworkMode       domain.NetworkMode
	ReplayTolerance   time.Duration
	Rules             []domain.Rule
	DefaultRule       *domain.Rule
	MinCallerIDLength int
}

// Gatekeeper orquestra autenticação, rede e rate limit em ordem, com
// short-circuit: um estágio só roda se o anterior passou.
type Gatekeeper struct {
	policy   atomic.Pointer[Policy]
	windows  domain.WindowStore
	audit    domain.AuditSink
	verifier SignatureVerifier
	now      func() time.Time
	newID    func() uuid.UUID
	log      zerolog.Logger
}

type Option func(*Gatekeeper)

func WithAudit(sink domain.AuditSink) Option {
	return func(g *Gatekeeper) { g.audit = sink }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gatekeeper) { g.now = now }
}

func WithSignatureEncoding(enc SignatureEncoding) Option {
	return func(g *Gatekeeper) { g.verifier.Encoding = enc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gatekeeper) { g.log = l }
}

func WithRequestIDs(fn func() uuid.UUID) Option {
	return func(g *Gatekeeper) { g.newID = fn }
}

func New(policy *Policy, windows domain.WindowStore, opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		windows: windows,
		now:     time.Now,
		newID:   uuid.New,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if policy != nil {
		g.policy.Store(policy)
	}
	return g
}

// SetPolicy troca a política atomicamente (reload de configuração).
// As janelas de rate limit são preservadas.
func (g *Gatekeeper) SetPolicy(p *Policy) {
	if p != nil {
		g.policy.Store(p)
	}
}

func (g *Gatekeeper) Policy() *Policy { return g.policy.Load() }

// RateLimiter expõe o limiter da política atual (status/reset administrativos).
func (g *Gatekeeper) RateLimiter() RateLimiter {
	p := g.policy.Load()
	if p == nil {
		return RateLimiter{Store: g.windows}
	}
	return RateLimiter{Store: g.windows, Rules: p.Rules, Default: p.DefaultRule}
}

// Evaluate percorre Received -> Authenticating -> NetworkChecking ->
// RateChecking -> Admitted, ou termina em Rejected. Cada transição emite
// exatamente um SecurityEvent.
func (g *Gatekeeper) Evaluate(ctx context.Context, req domain.Request) (out domain.Outcome) {
	reqID := g.newID()
	state := domain.StateReceived

	defer func() {
		// falha interna nunca libera a requisição
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s stage: %v", state, r)
			g.log.Error().Str("request_id", reqID.String()).Err(err).Msg("gatekeeper stage panicked")
			g.emit(ctx, req, reqID, domain.EventInternalError, Mask(req.CallerID), err.Error())
			out = g.reject(reqID, domain.CodeInternalError, err, nil)
		}
	}()

	p := g.policy.Load()
	if p == nil {
		g.emit(ctx, req, reqID, domain.EventInternalError, Mask(req.CallerID), domain.ErrNoPolicy.Error())
		return g.reject(reqID, domain.CodeInternalError, domain.ErrNoPolicy, nil)
	}
	if err := ctx.Err(); err != nil {
		return g.abandon(ctx, req, reqID, state, err)
	}

	// Authenticating
	state = domain.StateAuthenticating
	callerID, authErr := g.authenticate(p, req)
	if authErr != nil {
		g.emit(ctx, req, reqID, domain.EventAuthFailure, Mask(req.CallerID), authErr.Error())
		return g.reject(reqID, domain.CodeUnauthorized, authErr, nil)
	}
	authenticatedAt := g.now().UTC()
	g.emit(ctx, req, reqID, domain.EventAuthSuccess, Mask(callerID), "signature verified")
	if err := ctx.Err(); err != nil {
		return g.abandon(ctx, req, reqID, state, err)
	}

	// NetworkChecking
	state = domain.StateNetworkChecking
	if netErr := g.checkNetwork(ctx, p, req, reqID, callerID); netErr != nil {
		return g.reject(reqID, domain.CodeForbidden, netErr, nil)
	}
	if err := ctx.Err(); err != nil {
		return g.abandon(ctx, req, reqID, state, err)
	}

	// RateChecking
	state = domain.StateRateChecking
	limiter := RateLimiter{Store: g.windows, Rules: p.Rules, Default: p.DefaultRule}
	rule, err := limiter.RuleFor(req.Method, req.Path)
	if err != nil {
		g.emit(ctx, req, reqID, domain.EventInternalError, Mask(callerID), err.Error())
		return g.reject(reqID, domain.CodeInternalError, err, nil)
	}
	clientKey := DeriveClientKey(callerID, req.Address, req.Fingerprint)
	dec, err := limiter.TryAdmit(clientKey, rule)
	if err != nil {
		g.emit(ctx, req, reqID, domain.EventInternalError, Mask(callerID), err.Error())
		return g.reject(reqID, domain.CodeInternalError, err, nil)
	}
	if !dec.Allowed {
		g.emitRule(ctx, req, reqID, domain.EventRateThrottled, Mask(callerID), rule.Name,
			fmt.Sprintf("rule=%s limit=%d retry_after=%ds", rule.Name, dec.Limit, dec.RetryAfterSeconds()))
		out = g.reject(reqID, domain.CodeRateLimitExceeded, nil, &dec)
		out.Rate = &dec
		return out
	}
	g.emitRule(ctx, req, reqID, domain.EventRateAdmitted, Mask(callerID), rule.Name,
		fmt.Sprintf("rule=%s remaining=%d/%d", rule.Name, dec.Remaining, dec.Limit))

	return domain.Outcome{
		State:     domain.StateAdmitted,
		RequestID: reqID,
		Context: &domain.AuthenticatedContext{
			CallerID:        callerID,
			AuthenticatedAt: authenticatedAt,
			RequestID:       reqID,
		},
		Rate: &dec,
	}
}

func (g *Gatekeeper) authenticate(p *Policy, req domain.Request) (string, error) {
	callerID := strings.TrimSpace(req.CallerID)
	tsRaw := strings.TrimSpace(req.Timestamp)
	sig := strings.TrimSpace(req.Signature)
	if callerID == "" || tsRaw == "" || sig == "" {
		return "", domain.ErrMissingCredentials
	}

	minLen := p.MinCallerIDLength
	if minLen <= 0 {
		minLen = DefaultMinCallerIDLength
	}
	if len(callerID) < minLen || len(callerID) > MaxCallerIDLength || !callerIDPattern.MatchString(callerID) {
		return "", domain.ErrMalformedCallerID
	}
	if req.BodyErr != nil {
		return "", fmt.Errorf("read body: %w", req.BodyErr)
	}
	if p.Credentials == nil {
		return "", domain.ErrCredentialNotFound
	}

	cred, err := p.Credentials.Lookup(callerID)
	if err != nil {
		return "", err
	}
	if !cred.Enabled {
		return "", domain.ErrCredentialDisabled
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return "", domain.ErrMalformedTimestamp
	}
	guard := ReplayGuard{Tolerance: p.ReplayTolerance, Now: g.now}
	if !guard.IsFresh(ts) {
		return "", domain.ErrStaleTimestamp
	}

	env := domain.SignedRequestEnvelope{
		Method:       req.Method,
		PathAndQuery: req.PathAndQuery,
		Body:         req.Body,
		CallerID:     callerID,
		Timestamp:    ts,
		Signature:    sig,
	}
	if !g.verifier.Verify(env, cred.Secret) {
		return "", domain.ErrSignatureMismatch
	}
	return callerID, nil
}

// checkNetwork emite exatamente um evento e retorna erro só quando a
// requisição deve ser negada.
func (g *Gatekeeper) checkNetwork(ctx context.Context, p *Policy, req domain.Request, reqID uuid.UUID, callerID string) error {
	mode := p.NetworkMode
	if mode == "" {
		mode = domain.NetworkEnforce
	}
	identity := Mask(callerID)

	if mode == domain.NetworkDisabled {
		g.emit(ctx, req, reqID, domain.EventNetworkSkipped, identity, "network control disabled")
		return nil
	}

	var denyErr error
	switch {
	case req.AddressErr != nil:
		denyErr = req.AddressErr
		if !errors.Is(denyErr, domain.ErrAddressUnresolved) {
			denyErr = fmt.Errorf("%w: %v", domain.ErrAddressUnresolved, req.AddressErr)
		}
	case strings.TrimSpace(req.Address) == "":
		denyErr = domain.ErrAddressUnresolved
	case !IsAllowed(req.Address, p.Patterns):
		denyErr = fmt.Errorf("%w: %s", domain.ErrAddressNotAllowed, Mask(req.Address))
	}

	if denyErr == nil {
		g.emit(ctx, req, reqID, domain.EventNetworkAllowed, identity, "address "+Mask(req.Address))
		return nil
	}
	if mode == domain.NetworkMonitor {
		g.emit(ctx, req, reqID, domain.EventNetworkMonitored, identity, "would deny: "+denyErr.Error())
		return nil
	}
	g.emit(ctx, req, reqID, domain.EventNetworkDenied, identity, denyErr.Error())
	return denyErr
}

func (g *Gatekeeper) abandon(ctx context.Context, req domain.Request, reqID uuid.UUID, state domain.State, err error) domain.Outcome {
	g.emit(ctx, req, reqID, domain.EventRequestAbandoned, Mask(req.CallerID), "abandoned during "+state.String()+": "+err.Error())
	return g.reject(reqID, domain.CodeInternalError, err, nil)
}

var rejectionMessages = map[domain.Code]string{
	domain.CodeUnauthorized:      "Authentication failed",
	domain.CodeForbidden:         "Access denied",
	domain.CodeRateLimitExceeded: "Rate limit exceeded",
	domain.CodeInternalError:     "Request could not be processed",
}

func (g *Gatekeeper) reject(reqID uuid.UUID, code domain.Code, err error, dec *domain.Decision) domain.Outcome {
	rej := &domain.Rejection{
		Success:   false,
		Message:   rejectionMessages[code],
		Code:      code,
		RequestID: reqID,
		Timestamp: g.now().UTC().Truncate(time.Second),
	}
	if dec != nil && !dec.Allowed {
		retry := dec.RetryAfterSeconds()
		limit := dec.Limit
		remaining := dec.Remaining
		reset := dec.ResetAt.Unix()
		rej.RetryAfterSeconds = &retry
		rej.Limit = &limit
		rej.Remaining = &remaining
		rej.ResetTime = &reset
	}
	return domain.Outcome{
		State:     domain.StateRejected,
		RequestID: reqID,
		Rejection: rej,
		Err:       err,
	}
}

func (g *Gatekeeper) emit(ctx context.Context, req domain.Request, reqID uuid.UUID, kind domain.EventKind, identity, detail string) {
	g.emitRule(ctx, req, reqID, kind, identity, "", detail)
}

func (g *Gatekeeper) emitRule(ctx context.Context, req domain.Request, reqID uuid.UUID, kind domain.EventKind, identity, rule, detail string) {
	if g.audit == nil {
		return
	}
	ev := domain.SecurityEvent{
		Kind:           kind,
		MaskedIdentity: identity,
		Detail:         detail,
		At:             g.now().UTC(),
		RequestID:      reqID,
		Method:         req.Method,
		Path:           req.Path,
		Rule:           rule,
	}
	// o evento sobrevive ao cancelamento da requisição
	if err := g.audit.Record(context.WithoutCancel(ctx), ev); err != nil {
		g.log.Debug().Err(err).Str("kind", string(kind)).Msg("audit sink record failed")
	}
}

// RejectFlood registra e monta a rejeição do flood guard pré-autenticação.
// Não toca nas janelas de rate limit por caller id.
func (g *Gatekeeper) RejectFlood(ctx context.Context, req domain.Request, clientKey string, dec domain.Decision) domain.Outcome {
	reqID := g.newID()
	g.emit(ctx, req, reqID, domain.EventFloodThrottled, Mask(clientKey),
		fmt.Sprintf("pre-auth flood guard retry_after=%ds", dec.RetryAfterSeconds()))
	out := g.reject(reqID, domain.CodeRateLimitExceeded, nil, &dec)
	out.Rate = &dec
	return out
}

// ClientStatus devolve a situação da janela do cliente em cada regra, sem
// registrar admissão.
func (g *Gatekeeper) ClientStatus(clientKey string) map[string]domain.WindowStatus {
	limiter := g.RateLimiter()
	out := make(map[string]domain.WindowStatus)
	for _, rule := range limiter.AllRules() {
		out[rule.Name] = limiter.Status(clientKey, rule)
	}
	return out
}

// ResetClient apaga as janelas do cliente em todas as regras (uso
// administrativo). Retorna quantas janelas existiam.
func (g *Gatekeeper) ResetClient(ctx context.Context, clientKey string) int {
	limiter := g.RateLimiter()
	n := 0
	for _, rule := range limiter.AllRules() {
		if limiter.Reset(clientKey, rule) {
			n++
		}
	}
	if g.audit != nil {
		ev := domain.SecurityEvent{
			Kind:           domain.EventRateHistoryCleared,
			MaskedIdentity: Mask(clientKey),
			Detail:         fmt.Sprintf("cleared %d window(s)", n),
			At:             g.now().UTC(),
			RequestID:      g.newID(),
		}
		if err := g.audit.Record(context.WithoutCancel(ctx), ev); err != nil {
			g.log.Debug().Err(err).Msg("audit sink record failed")
		}
	}
	return n
}
