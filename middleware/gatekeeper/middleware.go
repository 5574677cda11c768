package gatekeeper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	DefaultMaxBodyBytes int64 = 1 << 20
)

// FloodGuard é o limite pré-autenticação por endereço.
type FloodGuard interface {
	Allow(key string) domain.Decision
}

type Options struct {
	Gatekeeper *application.Gatekeeper

	// Strategies define a ordem de extração do endereço. Padrão: só RemoteAddr.
	Strategies []AddressStrategy

	// MaxBodyBytes limita o corpo lido para assinatura. Padrão: 1 MiB.
	MaxBodyBytes int64

	// AllowPreflight responde OPTIONS com 204 sem chegar ao handler.
	AllowPreflight bool

	// AddRateLimitHeaders inclui X-RateLimit-* também nas respostas admitidas.
	AddRateLimitHeaders bool

	// Pool limita requisições simultâneas; nil desliga o limite.
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	Flood   FloodGuard
	Metrics *Metrics
}

// Middleware protege next: só requisições admitidas pelo Gatekeeper chegam a
// ele, sempre com AuthenticatedContext no contexto.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Gatekeeper == nil {
		panic("gatekeeper: Options.Gatekeeper is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = []AddressStrategy{PeerAddr()}
	}
	g := opts.Gatekeeper

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			setSecurityHeaders(w.Header())

			if opts.AllowPreflight && r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if opts.Pool != nil {
				release, ok := acquire(r.Context(), opts.Pool, opts.AcquireTimeout)
				if !ok {
					opts.Metrics.observe("Overloaded", time.Since(start))
					http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
					return
				}
				defer release()
			}

			// o flood guard só precisa do endereço: o corpo fica para depois
			req := requestHead(r, opts.Strategies)

			if opts.Flood != nil {
				key := application.DeriveClientKey("", req.Address, req.Fingerprint)
				if dec := opts.Flood.Allow(key); !dec.Allowed {
					out := g.RejectFlood(r.Context(), req, key, dec)
					opts.Metrics.observe(string(out.Rejection.Code), time.Since(start))
					writeRejection(w, out)
					return
				}
			}

			readBody(w, r, &req, opts.MaxBodyBytes)
			out := g.Evaluate(r.Context(), req)
			if !out.Admitted() {
				opts.Metrics.observe(string(out.Rejection.Code), time.Since(start))
				writeRejection(w, out)
				return
			}
			opts.Metrics.observe("Admitted", time.Since(start))

			w.Header().Set("X-Request-ID", out.RequestID.String())
			if opts.AddRateLimitHeaders && out.Rate != nil {
				setRateLimitHeaders(w.Header(), *out.Rate)
			}

			r.Body = io.NopCloser(bytes.NewReader(req.Body))
			r.ContentLength = int64(len(req.Body))
			next.ServeHTTP(w, r.WithContext(withAuthenticated(r.Context(), *out.Context)))
		})
	}
}

func requestHead(r *http.Request, strategies []AddressStrategy) domain.Request {
	req := domain.Request{
		Method:       r.Method,
		PathAndQuery: r.URL.RequestURI(),
		Path:         r.URL.Path,
		CallerID:     r.Header.Get(HeaderAPIKey),
		Timestamp:    r.Header.Get(HeaderTimestamp),
		Signature:    r.Header.Get(HeaderSignature),
		Fingerprint:  r.UserAgent(),
	}
	req.Address, req.AddressErr = ResolveAddress(r, strategies)
	return req
}

func readBody(w http.ResponseWriter, r *http.Request, req *domain.Request, limit int64) {
	if r.Body == nil {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit %d bytes", domain.ErrBodyTooLarge, tooLarge.Limit)
		}
		req.BodyErr = err
	}
	req.Body = body
}

func acquire(ctx context.Context, pool domain.SlotPool, timeout time.Duration) (func(), bool) {
	if timeout <= 0 {
		return pool.Acquire(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pool.Acquire(acqCtx)
}
