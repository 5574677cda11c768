package gatekeeper

import (
	"encoding/json"
	"net/http"
	"sort"

	"request-gatekeeper/middleware/gatekeeper/application"

	"github.com/go-chi/chi/v5"
)

type ruleStatus struct {
	Rule      string `json:"rule"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetTime *int64 `json:"resetTime,omitempty"`
}

type clientStatus struct {
	Client string       `json:"client"`
	Rules  []ruleStatus `json:"rules"`
}

// AdminRouter expõe operações administrativas do rate limit. Deve ficar num
// listener interno, nunca atrás do Middleware público.
//
//	GET    /healthz
//	GET    /ratelimit/{callerID}
//	DELETE /ratelimit/{callerID}
//	GET    /metrics            (quando metrics != nil)
func AdminRouter(g *application.Gatekeeper, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if g.Policy() == nil {
			http.Error(w, "no policy loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/ratelimit/{callerID}", func(w http.ResponseWriter, r *http.Request) {
		key := application.DeriveClientKey(chi.URLParam(r, "callerID"), "", "")
		st := g.ClientStatus(key)

		resp := clientStatus{Client: application.Mask(key), Rules: make([]ruleStatus, 0, len(st))}
		for name, s := range st {
			rs := ruleStatus{Rule: name, Count: s.Count, Limit: s.Limit, Remaining: s.Remaining}
			if !s.ResetAt.IsZero() {
				reset := s.ResetAt.Unix()
				rs.ResetTime = &reset
			}
			resp.Rules = append(resp.Rules, rs)
		}
		sort.Slice(resp.Rules, func(i, j int) bool { return resp.Rules[i].Rule < resp.Rules[j].Rule })

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Delete("/ratelimit/{callerID}", func(w http.ResponseWriter, r *http.Request) {
		key := application.DeriveClientKey(chi.URLParam(r, "callerID"), "", "")
		n := g.ResetClient(r.Context(), key)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"client": application.Mask(key), "cleared": n})
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}
