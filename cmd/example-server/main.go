package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"request-gatekeeper/internal/logging"
	"request-gatekeeper/middleware/gatekeeper"
	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"
	"request-gatekeeper/middleware/gatekeeper/infra"

	"github.com/go-chi/chi/v5"
)

func main() {
	// Exemplo: gatekeeper embutido no próprio webserver (sem proxy)
	logger := logging.Setup(logging.Config{Level: "debug", Pretty: true})

	secret := os.Getenv("EXAMPLE_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	creds, err := infra.NewMemoryCredentialStore([]domain.Credential{
		{ID: "example_client_0001", Secret: []byte(secret), Enabled: true},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("credentials")
	}
	patterns, err := application.ParsePatterns([]string{"127.0.0.1", "::1", "10.0.0.0/8", "192.168.*"})
	if err != nil {
		logger.Fatal().Err(err).Msg("allow-list")
	}

	policy := &application.Policy{
		Credentials:     creds,
		Patterns:        patterns,
		NetworkMode:     domain.NetworkEnforce,
		ReplayTolerance: application.DefaultReplayTolerance,
		Rules: []domain.Rule{
			{Name: "orders-write", Method: http.MethodPost, PathPrefix: "/orders", MaxRequests: 5, Window: time.Minute},
		},
		DefaultRule: &domain.Rule{Name: "default", MaxRequests: 60, Window: time.Minute},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	windows := infra.NewWindowStore()
	windows.StartJanitor(ctx)

	g := application.New(policy, windows,
		application.WithAudit(infra.NewLogSink(logger)),
		application.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(gatekeeper.Middleware(gatekeeper.Options{
		Gatekeeper:          g,
		AllowPreflight:      true,
		AddRateLimitHeaders: true,
		Pool:                infra.NewSlotPool(50),
	}))
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		ac, _ := gatekeeper.FromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"callerId":        ac.CallerID,
			"requestId":       ac.RequestID,
			"authenticatedAt": ac.AuthenticatedAt,
		})
	})
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		ac, _ := gatekeeper.FromContext(r.Context())
		writeJSON(w, http.StatusCreated, map[string]any{"owner": ac.CallerID, "order": body})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
