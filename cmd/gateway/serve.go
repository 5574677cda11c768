package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"request-gatekeeper/internal/config"
	"request-gatekeeper/internal/logging"
	"request-gatekeeper/middleware/gatekeeper"
	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"
	"request-gatekeeper/middleware/gatekeeper/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper in front of an upstream (or a built-in echo handler)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, watch)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload credentials, allow-list and rules when the config file changes")
	return cmd
}

func serve(parent context.Context, configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	policy, err := config.BuildPolicy(cfg)
	if err != nil {
		return err
	}
	if policy.NetworkMode != domain.NetworkEnforce {
		logger.Warn().Str("mode", string(policy.NetworkMode)).Msg("network access control is NOT enforcing")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink, closeSink, err := buildAudit(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	windows := infra.NewWindowStore(
		infra.WithShards(cfg.RateLimit.Shards),
		infra.WithIdleTTL(cfg.RateLimit.IdleTTL),
		infra.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
	)
	windows.StartJanitor(ctx)

	g := application.New(policy, windows,
		application.WithAudit(sink),
		application.WithSignatureEncoding(application.SignatureEncoding(cfg.SignatureEncoding)),
		application.WithLogger(logger),
	)

	if watch && configPath != "" {
		w, err := config.NewWatcher(configPath, func(next *config.Config) error {
			p, err := config.BuildPolicy(next)
			if err != nil {
				return err
			}
			g.SetPolicy(p)
			return nil
		}, logger)
		if err != nil {
			return err
		}
		w.Start(ctx)
		defer func() { _ = w.Close() }()
	}

	metrics, err := gatekeeper.NewMetrics(reg)
	if err != nil {
		return err
	}

	opts := gatekeeper.Options{
		Gatekeeper:          g,
		Strategies:          gatekeeper.DefaultStrategies(cfg.Network.TrustForwardedFor, cfg.Network.TrustRealIP),
		MaxBodyBytes:        cfg.MaxBodyBytes,
		AllowPreflight:      cfg.AllowPreflight,
		AddRateLimitHeaders: cfg.RateLimitHeaders,
		AcquireTimeout:      cfg.Concurrency.AcquireTimeout,
		Metrics:             metrics,
	}
	if cfg.Concurrency.Max > 0 {
		opts.Pool = infra.NewSlotPool(cfg.Concurrency.Max)
	}
	if cfg.FloodGuard.Enabled {
		flood := infra.NewBucketStore(cfg.FloodGuard.RPS, cfg.FloodGuard.Burst)
		flood.StartJanitor(ctx)
		opts.Flood = flood
	}

	business, err := businessHandler(cfg.UpstreamURL, logger)
	if err != nil {
		return err
	}
	h := gatekeeper.Middleware(opts)(business)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	servers := []*http.Server{srv}

	if cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           gatekeeper.AdminRouter(g, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, admin)
		go func() {
			logger.Info().Str("addr", cfg.AdminAddr).Msg("admin listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("admin server error")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("upstream", cfg.UpstreamURL).
		Str("network_mode", cfg.Network.Mode).
		Int("credentials", len(cfg.Credentials)).
		Int("rules", len(cfg.RateLimit.Rules)).
		Dur("replay_tolerance", cfg.ReplayTolerance).
		Bool("flood_guard", cfg.FloodGuard.Enabled).
		Int("concurrency_max", cfg.Concurrency.Max).
		Msg("gateway listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildAudit monta log + prometheus (síncronos, em memória) e, se habilitado,
// Redis atrás de uma fila assíncrona.
func buildAudit(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger zerolog.Logger) (domain.AuditSink, func(), error) {
	prom, err := infra.NewPrometheusSink(reg)
	if err != nil {
		return nil, nil, err
	}
	sinks := infra.MultiSink{infra.NewLogSink(logger), prom}
	closeFn := func() {}

	if cfg.Audit.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Audit.Redis.Addr,
			Password: cfg.Audit.Redis.Password,
			DB:       cfg.Audit.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}

		async := infra.NewAsyncSink(infra.NewRedisAuditSink(rdb,
			infra.WithAuditPrefix(cfg.Audit.Redis.Prefix),
			infra.WithAuditTTL(cfg.Audit.Redis.TTL),
			infra.WithAuditBucket(cfg.Audit.Redis.Bucket),
			infra.WithAuditTrackIdentities(cfg.Audit.Redis.TrackIdentities),
		), cfg.Audit.QueueSize, logger)
		sinks = append(sinks, async)
		closeFn = func() {
			async.Close()
			_ = rdb.Close()
		}
	}
	return sinks, closeFn, nil
}

// businessHandler faz proxy para o upstream ou, sem upstream, ecoa o contexto
// autenticado (útil para testes de integração de clientes).
func businessHandler(upstream string, logger zerolog.Logger) (http.Handler, error) {
	if upstream == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, _ := gatekeeper.FromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":   true,
				"callerId":  ac.CallerID,
				"requestId": ac.RequestID,
				"path":      r.URL.RequestURI(),
			})
		}), nil
	}

	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		if ac, ok := gatekeeper.FromContext(r.Context()); ok {
			r.Header.Set("X-Authenticated-Caller", ac.CallerID)
			r.Header.Set("X-Request-ID", ac.RequestID.String())
		}
		r.Header.Del(gatekeeper.HeaderSignature)
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy, nil
}
