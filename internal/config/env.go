package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides sobrescreve campos do arquivo com variáveis GATEKEEPER_*.
func applyEnvOverrides(cfg *Config) {
	cfg.ListenAddr = getenvDefault("GATEKEEPER_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AdminAddr = getenvDefault("GATEKEEPER_ADMIN_ADDR", cfg.AdminAddr)
	cfg.UpstreamURL = getenvDefault("GATEKEEPER_UPSTREAM_URL", cfg.UpstreamURL)
	cfg.Log.Level = getenvDefault("GATEKEEPER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getenvBoolDefault("GATEKEEPER_LOG_PRETTY", cfg.Log.Pretty)

	cfg.SignatureEncoding = getenvDefault("GATEKEEPER_SIGNATURE_ENCODING", cfg.SignatureEncoding)
	cfg.ReplayTolerance = getenvDurationDefault("GATEKEEPER_REPLAY_TOLERANCE", cfg.ReplayTolerance)

	cfg.Network.Mode = strings.ToLower(getenvDefault("GATEKEEPER_NETWORK_MODE", cfg.Network.Mode))
	cfg.Network.TrustForwardedFor = getenvBoolDefault("GATEKEEPER_TRUST_XFF", cfg.Network.TrustForwardedFor)
	if v := os.Getenv("GATEKEEPER_NETWORK_ALLOW"); v != "" {
		cfg.Network.Allow = splitList(v)
	}

	cfg.RateLimit.Default.MaxRequests = getenvIntDefault("GATEKEEPER_RATE_MAX", cfg.RateLimit.Default.MaxRequests)
	cfg.RateLimit.Default.Window = getenvDurationDefault("GATEKEEPER_RATE_WINDOW", cfg.RateLimit.Default.Window)

	cfg.FloodGuard.Enabled = getenvBoolDefault("GATEKEEPER_FLOOD_ENABLED", cfg.FloodGuard.Enabled)
	cfg.FloodGuard.RPS = getenvFloatDefault("GATEKEEPER_FLOOD_RPS", cfg.FloodGuard.RPS)
	cfg.FloodGuard.Burst = getenvIntDefault("GATEKEEPER_FLOOD_BURST", cfg.FloodGuard.Burst)

	cfg.Concurrency.Max = getenvIntDefault("GATEKEEPER_CONCURRENCY_MAX", cfg.Concurrency.Max)
	cfg.Concurrency.AcquireTimeout = getenvDurationDefault("GATEKEEPER_CONCURRENCY_TIMEOUT", cfg.Concurrency.AcquireTimeout)

	cfg.Audit.Redis.Enabled = getenvBoolDefault("GATEKEEPER_REDIS_ENABLED", cfg.Audit.Redis.Enabled)
	cfg.Audit.Redis.Addr = getenvDefault("GATEKEEPER_REDIS_ADDR", cfg.Audit.Redis.Addr)
	cfg.Audit.Redis.Password = getenvDefault("GATEKEEPER_REDIS_PASSWORD", cfg.Audit.Redis.Password)
	cfg.Audit.Redis.DB = getenvIntDefault("GATEKEEPER_REDIS_DB", cfg.Audit.Redis.DB)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
