// Package config carrega a configuração do gateway: arquivo YAML, overrides
// por variáveis de ambiente (GATEKEEPER_*) e validação. Build transforma a
// configuração numa application.Policy imutável.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	AdminAddr   string `yaml:"admin_addr"`
	UpstreamURL string `yaml:"upstream_url"`

	Log LogConfig `yaml:"log"`

	SignatureEncoding string        `yaml:"signature_encoding"`
	ReplayTolerance   time.Duration `yaml:"replay_tolerance"`
	MinCallerIDLength int           `yaml:"min_caller_id_length"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	AllowPreflight    bool          `yaml:"allow_preflight"`
	RateLimitHeaders  bool          `yaml:"rate_limit_headers"`

	Network     NetworkConfig      `yaml:"network"`
	Credentials []CredentialConfig `yaml:"credentials"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	FloodGuard  FloodGuardConfig   `yaml:"flood_guard"`
	Concurrency ConcurrencyConfig  `yaml:"concurrency"`
	Audit       AuditConfig        `yaml:"audit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type NetworkConfig struct {
	Mode              string   `yaml:"mode"`
	TrustForwardedFor bool     `yaml:"trust_forwarded_for"`
	TrustRealIP       bool     `yaml:"trust_real_ip"`
	Allow             []string `yaml:"allow"`
}

type CredentialConfig struct {
	ID string `yaml:"id"`
	// Secret inline ou, preferencialmente, o nome de uma variável de ambiente.
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`
	Enabled   *bool  `yaml:"enabled"`
}

type RuleConfig struct {
	Name        string        `yaml:"name"`
	Method      string        `yaml:"method"`
	PathPrefix  string        `yaml:"path_prefix"`
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type RateLimitConfig struct {
	Default      RuleConfig    `yaml:"default"`
	Rules        []RuleConfig  `yaml:"rules"`
	Shards       int           `yaml:"shards"`
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	CleanupEvery time.Duration `yaml:"cleanup_every"`
}

type FloodGuardConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type ConcurrencyConfig struct {
	Max            int           `yaml:"max"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type AuditConfig struct {
	QueueSize int         `yaml:"queue_size"`
	Redis     RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	Prefix          string        `yaml:"prefix"`
	TTL             time.Duration `yaml:"ttl"`
	Bucket          string        `yaml:"bucket"`
	TrackIdentities bool          `yaml:"track_identities"`
}

// Load lê o arquivo (se path não for vazio), aplica env, defaults e valida.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		// #nosec G304 -- caminho vem da linha de comando
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.SignatureEncoding == "" {
		c.SignatureEncoding = string(application.EncodingBase64)
	}
	if c.ReplayTolerance == 0 {
		c.ReplayTolerance = application.DefaultReplayTolerance
	}
	if c.MinCallerIDLength == 0 {
		c.MinCallerIDLength = application.DefaultMinCallerIDLength
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.Network.Mode == "" {
		c.Network.Mode = string(domain.NetworkEnforce)
	}

	rl := &c.RateLimit
	if rl.Default.Name == "" {
		rl.Default.Name = "default"
	}
	if rl.Default.MaxRequests == 0 {
		rl.Default.MaxRequests = application.DefaultMaxRequests
	}
	if rl.Default.Window == 0 {
		rl.Default.Window = application.DefaultWindow
	}
	for i := range rl.Rules {
		if rl.Rules[i].Window == 0 {
			rl.Rules[i].Window = application.DefaultWindow
		}
	}
	if rl.IdleTTL == 0 {
		rl.IdleTTL = 15 * time.Minute
	}
	if rl.CleanupEvery == 0 {
		rl.CleanupEvery = 2 * time.Minute
	}

	if c.FloodGuard.Enabled {
		if c.FloodGuard.RPS == 0 {
			c.FloodGuard.RPS = 50
		}
		if c.FloodGuard.Burst == 0 {
			c.FloodGuard.Burst = 100
		}
	}
	if c.Audit.QueueSize == 0 {
		c.Audit.QueueSize = 1024
	}
	if c.Audit.Redis.Prefix == "" {
		c.Audit.Redis.Prefix = "gatekeeper:audit"
	}
	if c.Audit.Redis.TTL == 0 {
		c.Audit.Redis.TTL = 24 * time.Hour
	}
	if c.Audit.Redis.Bucket == "" {
		c.Audit.Redis.Bucket = "minute"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if !domain.NetworkMode(c.Network.Mode).Valid() {
		errs = append(errs, fmt.Errorf("network.mode must be enforce, monitor or disabled (got %q)", c.Network.Mode))
	}
	switch application.SignatureEncoding(c.SignatureEncoding) {
	case application.EncodingBase64, application.EncodingHex:
	default:
		errs = append(errs, fmt.Errorf("signature_encoding must be base64 or hex (got %q)", c.SignatureEncoding))
	}
	if c.ReplayTolerance < time.Second {
		errs = append(errs, errors.New("replay_tolerance must be >= 1s"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must be >= 0"))
	}
	if _, err := application.ParsePatterns(c.Network.Allow); err != nil {
		errs = append(errs, fmt.Errorf("network.allow: %w", err))
	}

	seen := make(map[string]bool, len(c.Credentials))
	for i, cred := range c.Credentials {
		if strings.TrimSpace(cred.ID) == "" {
			errs = append(errs, fmt.Errorf("credentials[%d]: id is required", i))
			continue
		}
		if seen[cred.ID] {
			errs = append(errs, fmt.Errorf("credentials[%d]: duplicate id", i))
		}
		seen[cred.ID] = true
		if cred.Secret == "" && cred.SecretEnv == "" {
			errs = append(errs, fmt.Errorf("credentials[%d]: secret or secret_env is required", i))
		}
	}

	names := map[string]bool{c.RateLimit.Default.Name: true}
	if err := validateRule("rate_limit.default", c.RateLimit.Default); err != nil {
		errs = append(errs, err)
	}
	for i, r := range c.RateLimit.Rules {
		field := fmt.Sprintf("rate_limit.rules[%d]", i)
		if err := validateRule(field, r); err != nil {
			errs = append(errs, err)
		}
		if r.Name == "" || names[r.Name] {
			errs = append(errs, fmt.Errorf("%s: name must be unique and non-empty", field))
		}
		names[r.Name] = true
	}

	if c.FloodGuard.Enabled && (c.FloodGuard.RPS <= 0 || c.FloodGuard.Burst <= 0) {
		errs = append(errs, errors.New("flood_guard: rps and burst must be > 0"))
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("concurrency.max must be >= 0"))
	}
	if c.Audit.Redis.Enabled && strings.TrimSpace(c.Audit.Redis.Addr) == "" {
		errs = append(errs, errors.New("audit.redis.addr is required when audit.redis.enabled=true"))
	}

	return errors.Join(errs...)
}

func validateRule(field string, r RuleConfig) error {
	if r.MaxRequests <= 0 {
		return fmt.Errorf("%s: max_requests must be > 0", field)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%s: window must be > 0", field)
	}
	return nil
}
