package config

import (
	"fmt"
	"os"

	"request-gatekeeper/middleware/gatekeeper/application"
	"request-gatekeeper/middleware/gatekeeper/domain"
	"request-gatekeeper/middleware/gatekeeper/infra"
)

// BuildPolicy monta a política imutável a partir da configuração validada.
func BuildPolicy(cfg *Config) (*application.Policy, error) {
	creds := make([]domain.Credential, 0, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		secret := c.Secret
		if c.SecretEnv != "" {
			secret = os.Getenv(c.SecretEnv)
			if secret == "" {
				return nil, fmt.Errorf("credential %q: env %s is empty", application.Mask(c.ID), c.SecretEnv)
			}
		}
		enabled := true
		if c.Enabled != nil {
			enabled = *c.Enabled
		}
		creds = append(creds, domain.Credential{ID: c.ID, Secret: []byte(secret), Enabled: enabled})
	}
	store, err := infra.NewMemoryCredentialStore(creds)
	if err != nil {
		return nil, err
	}

	patterns, err := application.ParsePatterns(cfg.Network.Allow)
	if err != nil {
		return nil, err
	}

	def := ruleFrom(cfg.RateLimit.Default)
	rules := make([]domain.Rule, 0, len(cfg.RateLimit.Rules))
	for _, r := range cfg.RateLimit.Rules {
		rules = append(rules, ruleFrom(r))
	}

	return &application.Policy{
		Credentials:       store,
		Patterns:          patterns,
		NetworkMode:       domain.NetworkMode(cfg.Network.Mode),
		ReplayTolerance:   cfg.ReplayTolerance,
		Rules:             rules,
		DefaultRule:       &def,
		MinCallerIDLength: cfg.MinCallerIDLength,
	}, nil
}

func ruleFrom(r RuleConfig) domain.Rule {
	return domain.Rule{
		Name:        r.Name,
		Method:      r.Method,
		PathPrefix:  r.PathPrefix,
		MaxRequests: r.MaxRequests,
		Window:      r.Window,
	}
}
