package application

import (
	"errors"
	"testing"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindows struct {
	admits []domain.Key
	allow  bool
	resets []domain.Key
}

func (f *fakeWindows) TryAdmit(key domain.Key, max int, span time.Duration) domain.Decision {
	f.admits = append(f.admits, key)
	if f.allow {
		return domain.Decision{Allowed: true, Limit: max, Remaining: max - 1, Window: span}
	}
	return domain.Decision{Limit: max, RetryAfter: 1500 * time.Millisecond, Window: span}
}

func (f *fakeWindows) Status(key domain.Key, max int, _ time.Duration) domain.WindowStatus {
	return domain.WindowStatus{Key: key, Limit: max, Remaining: max}
}

func (f *fakeWindows) Reset(key domain.Key) bool {
	f.resets = append(f.resets, key)
	return true
}

func TestRuleFor_LongestPrefixWins(t *testing.T) {
	l := RateLimiter{
		Rules: []domain.Rule{
			{Name: "api", PathPrefix: "/api", MaxRequests: 100, Window: time.Minute},
			{Name: "login", Method: "POST", PathPrefix: "/api/login", MaxRequests: 5, Window: time.Minute},
		},
		Default: &domain.Rule{Name: "default", MaxRequests: 10, Window: time.Second},
	}

	r, err := l.RuleFor("post", "/api/login")
	require.NoError(t, err)
	assert.Equal(t, "login", r.Name)

	r, err = l.RuleFor("GET", "/api/login")
	require.NoError(t, err)
	assert.Equal(t, "api", r.Name, "method filter must skip the login rule")

	r, err = l.RuleFor("GET", "/health")
	require.NoError(t, err)
	assert.Equal(t, "default", r.Name)
}

func TestRuleFor_NoRuleNoDefault(t *testing.T) {
	_, err := RateLimiter{}.RuleFor("GET", "/")
	assert.ErrorIs(t, err, domain.ErrNoRule)
}

func TestRateLimiter_TryAdmit_UsesPerRuleKey(t *testing.T) {
	f := &fakeWindows{allow: true}
	l := RateLimiter{Store: f}

	dec, err := l.TryAdmit("api:x", domain.Rule{Name: "orders", MaxRequests: 3, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, []domain.Key{"api:x|orders"}, f.admits)
}

func TestRateLimiter_TryAdmit_Errors(t *testing.T) {
	_, err := RateLimiter{}.TryAdmit("k", domain.Rule{MaxRequests: 1, Window: time.Second})
	assert.True(t, errors.Is(err, domain.ErrNoRule))

	f := &fakeWindows{allow: true}
	_, err = RateLimiter{Store: f}.TryAdmit("k", domain.Rule{MaxRequests: 0, Window: time.Second})
	assert.ErrorIs(t, err, domain.ErrNoRule)
	_, err = RateLimiter{Store: f}.TryAdmit("k", domain.Rule{MaxRequests: 1})
	assert.ErrorIs(t, err, domain.ErrNoRule)
	assert.Empty(t, f.admits, "invalid rules must not touch the store")
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, domain.Decision{Allowed: true, RetryAfter: time.Second}.RetryAfterSeconds())
	assert.Equal(t, 2, domain.Decision{RetryAfter: 1500 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 3, domain.Decision{RetryAfter: 3 * time.Second}.RetryAfterSeconds())
	assert.Equal(t, 1, domain.Decision{}.RetryAfterSeconds())
}

func TestRateLimiter_AllRulesIncludesDefault(t *testing.T) {
	l := RateLimiter{
		Rules:   []domain.Rule{{Name: "a"}},
		Default: &domain.Rule{Name: "default"},
	}
	rules := l.AllRules()
	require.Len(t, rules, 2)
	assert.Equal(t, "default", rules[1].Name)
}
