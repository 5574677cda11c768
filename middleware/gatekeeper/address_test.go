package gatekeeper

import (
	"net/http/httptest"
	"testing"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/stretchr/testify/assert"
)

func TestResolveAddress_Strategies(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	r.Header.Set("X-Real-IP", "198.51.100.4")

	addr, err := ResolveAddress(r, DefaultStrategies(true, true))
	assert.NoError(t, err)
	assert.Equal(t, "203.0.113.7", addr)

	addr, _ = ResolveAddress(r, DefaultStrategies(false, true))
	assert.Equal(t, "198.51.100.4", addr)

	addr, _ = ResolveAddress(r, DefaultStrategies(false, false))
	assert.Equal(t, "10.0.0.9", addr, "untrusted headers are ignored")
}

func TestResolveAddress_FallsBackOnGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "[2001:db8::1]:443"
	r.Header.Set("X-Forwarded-For", "unknown")

	addr, err := ResolveAddress(r, DefaultStrategies(true, false))
	assert.NoError(t, err)
	assert.Equal(t, "2001:db8::1", addr)
}

func TestResolveAddress_Unresolved(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "pipe"

	_, err := ResolveAddress(r, DefaultStrategies(true, true))
	assert.ErrorIs(t, err, domain.ErrAddressUnresolved)
}

func TestNormalizeIP(t *testing.T) {
	cases := map[string]string{
		"10.0.0.1":          "10.0.0.1",
		" [::1] ":           "::1",
		"fe80::1%eth0":      "fe80::1",
		"::ffff:192.0.2.1":  "192.0.2.1",
		"2001:DB8:0:0::0:1": "2001:db8::1",
	}
	for in, want := range cases {
		got, ok := normalizeIP(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "host.local", "999.1.1.1"} {
		_, ok := normalizeIP(bad)
		assert.False(t, ok, bad)
	}
}
