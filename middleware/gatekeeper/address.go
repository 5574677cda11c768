package gatekeeper

import (
	"net"
	"net/http"
	"strings"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

// AddressStrategy tenta extrair o endereço do cliente de uma fonte.
type AddressStrategy func(r *http.Request) (string, bool)

// ForwardedFor lê só o primeiro hop do header (cliente original).
// Use apenas atrás de um proxy confiável.
func ForwardedFor(header string) AddressStrategy {
	if header == "" {
		header = "X-Forwarded-For"
	}
	return func(r *http.Request) (string, bool) {
		v := r.Header.Get(header)
		if v == "" {
			return "", false
		}
		first, _, _ := strings.Cut(v, ",")
		return normalizeIP(first)
	}
}

// RealIP lê X-Real-IP. Mesma ressalva de confiança do ForwardedFor.
func RealIP() AddressStrategy {
	return func(r *http.Request) (string, bool) {
		return normalizeIP(r.Header.Get("X-Real-IP"))
	}
}

// PeerAddr usa o endereço observado pelo transporte (RemoteAddr).
func PeerAddr() AddressStrategy {
	return func(r *http.Request) (string, bool) {
		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		return normalizeIP(addr)
	}
}

// DefaultStrategies monta a ordem padrão: headers de proxy (se confiáveis)
// e depois o peer do transporte.
func DefaultStrategies(trustForwarded, trustRealIP bool) []AddressStrategy {
	var out []AddressStrategy
	if trustForwarded {
		out = append(out, ForwardedFor("X-Forwarded-For"))
	}
	if trustRealIP {
		out = append(out, RealIP())
	}
	return append(out, PeerAddr())
}

// ResolveAddress consulta as estratégias em ordem; a primeira que devolve um
// IP válido vence.
func ResolveAddress(r *http.Request, strategies []AddressStrategy) (string, error) {
	for _, s := range strategies {
		if ip, ok := s(r); ok {
			return ip, nil
		}
	}
	return "", domain.ErrAddressUnresolved
}

func normalizeIP(v string) (string, bool) {
	v = strings.Trim(strings.TrimSpace(v), "[]")
	if v == "" {
		return "", false
	}
	// zona IPv6 (fe80::1%eth0) não entra na comparação
	if host, _, ok := strings.Cut(v, "%"); ok {
		v = host
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}
