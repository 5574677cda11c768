package application

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

// ParsePattern interpreta uma entrada da allow-list:
//
//	203.0.113.10        exato
//	192.168.40.*        prefixo textual
//	198.51.100.0/24     CIDR (v4 ou v6)
func ParsePattern(raw string) (domain.AccessPattern, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return domain.AccessPattern{}, fmt.Errorf("%w: empty", domain.ErrInvalidAccessPattern)
	}

	if strings.HasSuffix(p, "*") {
		prefix := strings.TrimRight(p, "*")
		if prefix == "" {
			return domain.AccessPattern{}, fmt.Errorf("%w: bare wildcard %q", domain.ErrInvalidAccessPattern, raw)
		}
		return domain.AccessPattern{Kind: domain.PatternWildcardPrefix, Value: prefix, Raw: p}, nil
	}

	if strings.Contains(p, "/") {
		parts := strings.SplitN(p, "/", 2)
		network := ipBytes(parts[0])
		if network == nil {
			return domain.AccessPattern{}, fmt.Errorf("%w: bad network in %q", domain.ErrInvalidAccessPattern, raw)
		}
		bits, err := strconv.Atoi(parts[1])
		if err != nil || bits < 0 || bits > len(network)*8 {
			return domain.AccessPattern{}, fmt.Errorf("%w: bad prefix length in %q", domain.ErrInvalidAccessPattern, raw)
		}
		return domain.AccessPattern{Kind: domain.PatternCIDR, Network: network, PrefixLen: bits, Raw: p}, nil
	}

	return domain.AccessPattern{Kind: domain.PatternExact, Value: p, Raw: p}, nil
}

func ParsePatterns(raws []string) ([]domain.AccessPattern, error) {
	out := make([]domain.AccessPattern, 0, len(raws))
	for _, raw := range raws {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// IsAllowed avalia os padrões em ordem e retorna true no primeiro match.
func IsAllowed(address string, patterns []domain.AccessPattern) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}

	var addr net.IP
	for _, p := range patterns {
		switch p.Kind {
		case domain.PatternExact:
			if strings.EqualFold(address, p.Value) {
				return true
			}
		case domain.PatternWildcardPrefix:
			if len(address) >= len(p.Value) && strings.EqualFold(address[:len(p.Value)], p.Value) {
				return true
			}
		case domain.PatternCIDR:
			if addr == nil {
				addr = ipBytes(address)
				if addr == nil {
					continue
				}
			}
			if InSubnet(addr, p.Network, p.PrefixLen) {
				return true
			}
		}
	}
	return false
}

// InSubnet compara os primeiros prefixLen bits. Endereço e rede precisam ter o
// mesmo tamanho (sem misturar v4 com v6).
func InSubnet(addr, network net.IP, prefixLen int) bool {
	if len(addr) != len(network) || prefixLen < 0 || prefixLen > len(addr)*8 {
		return false
	}

	fullBytes := prefixLen / 8
	remainingBits := prefixLen % 8

	for i := 0; i < fullBytes; i++ {
		if addr[i] != network[i] {
			return false
		}
	}
	if remainingBits == 0 {
		return true
	}

	mask := byte(0xFF << (8 - remainingBits))
	return addr[fullBytes]&mask == network[fullBytes]&mask
}

// ipBytes devolve 4 bytes para IPv4 e 16 para IPv6, ou nil.
func ipBytes(s string) net.IP {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}
