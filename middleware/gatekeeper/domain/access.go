package domain

import "net"

type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternWildcardPrefix
	PatternCIDR
)

func (k PatternKind) String() string {
	switch k {
	case PatternExact:
		return "exact"
	case PatternWildcardPrefix:
		return "wildcard"
	case PatternCIDR:
		return "cidr"
	default:
		return "unknown"
	}
}

// AccessPattern é uma entrada da allow-list de rede.
//
//   - Exact: Value é o endereço textual.
//   - WildcardPrefix: Value é o prefixo textual (sem o '*').
//   - CIDR: Network são os bytes da rede (4 ou 16) e PrefixLen os bits comparados.
type AccessPattern struct {
	Kind      PatternKind
	Value     string
	Network   net.IP
	PrefixLen int

	// Raw é a forma original da configuração, útil para logs.
	Raw string
}

// NetworkMode controla o estágio de rede.
type NetworkMode string

const (
	// NetworkEnforce nega quando não há match ou o endereço não é resolvido.
	NetworkEnforce NetworkMode = "enforce"
	// NetworkMonitor avalia e registra eventos, mas sempre permite.
	NetworkMonitor NetworkMode = "monitor"
	// NetworkDisabled não avalia. Opção explícita, nunca o padrão.
	NetworkDisabled NetworkMode = "disabled"
)

func (m NetworkMode) Valid() bool {
	switch m {
	case NetworkEnforce, NetworkMonitor, NetworkDisabled:
		return true
	}
	return false
}
