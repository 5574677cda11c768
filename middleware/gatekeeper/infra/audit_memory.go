package infra

import (
	"context"
	"sync"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

// MemoryAuditSink é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Guarda contadores por tipo de evento e por rótulo de rota
// (SecurityEvent.RouteLabel), e opcionalmente os últimos eventos (limitado
// por capacidade).
type MemoryAuditSink struct {
	mu      sync.Mutex
	byKind  map[domain.EventKind]int64
	byRoute map[string]map[domain.EventKind]int64
	events  []domain.SecurityEvent
	keep    int
}

type MemoryAuditOption func(*MemoryAuditSink)

// WithKeepEvents guarda até n eventos (os mais antigos são descartados).
func WithKeepEvents(n int) MemoryAuditOption {
	return func(s *MemoryAuditSink) { s.keep = n }
}

func NewMemoryAuditSink(opts ...MemoryAuditOption) *MemoryAuditSink {
	s := &MemoryAuditSink{
		byKind:  make(map[domain.EventKind]int64),
		byRoute: make(map[string]map[domain.EventKind]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryAuditSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	route := ev.RouteLabel()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKind[ev.Kind]++
	r := s.byRoute[route]
	if r == nil {
		r = make(map[domain.EventKind]int64)
		s.byRoute[route] = r
	}
	r[ev.Kind]++

	if s.keep > 0 {
		if len(s.events) >= s.keep {
			s.events = append(s.events[:0], s.events[1:]...)
		}
		s.events = append(s.events, ev)
	}
	return nil
}

func (s *MemoryAuditSink) Count(kind domain.EventKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKind[kind]
}

// Total soma todos os eventos registrados.
func (s *MemoryAuditSink) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.byKind {
		n += v
	}
	return n
}

func (s *MemoryAuditSink) ByKind() map[domain.EventKind]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.EventKind]int64, len(s.byKind))
	for k, v := range s.byKind {
		out[k] = v
	}
	return out
}

func (s *MemoryAuditSink) ByRoute() map[string]map[domain.EventKind]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[domain.EventKind]int64, len(s.byRoute))
	for route, kinds := range s.byRoute {
		c := make(map[domain.EventKind]int64, len(kinds))
		for k, v := range kinds {
			c[k] = v
		}
		out[route] = c
	}
	return out
}

func (s *MemoryAuditSink) Events() []domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}
