package infra

import (
	"context"
	"sync"
	"sync/atomic"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/rs/zerolog"
)

// AsyncSink desacopla o pipeline de sinks com I/O (ex: Redis): Record só
// enfileira, e um worker entrega em ordem. Fila cheia descarta o evento.
type AsyncSink struct {
	next    domain.AuditSink
	queue   chan domain.SecurityEvent
	dropped atomic.Int64
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncSink(next domain.AuditSink, size int, l zerolog.Logger) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	s := &AsyncSink{
		next:  next,
		queue: make(chan domain.SecurityEvent, size),
		log:   l,
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return nil
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

// Close para de aceitar eventos e espera a fila esvaziar.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		if err := s.next.Record(context.Background(), ev); err != nil {
			s.log.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("async audit delivery failed")
		}
	}
}

// MultiSink entrega o evento a todos os sinks; o primeiro erro é devolvido,
// mas os demais sinks recebem o evento mesmo assim.
type MultiSink []domain.AuditSink

func (m MultiSink) Record(ctx context.Context, ev domain.SecurityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
