package infra

import (
	"sync"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"golang.org/x/time/rate"
)

// BucketStore é um token-bucket (x/time/rate) por chave, com cache e limpeza
// periódica. Serve de flood guard antes da autenticação: barra rajadas de um
// mesmo endereço antes de gastar HMAC com elas.
type BucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithBucketIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func WithBucketClock(now func() time.Time) BucketOption {
	return func(s *BucketStore) { s.now = now }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64 { return float64(s.rps) }
func (s *BucketStore) Burst() int   { return s.burst }

func (s *BucketStore) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

// Allow consome um token da chave. Quando não há token, a reserva é
// devolvida e RetryAfter indica quando haverá.
func (s *BucketStore) Allow(key string) domain.Decision {
	now := s.now()
	lim := s.limiter(key, now)

	dec := domain.Decision{Limit: s.burst}
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		dec.RetryAfter = time.Second
		dec.ResetAt = now.Add(time.Second)
		return dec
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		dec.RetryAfter = delay
		dec.ResetAt = now.Add(delay)
		return dec
	}
	dec.Allowed = true
	dec.Remaining = int(lim.TokensAt(now))
	return dec
}

func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
