package infra

import (
	"sync"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/cespare/xxhash/v2"
)

const DefaultShards = 64

// WindowStore é uma implementação de infra baseada em janela deslizante de
// contagem exata, com uma janela por chave e limpeza periódica.
//
// O mapa é dividido em shards: o lock do shard cobre só lookup/criação, e cada
// janela tem seu próprio mutex, segurado apenas durante poda-checa-insere.
type WindowStore struct {
	shards       []*windowShard
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type windowShard struct {
	mu      sync.Mutex
	windows map[domain.Key]*window
}

type window struct {
	mu         sync.Mutex
	timestamps []time.Time
	span       time.Duration
	lastSeen   time.Time
	// dead marca uma janela removida do shard; quem a segura tenta de novo.
	dead bool
}

type WindowOption func(*WindowStore)

func WithIdleTTL(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func WithShards(n int) WindowOption {
	return func(s *WindowStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

func WithWindowClock(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		shards:       newShards(DefaultShards),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newShards(n int) []*windowShard {
	shards := make([]*windowShard, n)
	for i := range shards {
		shards[i] = &windowShard{windows: make(map[domain.Key]*window)}
	}
	return shards
}

func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *WindowStore) shardFor(key domain.Key) *windowShard {
	return s.shards[xxhash.Sum64String(string(key))%uint64(len(s.shards))]
}

func (s *WindowStore) lookup(key domain.Key, create bool) *window {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok && create {
		w = &window{}
		sh.windows[key] = w
	}
	return w
}

// TryAdmit implementa domain.WindowStore.
func (s *WindowStore) TryAdmit(key domain.Key, max int, span time.Duration) domain.Decision {
	for {
		w := s.lookup(key, true)
		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}

		now := s.now()
		w.prune(now, span)
		w.span = span
		w.lastSeen = now

		dec := domain.Decision{Limit: max, Window: span}
		if len(w.timestamps) >= max {
			oldest := w.timestamps[0]
			dec.RetryAfter = span - now.Sub(oldest)
			dec.ResetAt = oldest.Add(span)
		} else {
			w.timestamps = append(w.timestamps, now)
			dec.Allowed = true
			dec.Remaining = max - len(w.timestamps)
			dec.ResetAt = w.timestamps[0].Add(span)
		}
		w.mu.Unlock()
		return dec
	}
}

// Status devolve a contagem atual sem registrar admissão.
func (s *WindowStore) Status(key domain.Key, max int, span time.Duration) domain.WindowStatus {
	st := domain.WindowStatus{Key: key, Limit: max, Remaining: max}

	w := s.lookup(key, false)
	if w == nil {
		return st
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return st
	}

	now := s.now()
	w.prune(now, span)
	st.Count = len(w.timestamps)
	st.Remaining = max - st.Count
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	if st.Count > 0 {
		st.ResetAt = w.timestamps[0].Add(span)
	}
	return st
}

// Reset remove a janela de uma chave. Retorna false se ela não existia.
func (s *WindowStore) Reset(key domain.Key) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok {
		return false
	}
	w.mu.Lock()
	w.dead = true
	w.mu.Unlock()
	delete(sh.windows, key)
	return true
}

// Len conta as janelas vivas em todos os shards.
func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}

// Cleanup remove janelas ociosas cujas admissões já saíram da janela.
func (s *WindowStore) Cleanup() {
	now := s.now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, w := range sh.windows {
			w.mu.Lock()
			if now.Sub(w.lastSeen) >= s.idleTTL && w.expired(now) {
				w.dead = true
				delete(sh.windows, k)
			}
			w.mu.Unlock()
		}
		sh.mu.Unlock()
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
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

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

// prune mantém só instantes em (now-span, now].
func (w *window) prune(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.timestamps, w.timestamps[i:])
	w.timestamps = w.timestamps[:n]
}

func (w *window) expired(now time.Time) bool {
	if len(w.timestamps) == 0 {
		return true
	}
	newest := w.timestamps[len(w.timestamps)-1]
	return !newest.After(now.Add(-w.span))
}
