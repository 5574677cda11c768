package infra

import (
	"context"
	"sync"
	"sync/atomic"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"golang.org/x/sync/semaphore"
)

// SlotPool limita requisições simultâneas sobre um semaphore.Weighted.
//
// Quem desiste da fila (ctx encerrado) é contado em Abandoned; o release
// devolvido é idempotente.
type SlotPool struct {
	sem  *semaphore.Weighted
	size int64

	inUse     atomic.Int64
	waited    atomic.Uint64
	abandoned atomic.Uint64
}

var _ domain.SlotPool = (*SlotPool)(nil)

func NewSlotPool(size int) *SlotPool {
	if size < 1 {
		size = 1
	}
	return &SlotPool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

func (p *SlotPool) Acquire(ctx context.Context) (func(), bool) {
	if !p.sem.TryAcquire(1) {
		p.waited.Add(1)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.abandoned.Add(1)
			return nil, false
		}
	}
	p.inUse.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.inUse.Add(-1)
			p.sem.Release(1)
		})
	}, true
}

// InUse é o número de vagas ocupadas no momento.
func (p *SlotPool) InUse() int { return int(p.inUse.Load()) }

func (p *SlotPool) Size() int { return int(p.size) }

// Waited conta aquisições que não acharam vaga livre de imediato.
func (p *SlotPool) Waited() uint64 { return p.waited.Load() }

func (p *SlotPool) Abandoned() uint64 { return p.abandoned.Load() }
