package agentrouter

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent blocking work (a specialist-agent invocation) to a
// fixed width, so the event loop that dispatches AgentRouter work never
// blocks on agent I/O directly.
type Pool struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight int64
}

// NewPool constructs a Pool with the given width.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 5
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Submit runs fn once a slot is free, blocking until one is available or
// ctx is cancelled.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("agentrouter: acquire worker pool slot: %w", err)
	}
	atomic.AddInt64(&p.inFlight, 1)
	defer func() {
		atomic.AddInt64(&p.inFlight, -1)
		p.sem.Release(1)
	}()
	return fn(ctx)
}

// InFlight reports how many submissions currently hold a worker slot, for
// health/monitoring reporting. Size reports the pool's total width.
func (p *Pool) InFlight() int64 { return atomic.LoadInt64(&p.inFlight) }

// Size reports the pool's configured width.
func (p *Pool) Size() int64 { return p.size }
