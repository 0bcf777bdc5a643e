package async

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of durable-store operations in flight. The
// session hub serializes live-actor work on its own; everything that
// touches the store goes through a Pool so a burst of marketplace
// traffic cannot open unbounded concurrent work against the backend.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting up to workers concurrent tasks.
func NewPool(workers int64) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(workers)}
}

// Do runs fn once a worker slot is available. Admission respects ctx;
// once admitted, fn runs to completion.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
