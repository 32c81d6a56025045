// Package workpool bounds the number of concurrent outbound LLM and HTTP
// calls so that many pipeline invocations share a small fixed set of
// connections instead of growing without limit.
package workpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem *semaphore.Weighted
}

// New creates a pool admitting at most size concurrent calls.
func New(size int) *Pool {
	if size <= 0 {
		size = 6
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a slot is available. The caller blocks at the offload
// point; ctx cancellation while waiting returns the context error without
// running fn.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
