package service

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many capability calls run at once across all
// conversations. A call that has started always runs to completion; the
// context only bounds the wait for a free slot.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with n slots.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn on a free slot.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
