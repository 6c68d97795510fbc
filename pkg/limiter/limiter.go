package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps how many requests a producer keeps in flight. A limit below one disables it.
type Limiter struct {
	limit int64
	sem   *semaphore.Weighted
	used  atomic.Int64
}

func New(limit int64) *Limiter {
	if limit < 1 {
		return &Limiter{}
	}
	return &Limiter{
		limit: limit,
		sem:   semaphore.NewWeighted(limit),
	}
}

// TryAcquire takes one slot without waiting.
func (l *Limiter) TryAcquire() bool {
	if l.sem == nil {
		return true
	}
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.used.Add(1)
	return true
}

// Acquire takes one slot, waiting until one is released or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.used.Add(1)
	return nil
}

// Release gives back a slot taken by Acquire, usually from a completion callback.
func (l *Limiter) Release() {
	if l.sem == nil {
		return
	}
	l.used.Add(-1)
	l.sem.Release(1)
}

func (l *Limiter) Used() int64 {
	return l.used.Load()
}

func (l *Limiter) Limit() int64 {
	return l.limit
}
