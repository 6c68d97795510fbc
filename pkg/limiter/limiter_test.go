package limiter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brickingsoft/dio/pkg/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Acquire(t *testing.T) {
	l := limiter.New(2)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.EqualValues(t, 2, l.Used())

	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 2, l.Used())

	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestLimiter_WakesWaiter(t *testing.T) {
	l := limiter.New(1)
	require.True(t, l.TryAcquire())
	acquired := make(chan error, 1)
	go func() {
		acquired <- l.Acquire(context.Background())
	}()
	select {
	case <-acquired:
		t.Fatal("acquired past the limit")
	case <-time.After(20 * time.Millisecond):
	}
	l.Release()
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken by release")
	}
	assert.EqualValues(t, 1, l.Used())
	l.Release()
	assert.EqualValues(t, 0, l.Used())
}

func TestLimiter_Disabled(t *testing.T) {
	l := limiter.New(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.EqualValues(t, 0, l.Used())
	l.Release()
}

func TestLimiter_Concurrent(t *testing.T) {
	const limit = 4
	l := limiter.New(limit)
	var peak, current atomic.Int64
	wg := new(sync.WaitGroup)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, l.Acquire(context.Background()))
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				current.Add(-1)
				l.Release()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.EqualValues(t, 0, l.Used())
}
