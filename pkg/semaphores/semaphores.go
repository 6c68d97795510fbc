package semaphores

import (
	"context"
	"time"

	"github.com/brickingsoft/errors"
)

var ErrClosed = errors.Define("semaphores closed")

// New
// timeout bounds a single Wait, zero means wait until signaled.
func New(timeout time.Duration) *Semaphores {
	if timeout < 0 {
		timeout = 0
	}
	v := &Semaphores{
		timeout: timeout,
		ch:      make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if timeout > 0 {
		v.timer = time.NewTimer(timeout)
		v.timer.Stop()
	}
	return v
}

// Semaphores is a wake flag for one waiter and many signalers.
// A signal sent while nobody waits is kept, so the next Wait returns at once.
type Semaphores struct {
	timeout time.Duration
	timer   *time.Timer
	ch      chan struct{}
	done    chan struct{}
}

func (s *Semaphores) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Semaphores) Wait(ctx context.Context) (err error) {
	var timeout <-chan time.Time
	if s.timer != nil {
		s.timer.Reset(s.timeout)
		defer s.timer.Stop()
		timeout = s.timer.C
	}
	select {
	case <-s.ch:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timeout:
		err = context.DeadlineExceeded
	case <-s.done:
		err = ErrClosed
	}
	return
}

func (s *Semaphores) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
