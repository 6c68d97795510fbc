package driver

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/dio/pkg/semaphores"
	"github.com/brickingsoft/rxp"
	"github.com/rs/zerolog"
)

// Shared is the state the public handle and both worker goroutines hold.
// It owns no kernel handle.
type Shared struct {
	Depth     int
	Scheduler *scheduler.Scheduler
	Wake      *semaphores.Semaphores
	Executors rxp.Executors
	Logger    zerolog.Logger

	closing    atomic.Bool
	drained    atomic.Bool
	submitting atomic.Int64
}

func NewShared(depth int, sched *scheduler.Scheduler, executors rxp.Executors, logger zerolog.Logger) *Shared {
	return &Shared{
		Depth:     depth,
		Scheduler: sched,
		Wake:      semaphores.New(0),
		Executors: executors,
		Logger:    logger,
	}
}

// Enqueue never blocks beyond the atomic append.
func (shared *Shared) Enqueue(req *request.Request) error {
	shared.submitting.Add(1)
	if shared.closing.Load() {
		shared.submitting.Add(-1)
		return ErrClosed
	}
	shared.Scheduler.Enqueue(req)
	shared.submitting.Add(-1)
	shared.Wake.Signal()
	return nil
}

// Shutdown closes ingress. Once it returns no request can be enqueued anymore.
func (shared *Shared) Shutdown() {
	if !shared.closing.CompareAndSwap(false, true) {
		return
	}
	for shared.submitting.Load() > 0 {
		runtime.Gosched()
	}
	shared.drained.Store(true)
	shared.Wake.Signal()
}

func (shared *Shared) Closing() bool {
	return shared.closing.Load()
}

// callbackTask runs one completion callback on the executors.
type callbackTask struct {
	req     *request.Request
	outcome request.Outcome
}

func (task callbackTask) Handle(_ context.Context) {
	task.req.Complete(task.outcome)
}

// Dispatch hands the outcome to the callback executors, falling back to the calling goroutine
// when they refuse so the callback still runs exactly once.
func (shared *Shared) Dispatch(req *request.Request, outcome request.Outcome) {
	task := callbackTask{req: req, outcome: outcome}
	if shared.Executors != nil {
		err := shared.Executors.Execute(context.Background(), task)
		if err == nil {
			return
		}
		shared.Logger.Warn().Err(err).Msg("callback executors refused task, running inline")
	}
	task.Handle(context.Background())
}

func (shared *Shared) Close() error {
	return shared.Wake.Close()
}
