package driver

import (
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brickingsoft/dio/pkg/process"
	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/slots"
	"github.com/brickingsoft/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Completion struct {
	Index int
	Res   int64
}

// Backend is the capability set each kernel facility implements.
//
// Prepare stages the request bound to slot, PrepareWake stages the shutdown sentinel.
// Submit issues everything staged in one batch, it is a no-op when nothing is staged.
// When the kernel refuses one staged entry Submit returns its slot index and the error,
// the caller fails that request and calls Submit again for the rest.
// Reap blocks until at least min completions are available.
type Backend[S any] interface {
	Prepare(index int, slot *slots.Slot[S]) error
	PrepareWake(index int, slot *slots.Slot[S]) error
	Submit() (rejected int, err error)
	Reap(min int, out []Completion) (int, error)
	Close() error
}

// Handle is what the engine keeps of a running driver.
type Handle interface {
	Kind() Kind
	Depth() int
	Running() int
	Wait() error
}

// Driver runs one submitter and one completion goroutine over a concrete backend type.
type Driver[S any, B Backend[S]] struct {
	kind    Kind
	table   *slots.Table[S]
	backend B
	options Options
	group   errgroup.Group
	stopped atomic.Bool
}

func Run[S any, B Backend[S]](kind Kind, shared *reference.Pointer[*Shared], table *slots.Table[S], backend B, options Options) *Driver[S, B] {
	d := &Driver[S, B]{
		kind:    kind,
		table:   table,
		backend: backend,
		options: options,
	}
	submitter := shared.Acquire()
	completer := shared.Acquire()
	d.group.Go(func() error {
		defer func() {
			_ = shared.Release()
		}()
		return d.submitting(submitter)
	})
	d.group.Go(func() error {
		defer func() {
			_ = shared.Release()
		}()
		return d.completing(completer)
	})
	return d
}

func (d *Driver[S, B]) Kind() Kind {
	return d.kind
}

func (d *Driver[S, B]) Depth() int {
	return d.table.Depth()
}

func (d *Driver[S, B]) Running() int {
	return d.table.Occupied()
}

func (d *Driver[S, B]) Wait() error {
	return d.group.Wait()
}

func (d *Driver[S, B]) submitting(shared *Shared) error {
	if !lockThread(d.options.SubmitterCPU, shared.Logger) {
		defer runtime.UnlockOSThread()
	}

	var (
		ctx   = context.Background()
		table = d.table
		sched = shared.Scheduler
		wake  = shared.Wake
		batch = make([]*request.Request, 0, table.Depth())
	)
	for {
		if d.stopped.Load() {
			d.cancelQueued(shared)
			return nil
		}
		free := table.Free()
		if free > 0 && sched.Len() > 0 {
			batch = sched.Drain(free, batch[:0])
			if len(batch) == 0 {
				// a producer is between swap and link
				runtime.Gosched()
				continue
			}
			for i, req := range batch {
				batch[i] = nil
				index, ok := table.Acquire()
				if !ok {
					panic(errors.From(ErrSlotMismatch, errors.WithMeta("free", strconv.Itoa(free))))
				}
				slot := table.Bind(index, req)
				if err := d.backend.Prepare(index, slot); err != nil {
					d.reject(shared, index, err)
				}
			}
			d.submit(shared)
			continue
		}
		if shared.drained.Load() && sched.Len() == 0 {
			break
		}
		_ = wake.Wait(ctx)
	}
	d.submitWake(ctx, shared)
	return nil
}

func (d *Driver[S, B]) submit(shared *Shared) {
	for {
		rejected, err := d.backend.Submit()
		if err == nil {
			return
		}
		if rejected < 0 {
			shared.Logger.Error().Err(err).Str("backend", d.kind.String()).Msg("submit failed, retrying")
			time.Sleep(time.Millisecond)
			continue
		}
		d.reject(shared, rejected, err)
	}
}

// submitWake stages the sentinel in a free slot, its completion tells the completion side to drain.
func (d *Driver[S, B]) submitWake(ctx context.Context, shared *Shared) {
	table := d.table
	for {
		if d.stopped.Load() {
			return
		}
		index, ok := table.Acquire()
		if !ok {
			_ = shared.Wake.Wait(ctx)
			continue
		}
		slot := table.BindWake(index)
		if err := d.backend.PrepareWake(index, slot); err != nil {
			table.Return(index)
			shared.Logger.Error().Err(err).Str("backend", d.kind.String()).Msg("prepare shutdown sentinel failed, retrying")
			time.Sleep(time.Millisecond)
			continue
		}
		for {
			rejected, err := d.backend.Submit()
			if err == nil {
				return
			}
			if rejected >= 0 && rejected != index {
				d.reject(shared, rejected, err)
				continue
			}
			shared.Logger.Error().Err(err).Str("backend", d.kind.String()).Msg("submit shutdown sentinel failed, retrying")
			time.Sleep(time.Millisecond)
			if rejected == index {
				table.Return(index)
				break
			}
		}
	}
}

// cancelQueued fails what is still queued once the completion side has stopped,
// waiting for producers that passed the closing check.
func (d *Driver[S, B]) cancelQueued(shared *Shared) {
	shared.Shutdown()
	sched := shared.Scheduler
	batch := make([]*request.Request, 0, d.table.Depth())
	for sched.Len() > 0 {
		batch = sched.Drain(d.table.Depth(), batch[:0])
		if len(batch) == 0 {
			runtime.Gosched()
			continue
		}
		for i, req := range batch {
			batch[i] = nil
			shared.Dispatch(req, request.Failed(syscall.ECANCELED))
		}
	}
}

// reject fails a request that never reached the kernel.
func (d *Driver[S, B]) reject(shared *Shared, index int, err error) {
	req, _ := d.table.Take(index)
	d.table.Return(index)
	if req == nil {
		return
	}
	shared.Logger.Debug().Err(err).Int("fd", req.Fd).Str("action", req.Action.String()).Msg("request rejected")
	shared.Dispatch(req, request.Failed(errnoOf(err)))
}

func (d *Driver[S, B]) completing(shared *Shared) (err error) {
	if !lockThread(d.options.CompleterCPU, shared.Logger) {
		defer runtime.UnlockOSThread()
	}

	var (
		table    = d.table
		depth    = table.Depth()
		out      = make([]Completion, depth)
		draining = false
	)
	for {
		n, reapErr := d.backend.Reap(1, out)
		if reapErr != nil {
			d.stopped.Store(true)
			shared.Wake.Signal()
			shared.Logger.Error().Err(reapErr).Str("backend", d.kind.String()).Int("running", table.Occupied()).Msg("reap completions failed")
			return errors.New(
				"reap completions failed",
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, errMetaOpReap),
				errors.WithWrap(reapErr),
			)
		}
		for i := 0; i < n; i++ {
			c := out[i]
			req, wake := table.Take(c.Index)
			if wake {
				draining = true
				table.Release(c.Index)
				continue
			}
			if req == nil {
				panic(errors.From(ErrUnknownCompletion, errors.WithMeta("slot", strconv.Itoa(c.Index))))
			}
			shared.Dispatch(req, request.FromResult(c.Res))
			table.Release(c.Index)
		}
		if n > 0 && (shared.Closing() || shared.Scheduler.Len() > 0) {
			shared.Wake.Signal()
		}
		if draining && table.Free() == depth {
			break
		}
	}
	if closeErr := d.backend.Close(); closeErr != nil {
		err = errors.New(
			"close backend failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpDestroy),
			errors.WithWrap(closeErr),
		)
	}
	shared.Logger.Debug().Str("backend", d.kind.String()).Msg("completion drained")
	return
}

// lockThread wires the goroutine to its own thread and reports whether it got pinned.
// A pinned thread is left locked so the runtime discards it when the goroutine exits.
func lockThread(cpu int, logger zerolog.Logger) (pinned bool) {
	runtime.LockOSThread()
	if cpu < 0 {
		return
	}
	if err := process.SetCPUAffinity(cpu); err != nil {
		logger.Warn().Err(err).Int("cpu", cpu).Msg("cpu affinity not applied")
		return
	}
	pinned = true
	return
}

// errnoOf expects the raw errno backends return for rejected entries.
func errnoOf(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return syscall.EIO
}
