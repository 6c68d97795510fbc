//go:build linux

package driver

import (
	"math"
	"runtime"
	"unsafe"

	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/slots"
	"github.com/brickingsoft/errors"
	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

// uringBackend copies each request into a submission entry right away, its slots carry no state.
// Submission and completion run on different goroutines, the completion side never flushes the
// submission queue.
type uringBackend struct {
	ring   *giouring.Ring
	staged int
	cqes   []*giouring.CompletionQueueEvent
}

func newURingBackend(depth int) (*uringBackend, error) {
	ring, err := giouring.CreateRing(uint32(depth))
	if err != nil {
		return nil, err
	}
	return &uringBackend{
		ring: ring,
		cqes: make([]*giouring.CompletionQueueEvent, depth),
	}, nil
}

func (b *uringBackend) entry() (*giouring.SubmissionQueueEntry, error) {
	sqe := b.ring.GetSQE()
	if sqe != nil {
		return sqe, nil
	}
	if _, err := b.Submit(); err != nil {
		return nil, err
	}
	if sqe = b.ring.GetSQE(); sqe == nil {
		return nil, unix.EBUSY
	}
	return sqe, nil
}

func (b *uringBackend) Prepare(index int, slot *slots.Slot[struct{}]) error {
	req := slot.Request()
	if !req.Action.Valid() {
		return unix.EOPNOTSUPP
	}
	length, err := entryLength(len(req.Buf))
	if err != nil {
		return err
	}
	sqe, err := b.entry()
	if err != nil {
		return err
	}
	switch req.Action {
	case request.Read:
		sqe.PrepareRead(req.Fd, bufferOf(req.Buf), length, uint64(req.Offset))
	case request.Write:
		sqe.PrepareWrite(req.Fd, bufferOf(req.Buf), length, uint64(req.Offset))
	case request.Fsync:
		sqe.PrepareFsync(req.Fd, 0)
	case request.Fallocate:
		sqe.PrepareFallocate(req.Fd, 0, uint64(req.Offset), uint64(req.Size()))
	}
	sqe.UserData = uint64(index)
	b.staged++
	return nil
}

// PrepareWake stages a nop carrying the slot index.
func (b *uringBackend) PrepareWake(index int, _ *slots.Slot[struct{}]) error {
	sqe, err := b.entry()
	if err != nil {
		return err
	}
	sqe.PrepareNop()
	sqe.UserData = uint64(index)
	b.staged++
	return nil
}

func (b *uringBackend) Submit() (int, error) {
	for b.staged > 0 {
		n, err := b.ring.Submit()
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EBUSY) {
				runtime.Gosched()
				continue
			}
			return -1, err
		}
		b.staged -= int(n)
		if b.staged < 0 {
			b.staged = 0
		}
	}
	return -1, nil
}

func (b *uringBackend) Reap(min int, out []Completion) (int, error) {
	cqes := b.cqes
	if len(out) < len(cqes) {
		cqes = cqes[:len(out)]
	}
	for {
		if n := int(b.ring.PeekBatchCQE(cqes)); n > 0 && n >= min {
			for i := 0; i < n; i++ {
				cqe := cqes[i]
				cqes[i] = nil
				out[i] = Completion{
					Index: int(cqe.UserData),
					Res:   int64(cqe.Res),
				}
			}
			b.ring.CQAdvance(uint32(n))
			return n, nil
		}
		if _, err := b.ring.WaitCQE(); err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ETIME) {
				continue
			}
			return 0, err
		}
	}
}

func (b *uringBackend) Close() error {
	b.ring.QueueExit()
	return nil
}

// entryLength fits a buffer length into the 32 bits of a submission entry.
func entryLength(n int) (uint32, error) {
	if uint64(n) > math.MaxUint32 {
		return 0, unix.EINVAL
	}
	return uint32(n), nil
}

func bufferOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
