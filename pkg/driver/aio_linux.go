//go:build linux

package driver

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/slots"
	"golang.org/x/sys/unix"
)

const exitDevice = "/dev/null"

// aioBackend keeps the control block inline in each slot, Prepare fills it in place.
type aioBackend struct {
	ctx     aioContext
	exit    int
	staged  []*iocb
	cursor  int
	events  []ioEvent
	timeout unix.Timespec
}

func newAIOBackend(depth int, waitTimeout time.Duration) (*aioBackend, error) {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	exit, err := unix.Open(exitDevice, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	ctx, err := ioSetup(depth)
	if err != nil {
		_ = unix.Close(exit)
		return nil, err
	}
	return &aioBackend{
		ctx:     ctx,
		exit:    exit,
		staged:  make([]*iocb, 0, depth),
		events:  make([]ioEvent, depth),
		timeout: unix.NsecToTimespec(waitTimeout.Nanoseconds()),
	}, nil
}

func (b *aioBackend) Prepare(index int, slot *slots.Slot[iocb]) error {
	req := slot.Request()
	cb := &slot.State
	*cb = iocb{
		data:   uint64(index),
		fd:     uint32(req.Fd),
		offset: req.Offset,
	}
	switch req.Action {
	case request.Read:
		cb.opcode = iocbCmdPread
	case request.Write:
		cb.opcode = iocbCmdPwrite
	case request.Fsync:
		cb.opcode = iocbCmdFsync
		cb.offset = 0
	default:
		return unix.EOPNOTSUPP
	}
	if req.Action != request.Fsync && len(req.Buf) > 0 {
		cb.buf = uint64(uintptr(unsafe.Pointer(&req.Buf[0])))
		cb.nbytes = uint64(len(req.Buf))
	}
	b.staged = append(b.staged, cb)
	return nil
}

// PrepareWake stages a zero length read of the exit device.
func (b *aioBackend) PrepareWake(index int, slot *slots.Slot[iocb]) error {
	cb := &slot.State
	*cb = iocb{
		data:   uint64(index),
		opcode: iocbCmdPread,
		fd:     uint32(b.exit),
	}
	b.staged = append(b.staged, cb)
	return nil
}

func (b *aioBackend) Submit() (int, error) {
	for b.cursor < len(b.staged) {
		n, err := ioSubmit(b.ctx, b.staged[b.cursor:])
		if err == unix.EINTR || err == unix.EAGAIN || (err == nil && n == 0) {
			runtime.Gosched()
			continue
		}
		if err != nil {
			rejected := int(b.staged[b.cursor].data)
			b.cursor++
			return rejected, err
		}
		b.cursor += n
	}
	clear(b.staged)
	b.staged = b.staged[:0]
	b.cursor = 0
	return -1, nil
}

func (b *aioBackend) Reap(min int, out []Completion) (int, error) {
	events := b.events
	if len(out) < len(events) {
		events = events[:len(out)]
	}
	for {
		timeout := b.timeout
		n, err := ioGetevents(b.ctx, min, events, &timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			out[i] = Completion{
				Index: int(events[i].data),
				Res:   events[i].res,
			}
		}
		return n, nil
	}
}

func (b *aioBackend) Close() error {
	err := ioDestroy(b.ctx)
	if closeErr := unix.Close(b.exit); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
