package request

import (
	"os"
	"sync/atomic"
	"syscall"
)

type Action uint8

const (
	Read Action = iota
	Write
	Fsync
	Fallocate
	actionEnd
)

func (action Action) String() string {
	switch action {
	case Read:
		return "pread"
	case Write:
		return "pwrite"
	case Fsync:
		return "fsync"
	case Fallocate:
		return "fallocate"
	default:
		return "unknown"
	}
}

func (action Action) Valid() bool {
	return action < actionEnd
}

// Lane is the scheduler queue a request waits in.
type Lane uint8

const (
	PriorityLane Lane = iota
	ReadLane
	WriteLane
	Lanes
)

func (lane Lane) String() string {
	switch lane {
	case PriorityLane:
		return "priority"
	case ReadLane:
		return "read"
	case WriteLane:
		return "write"
	default:
		return "unknown"
	}
}

func (lane Lane) Valid() bool {
	return lane < Lanes
}

// DefaultLane maps an action to the lane it uses when the caller has no preference.
func DefaultLane(action Action) Lane {
	if action == Read {
		return ReadLane
	}
	return WriteLane
}

type Outcome struct {
	N      int
	Errno  syscall.Errno
	action Action
}

func Completed(n int) Outcome {
	return Outcome{N: n}
}

// Failed
// errno 0 is not an error, it is reported as EINVAL.
func Failed(errno syscall.Errno) Outcome {
	if errno == 0 {
		errno = syscall.EINVAL
	}
	return Outcome{Errno: errno}
}

// FromResult translates a raw kernel result, negative values are errnos.
func FromResult(res int64) Outcome {
	if res < 0 {
		return Failed(syscall.Errno(-res))
	}
	return Completed(int(res))
}

func (outcome Outcome) Completed() bool {
	return outcome.Errno == 0
}

func (outcome Outcome) Err() error {
	if outcome.Errno == 0 {
		return nil
	}
	return os.NewSyscallError(outcome.action.String(), outcome.Errno)
}

type Callback func(req *Request, outcome Outcome)

type Request struct {
	Fd       int
	Offset   int64
	Buf      []byte
	Length   int64
	Action   Action
	Lane     Lane
	Context  any
	Callback Callback

	next   atomic.Pointer[Request]
	merged *merged
}

func New(fd int, action Action, offset int64, buf []byte, cb Callback) *Request {
	return &Request{
		Fd:       fd,
		Offset:   offset,
		Buf:      buf,
		Action:   action,
		Lane:     DefaultLane(action),
		Callback: cb,
	}
}

// Size is the number of bytes the request asks the kernel to move.
func (req *Request) Size() int64 {
	if req.Buf != nil {
		return int64(len(req.Buf))
	}
	return req.Length
}

func (req *Request) Valid() bool {
	return req.Callback != nil && req.Action.Valid() && req.Lane.Valid() && req.Offset >= 0
}

func (req *Request) Complete(outcome Outcome) {
	outcome.action = req.Action
	req.Callback(req, outcome)
}
