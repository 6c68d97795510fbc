package merge

import (
	"strconv"
	"sync"
	"syscall"

	"github.com/brickingsoft/dio/pkg/buffers"
	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/errors"
	"github.com/eapache/queue"
	"github.com/rs/zerolog"
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "merge"
)

var (
	ErrInvalidLimit   = errors.Define("merge limit must be positive")
	ErrUnmergeable    = errors.Define("only reads and writes can be merged")
	ErrMismatch       = errors.Define("request does not match the merge submitter")
	ErrInvalidRequest = errors.Define("invalid request")
)

// Sink is where flushed requests go, usually the engine.
type Sink interface {
	Submit(req *request.Request) error
}

// pending holds contiguous requests waiting to be flushed.
type pending struct {
	reqs   *queue.Queue
	offset int64
	size   int
}

func (p *pending) len() int {
	return p.reqs.Length()
}

func (p *pending) accepts(req *request.Request, limit int) bool {
	if p.len() == 0 {
		return true
	}
	if p.size+len(req.Buf) > limit {
		return false
	}
	return p.offset+int64(p.size) == req.Offset
}

// push reports whether the pending range reached limit.
func (p *pending) push(req *request.Request, limit int) bool {
	if p.len() == 0 {
		p.offset = req.Offset
	}
	p.size += len(req.Buf)
	p.reqs.Add(req)
	return p.size >= limit
}

func (p *pending) take() []*request.Request {
	reqs := make([]*request.Request, 0, p.len())
	for p.len() > 0 {
		reqs = append(reqs, p.reqs.Remove().(*request.Request))
	}
	p.offset = -1
	p.size = 0
	return reqs
}

// Submitter coalesces sequential requests on one descriptor into larger transfers.
//
// Once Add is called the request's callback fires exactly once, including when
// Add or a later Flush returns an error.
type Submitter struct {
	mu      sync.Mutex
	fd      int
	action  request.Action
	lane    request.Lane
	limit   int
	sink    Sink
	pending pending
	logger  zerolog.Logger
}

func New(sink Sink, fd int, action request.Action, lane request.Lane, limit int, logger zerolog.Logger) (*Submitter, error) {
	if limit < 1 {
		return nil, errors.From(
			ErrInvalidLimit,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("limit", strconv.Itoa(limit)),
		)
	}
	if action != request.Read && action != request.Write {
		return nil, errors.From(
			ErrUnmergeable,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("action", action.String()),
		)
	}
	if !lane.Valid() {
		return nil, errors.From(
			ErrInvalidRequest,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("lane", lane.String()),
		)
	}
	return &Submitter{
		fd:     fd,
		action: action,
		lane:   lane,
		limit:  limit,
		sink:   sink,
		pending: pending{
			reqs:   queue.New(),
			offset: -1,
		},
		logger: logger,
	}, nil
}

func (s *Submitter) Fd() int {
	return s.fd
}

func (s *Submitter) Action() request.Action {
	return s.action
}

func (s *Submitter) Lane() request.Lane {
	return s.lane
}

func (s *Submitter) Limit() int {
	return s.limit
}

// Pending is the number of requests held back for merging.
func (s *Submitter) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.len()
}

// Add
// 添加请求，非连续或超出限制时先提交已缓存的请求。
func (s *Submitter) Add(req *request.Request) error {
	if req == nil || req.Callback == nil {
		return ErrInvalidRequest
	}
	if req.Fd != s.fd || req.Action != s.action || req.Offset < 0 {
		req.Complete(request.Failed(syscall.EINVAL))
		return errors.From(
			ErrMismatch,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("fd", strconv.Itoa(req.Fd)),
			errors.WithMeta("action", req.Action.String()),
		)
	}
	req.Lane = s.lane

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(req.Buf) >= s.limit || !s.pending.accepts(req, s.limit) {
		if err := s.flush(); err != nil {
			req.Complete(request.Failed(syscall.ECANCELED))
			return err
		}
	}
	if s.pending.push(req, s.limit) {
		return s.flush()
	}
	return nil
}

// Flush
// 提交所有缓存的请求。
func (s *Submitter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *Submitter) flush() error {
	switch s.pending.len() {
	case 0:
		return nil
	case 1:
		return s.submit(s.pending.take()[0])
	}
	offset, size := s.pending.offset, s.pending.size
	subs := s.pending.take()
	buf, err := buffers.Aligned(size)
	if err != nil {
		s.logger.Warn().Err(err).Int("size", size).Int("requests", len(subs)).Msg("merge buffer unavailable, submitting separately")
		var last error
		for _, sub := range subs {
			if subErr := s.submit(sub); subErr != nil {
				last = subErr
			}
		}
		return last
	}
	if s.action == request.Write {
		pos := 0
		for _, sub := range subs {
			pos += buf.CopyFrom(pos, sub.Buf)
		}
	}
	merged := request.Merge(subs, buf.Bytes(), func() {
		_ = buf.Free()
	})
	s.logger.Debug().Int("fd", s.fd).Int64("offset", offset).Int("size", size).Int("requests", len(subs)).Msg("merged")
	return s.submit(merged)
}

// submit hands req to the sink and fails it, and every request merged into it, when refused.
func (s *Submitter) submit(req *request.Request) error {
	if err := s.sink.Submit(req); err != nil {
		req.Complete(request.Failed(syscall.ECANCELED))
		return err
	}
	return nil
}
