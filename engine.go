package dio

import (
	"strconv"
	"sync/atomic"

	"github.com/brickingsoft/dio/pkg/driver"
	"github.com/brickingsoft/dio/pkg/merge"
	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/rs/zerolog"
)

type Backend = driver.Kind

const (
	Auto    = driver.Auto
	AIO     = driver.AIO
	IOURing = driver.IOURing
)

type (
	Request  = request.Request
	Outcome  = request.Outcome
	Callback = request.Callback
	Action   = request.Action
	Lane     = request.Lane
)

const (
	Read      = request.Read
	Write     = request.Write
	Fsync     = request.Fsync
	Fallocate = request.Fallocate
)

const (
	PriorityLane = request.PriorityLane
	ReadLane     = request.ReadLane
	WriteLane    = request.WriteLane
)

// NewRequest
// 创建请求，默认按动作选择队列。
func NewRequest(fd int, action Action, offset int64, buf []byte, cb Callback) *Request {
	return request.New(fd, action, offset, buf, cb)
}

// core is what every clone of an engine shares, the last released reference shuts it down.
type core struct {
	shared       *reference.Pointer[*driver.Shared]
	handle       driver.Handle
	executors    rxp.Executors
	ownExecutors bool
	options      Options
	logger       zerolog.Logger
}

func (c *core) Close() (err error) {
	shared := c.shared.Value()
	shared.Shutdown()
	if waitErr := c.handle.Wait(); waitErr != nil {
		err = waitErr
	}
	if releaseErr := c.shared.Release(); releaseErr != nil && err == nil {
		err = releaseErr
	}
	if c.ownExecutors {
		if closeErr := c.executors.Close(); closeErr != nil && err == nil {
			err = errors.New(
				"close callback executors failed",
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, errMetaOpClose),
				errors.WithWrap(closeErr),
			)
		}
	}
	if err != nil {
		c.logger.Error().Err(err).Str("backend", c.handle.Kind().String()).Msg("engine closed with error")
		return
	}
	c.logger.Info().Str("backend", c.handle.Kind().String()).Msg("engine closed")
	return
}

// Engine
// 异步块设备读写引擎。
//
// 请求按优先、读、写三个队列加权调度，由一个提交协程送入内核，
// 由一个完成协程收割结果并交给回调执行器。
type Engine struct {
	ref    *reference.Pointer[*core]
	closed atomic.Bool
}

// New
// 创建引擎，选择内核接口并启动提交与完成协程。
func New(options ...Option) (engine *Engine, err error) {
	opts := defaultOptions()
	for _, option := range options {
		if option == nil {
			continue
		}
		if err = option(&opts); err != nil {
			return
		}
	}
	logger := opts.Logger

	sched, schedErr := scheduler.New(opts.Budgets)
	if schedErr != nil {
		err = schedErr
		return
	}

	executors := opts.Executors
	ownExecutors := executors == nil
	if ownExecutors {
		if executors, err = newExecutors(opts.AsRxpOptions()); err != nil {
			return
		}
	}

	shared := reference.Make(driver.NewShared(opts.Depth, sched, executors, logger))
	handle, startErr := driver.Start(shared, opts.driverOptions())
	if startErr != nil {
		_ = shared.Release()
		if ownExecutors {
			_ = executors.Close()
		}
		logger.Error().Err(startErr).Str("backend", opts.Backend.String()).Int("depth", opts.Depth).Msg("engine start failed")
		err = startErr
		return
	}
	logger.Info().Str("backend", handle.Kind().String()).Int("depth", handle.Depth()).Msg("engine started")

	engine = &Engine{
		ref: reference.Make(&core{
			shared:       shared,
			handle:       handle,
			executors:    executors,
			ownExecutors: ownExecutors,
			options:      opts,
			logger:       logger,
		}),
	}
	return
}

// Submit
// 提交请求，只做一次原子入队，不会阻塞。结果通过请求的回调返回。
func (engine *Engine) Submit(req *Request) error {
	if req == nil || !req.Valid() {
		return invalidRequest(req)
	}
	if engine.closed.Load() {
		return ErrClosed
	}
	return engine.ref.Value().shared.Value().Enqueue(req)
}

// Merger
// 创建合并提交器，将同一文件上连续的读或写合并为一次请求。
func (engine *Engine) Merger(fd int, action Action, lane Lane) (*merge.Submitter, error) {
	if engine.closed.Load() {
		return nil, ErrClosed
	}
	c := engine.ref.Value()
	return merge.New(engine, fd, action, lane, c.options.MergeLimit, c.logger)
}

// Clone
// 复制一个引用，最后一个引用关闭时引擎才会关闭。
func (engine *Engine) Clone() (*Engine, error) {
	if engine.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := engine.ref.TryAcquire(); !ok {
		return nil, ErrClosed
	}
	return &Engine{ref: engine.ref}, nil
}

// Close
// 关闭当前引用。最后一个引用会等待所有请求完成，再释放内核资源。
func (engine *Engine) Close() error {
	if !engine.closed.CompareAndSwap(false, true) {
		return nil
	}
	return engine.ref.Release()
}

func (engine *Engine) Backend() Backend {
	return engine.ref.Value().handle.Kind()
}

func (engine *Engine) Depth() int {
	return engine.ref.Value().handle.Depth()
}

// Running is the number of requests inside the kernel.
func (engine *Engine) Running() int {
	return engine.ref.Value().handle.Running()
}

// Pending is the number of requests waiting in the lanes.
func (engine *Engine) Pending() int {
	return int(engine.ref.Value().shared.Value().Scheduler.Len())
}

func invalidRequest(req *Request) error {
	if req == nil {
		return errors.From(
			ErrInvalidRequest,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpSubmit),
		)
	}
	return errors.From(
		ErrInvalidRequest,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpSubmit),
		errors.WithMeta("fd", strconv.Itoa(req.Fd)),
		errors.WithMeta("action", req.Action.String()),
		errors.WithMeta("lane", req.Lane.String()),
	)
}
