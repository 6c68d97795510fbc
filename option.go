package dio

import (
	"strconv"
	"time"

	"github.com/brickingsoft/dio/pkg/driver"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/rs/zerolog"
)

const (
	DefaultDepth       = driver.DefaultDepth
	DefaultMergeLimit  = 128 << 10
	DefaultWaitTimeout = time.Second
)

type Options struct {
	RxpOptions   rxp.Options
	Backend      Backend
	Depth        int
	Budgets      scheduler.Budgets
	WaitTimeout  time.Duration
	MergeLimit   int
	SubmitterCPU int
	CompleterCPU int
	Executors    rxp.Executors
	Logger       zerolog.Logger
}

func defaultOptions() Options {
	return Options{
		Backend:      Auto,
		Depth:        DefaultDepth,
		Budgets:      scheduler.DefaultBudgets(),
		WaitTimeout:  DefaultWaitTimeout,
		MergeLimit:   DefaultMergeLimit,
		SubmitterCPU: -1,
		CompleterCPU: -1,
		Logger:       zerolog.Nop(),
	}
}

func (options *Options) AsRxpOptions() []rxp.Option {
	opts := make([]rxp.Option, 0, 1)
	if n := options.RxpOptions.MaxprocsOptions.MinGOMAXPROCS; n > 0 {
		opts = append(opts, rxp.WithMinGOMAXPROCS(n))
	}
	if n := options.RxpOptions.MaxGoroutines; n > 0 {
		opts = append(opts, rxp.WithMaxGoroutines(n))
	}
	if n := options.RxpOptions.MaxReadyGoroutinesIdleDuration; n > 0 {
		opts = append(opts, rxp.WithMaxReadyGoroutinesIdleDuration(n))
	}
	if n := options.RxpOptions.CloseTimeout; n > 0 {
		opts = append(opts, rxp.WithCloseTimeout(n))
	}
	return opts
}

func (options *Options) driverOptions() driver.Options {
	return driver.Options{
		Kind:         options.Backend,
		Depth:        options.Depth,
		WaitTimeout:  options.WaitTimeout,
		SubmitterCPU: options.SubmitterCPU,
		CompleterCPU: options.CompleterCPU,
	}
}

type Option func(options *Options) (err error)

// WithBackend
// 设置内核接口，默认为 Auto，即优先使用 io_uring，不可用时使用 aio。
func WithBackend(backend Backend) Option {
	return func(options *Options) (err error) {
		switch backend {
		case Auto, AIO, IOURing:
			options.Backend = backend
		default:
			err = errors.From(ErrUnsupported, errors.WithMeta("backend", backend.String()))
		}
		return
	}
}

// WithDepth
// 设置队列深度，即同时在内核中的请求数上限。默认为 128。
func WithDepth(depth int) Option {
	return func(options *Options) (err error) {
		if depth < 1 {
			err = errors.From(ErrInvalidDepth, errors.WithMeta("depth", strconv.Itoa(depth)))
			return
		}
		options.Depth = depth
		return
	}
}

// WithBudgets
// 设置各队列每轮调度可提交的请求数。
func WithBudgets(budgets scheduler.Budgets) Option {
	return func(options *Options) (err error) {
		if err = budgets.Validate(); err != nil {
			return
		}
		options.Budgets = budgets
		return
	}
}

// WithWaitTimeout
// 设置 aio 等待完成事件的超时时长，超时后重新等待。
func WithWaitTimeout(timeout time.Duration) Option {
	return func(options *Options) (err error) {
		if timeout > 0 {
			options.WaitTimeout = timeout
		}
		return
	}
}

// WithMergeLimit
// 设置合并请求的最大字节数。
func WithMergeLimit(limit int) Option {
	return func(options *Options) (err error) {
		if limit > 0 {
			options.MergeLimit = limit
		}
		return
	}
}

// WithAffinityCPU
// 将提交协程与完成协程绑定到指定的 CPU，负数表示不绑定。
func WithAffinityCPU(submitter int, completer int) Option {
	return func(options *Options) (err error) {
		options.SubmitterCPU = submitter
		options.CompleterCPU = completer
		return
	}
}

// WithExecutors
// 使用外部的执行器执行回调，引擎关闭时不会关闭它。
func WithExecutors(executors rxp.Executors) Option {
	return func(options *Options) (err error) {
		options.Executors = executors
		return
	}
}

// WithCallbackWorkers
// 设置回调执行器的最大协程数。
func WithCallbackWorkers(n int) Option {
	return func(options *Options) error {
		return rxp.WithMaxGoroutines(n)(&options.RxpOptions)
	}
}

// WithMinGOMAXPROCS
// 最小 GOMAXPROCS 值，只在 linux 环境下有效。一般用于 docker 容器环境。
func WithMinGOMAXPROCS(n int) Option {
	return func(options *Options) error {
		return rxp.WithMinGOMAXPROCS(n)(&options.RxpOptions)
	}
}

// WithMaxReadyGoroutinesIdleDuration
// 设置准备中协程最大闲置时长
func WithMaxReadyGoroutinesIdleDuration(d time.Duration) Option {
	return func(options *Options) error {
		return rxp.WithMaxReadyGoroutinesIdleDuration(d)(&options.RxpOptions)
	}
}

// WithCloseTimeout
// 设置回调执行器的关闭超时时长
func WithCloseTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		return rxp.WithCloseTimeout(timeout)(&options.RxpOptions)
	}
}

// WithLogger
// 设置日志，默认不输出。
func WithLogger(logger zerolog.Logger) Option {
	return func(options *Options) (err error) {
		options.Logger = logger
		return
	}
}
