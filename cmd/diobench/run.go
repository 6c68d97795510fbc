package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/dio"
	"github.com/brickingsoft/dio/pkg/driver"
	"github.com/brickingsoft/dio/pkg/limiter"
	"github.com/brickingsoft/dio/pkg/process"
	"github.com/brickingsoft/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errVerify = errors.Define("read back mismatch")

type runOptions struct {
	Config   string
	Backend  string
	Depth    int
	Size     int
	Count    int
	Merge    bool
	Dir      string
	Priority string
	Inflight int
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write a temp file through the engine, then read it back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, rootOpts.logger(cmd.ErrOrStderr()), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Config, "config", "", "yaml config file")
	cmd.Flags().StringVar(&opts.Backend, "backend", "auto", "backend (auto|aio|io_uring)")
	cmd.Flags().IntVar(&opts.Depth, "depth", dio.DefaultDepth, "queue depth")
	cmd.Flags().IntVar(&opts.Size, "size", 4096, "block size in bytes")
	cmd.Flags().IntVar(&opts.Count, "count", 10000, "number of blocks")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "coalesce sequential blocks")
	cmd.Flags().StringVar(&opts.Dir, "dir", os.TempDir(), "directory of the temp file")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "process priority (norm|high|realtime|idle)")
	cmd.Flags().IntVar(&opts.Inflight, "inflight", 0, "max requests outstanding at once, 0 is unbounded")
	return cmd
}

func engineOptions(cmd *cobra.Command, logger zerolog.Logger, opts *runOptions) ([]dio.Option, error) {
	options := []dio.Option{dio.WithLogger(logger)}
	priority := opts.Priority
	if opts.Config != "" {
		config, err := dio.LoadConfig(opts.Config)
		if err != nil {
			return nil, err
		}
		options = append(options, config.Options()...)
		if priority == "" {
			priority = config.Priority
		}
	}
	flags := cmd.Flags()
	if opts.Config == "" || flags.Changed("backend") {
		backend, err := driver.ParseKind(opts.Backend)
		if err != nil {
			return nil, err
		}
		options = append(options, dio.WithBackend(backend))
	}
	if opts.Config == "" || flags.Changed("depth") {
		options = append(options, dio.WithDepth(opts.Depth))
	}
	if priority != "" {
		level, err := process.ParsePriority(priority)
		if err != nil {
			return nil, err
		}
		if err = dio.UseProcessPriority(level); err != nil {
			logger.Warn().Err(err).Str("priority", level.String()).Msg("process priority not applied")
		}
	}
	return options, nil
}

type tally struct {
	wg     sync.WaitGroup
	limit  *limiter.Limiter
	failed atomic.Int64
	bytes  atomic.Int64
	first  atomic.Pointer[error]
}

func (t *tally) callback(_ *dio.Request, outcome dio.Outcome) {
	if outcome.Completed() {
		t.bytes.Add(int64(outcome.N))
	} else {
		t.failed.Add(1)
		err := outcome.Err()
		t.first.CompareAndSwap(nil, &err)
	}
	t.limit.Release()
	t.wg.Done()
}

func (t *tally) err() error {
	if p := t.first.Load(); p != nil {
		return *p
	}
	return nil
}

func block(i int, size int) []byte {
	return bytes.Repeat([]byte{byte(i)}, size)
}

func runBench(cmd *cobra.Command, logger zerolog.Logger, opts *runOptions) error {
	if opts.Size < 1 || opts.Count < 1 {
		return errors.New("size and count must be positive")
	}
	options, err := engineOptions(cmd, logger, opts)
	if err != nil {
		return err
	}
	engine, err := dio.New(options...)
	if err != nil {
		return err
	}
	defer engine.Close()

	runID := uuid.Must(uuid.NewV7()).String()
	path := filepath.Join(opts.Dir, "diobench-"+runID+".data")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(path)
	}()
	fd := int(f.Fd())
	logger = logger.With().Str("run", runID).Str("backend", engine.Backend().String()).Logger()
	logger.Info().Str("file", path).Int("size", opts.Size).Int("count", opts.Count).Bool("merge", opts.Merge).Msg("bench started")

	var merger interface {
		Add(req *dio.Request) error
		Flush() error
	}
	inflight := limiter.New(int64(opts.Inflight))
	submit := func(req *dio.Request) error {
		if !inflight.TryAcquire() {
			// pending merged requests hold slots until flushed
			if merger != nil {
				if err := merger.Flush(); err != nil {
					return err
				}
			}
			if err := inflight.Acquire(cmd.Context()); err != nil {
				return err
			}
		}
		if merger != nil {
			return merger.Add(req)
		}
		return engine.Submit(req)
	}

	// writes
	if opts.Merge {
		if merger, err = engine.Merger(fd, dio.Write, dio.WriteLane); err != nil {
			return err
		}
	}
	writes := &tally{limit: inflight}
	writes.wg.Add(opts.Count)
	start := time.Now()
	for i := 0; i < opts.Count; i++ {
		if err = submit(dio.NewRequest(fd, dio.Write, int64(i)*int64(opts.Size), block(i, opts.Size), writes.callback)); err != nil {
			return err
		}
	}
	if merger != nil {
		if err = merger.Flush(); err != nil {
			return err
		}
	}
	writes.wg.Wait()
	report(logger, "write", writes, time.Since(start))
	if err = writes.err(); err != nil {
		return err
	}

	syncs := &tally{limit: limiter.New(0)}
	syncs.wg.Add(1)
	if err = engine.Submit(dio.NewRequest(fd, dio.Fsync, 0, nil, syncs.callback)); err != nil {
		return err
	}
	syncs.wg.Wait()
	if err = syncs.err(); err != nil {
		logger.Warn().Err(err).Msg("fsync failed")
	}

	// reads
	merger = nil
	if opts.Merge {
		if merger, err = engine.Merger(fd, dio.Read, dio.ReadLane); err != nil {
			return err
		}
	}
	bufs := make([][]byte, opts.Count)
	reads := &tally{limit: inflight}
	reads.wg.Add(opts.Count)
	start = time.Now()
	for i := 0; i < opts.Count; i++ {
		bufs[i] = make([]byte, opts.Size)
		if err = submit(dio.NewRequest(fd, dio.Read, int64(i)*int64(opts.Size), bufs[i], reads.callback)); err != nil {
			return err
		}
	}
	if merger != nil {
		if err = merger.Flush(); err != nil {
			return err
		}
	}
	reads.wg.Wait()
	report(logger, "read", reads, time.Since(start))
	if err = reads.err(); err != nil {
		return err
	}
	for i, buf := range bufs {
		if !bytes.Equal(buf, block(i, opts.Size)) {
			return errors.From(errVerify, errors.WithMeta("block", strconv.Itoa(i)))
		}
	}
	return engine.Close()
}

func report(logger zerolog.Logger, phase string, t *tally, elapsed time.Duration) {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}
	logger.Info().
		Str("phase", phase).
		Int64("bytes", t.bytes.Load()).
		Int64("failed", t.failed.Load()).
		Dur("elapsed", elapsed).
		Float64("mib_per_sec", float64(t.bytes.Load())/seconds/(1<<20)).
		Msg("phase done")
}
