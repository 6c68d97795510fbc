package driver

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func kinds(t *testing.T) []Kind {
	out := []Kind{AIO}
	if err := ProbeIOURing(2); err != nil {
		t.Log("io_uring unavailable:", err)
	} else {
		out = append(out, IOURing)
	}
	return out
}

func startKernel(t *testing.T, kind Kind, depth int) (*reference.Pointer[*Shared], Handle) {
	shared := newTestShared(t, depth, scheduler.DefaultBudgets())
	options := DefaultOptions()
	options.Kind = kind
	options.Depth = depth
	options.WaitTimeout = 100 * time.Millisecond
	handle, err := Start(shared, options)
	require.NoError(t, err)
	require.Equal(t, kind, handle.Kind())
	return shared, handle
}

func stopKernel(t *testing.T, shared *reference.Pointer[*Shared], handle Handle) {
	shared.Value().Shutdown()
	require.NoError(t, handle.Wait())
	require.Equal(t, 0, handle.Running())
	require.NoError(t, shared.Release())
}

func tempFile(t *testing.T) *os.File {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "data"), os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f
}

type result struct {
	req     *request.Request
	outcome request.Outcome
}

func submitWait(t *testing.T, shared *Shared, reqs ...*request.Request) []result {
	ch := make(chan result, len(reqs))
	for _, req := range reqs {
		req.Callback = func(req *request.Request, outcome request.Outcome) {
			ch <- result{req: req, outcome: outcome}
		}
		require.NoError(t, shared.Enqueue(req))
	}
	out := make([]result, 0, len(reqs))
	for range reqs {
		select {
		case r := <-ch:
			out = append(out, r)
		case <-time.After(10 * time.Second):
			t.Fatal("completion timed out")
		}
	}
	return out
}

func TestKernel_ReadWrite(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			shared, handle := startKernel(t, kind, 8)
			f := tempFile(t)
			fd := int(f.Fd())

			const blocks = 32
			writes := make([]*request.Request, blocks)
			for i := range writes {
				writes[i] = request.New(fd, request.Write, int64(i*512), bytes.Repeat([]byte{byte(i)}, 512), nil)
			}
			for _, r := range submitWait(t, shared.Value(), writes...) {
				require.True(t, r.outcome.Completed(), r.outcome.Err())
				require.Equal(t, 512, r.outcome.N)
			}

			reads := make([]*request.Request, blocks)
			for i := range reads {
				reads[i] = request.New(fd, request.Read, int64(i*512), make([]byte, 512), nil)
			}
			for _, r := range submitWait(t, shared.Value(), reads...) {
				require.True(t, r.outcome.Completed(), r.outcome.Err())
				require.Equal(t, 512, r.outcome.N)
				want := bytes.Repeat([]byte{byte(r.req.Offset / 512)}, 512)
				require.Equal(t, want, r.req.Buf)
			}

			stopKernel(t, shared, handle)
		})
	}
}

func TestKernel_ShortRead(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			shared, handle := startKernel(t, kind, 4)
			f := tempFile(t)
			_, err := f.WriteAt([]byte("hello"), 0)
			require.NoError(t, err)

			rs := submitWait(t, shared.Value(),
				request.New(int(f.Fd()), request.Read, 0, make([]byte, 4096), nil),
				request.New(int(f.Fd()), request.Read, 1<<20, make([]byte, 4096), nil),
			)
			for _, r := range rs {
				require.True(t, r.outcome.Completed(), r.outcome.Err())
				if r.req.Offset == 0 {
					assert.Equal(t, 5, r.outcome.N)
					assert.Equal(t, "hello", string(r.req.Buf[:5]))
				} else {
					assert.Equal(t, 0, r.outcome.N)
				}
			}
			stopKernel(t, shared, handle)
		})
	}
}

func TestKernel_Errors(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			shared, handle := startKernel(t, kind, 4)
			r := submitWait(t, shared.Value(), request.New(1<<20, request.Read, 0, make([]byte, 16), nil))[0]
			require.False(t, r.outcome.Completed())
			assert.Equal(t, syscall.EBADF, r.outcome.Errno)
			assert.ErrorIs(t, r.outcome.Err(), syscall.EBADF)
			stopKernel(t, shared, handle)
		})
	}
}

func TestKernel_Fsync(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			shared, handle := startKernel(t, kind, 2)
			f := tempFile(t)
			r := submitWait(t, shared.Value(), request.New(int(f.Fd()), request.Fsync, 0, nil, nil))[0]
			stopKernel(t, shared, handle)
			if kind == AIO && r.outcome.Errno == syscall.EINVAL {
				t.Skip("filesystem does not support aio fsync")
			}
			require.True(t, r.outcome.Completed(), r.outcome.Err())
		})
	}
}

func TestKernel_Fallocate(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			shared, handle := startKernel(t, kind, 2)
			f := tempFile(t)
			req := request.New(int(f.Fd()), request.Fallocate, 0, nil, nil)
			req.Length = 4096
			r := submitWait(t, shared.Value(), req)[0]
			if kind == AIO {
				assert.Equal(t, syscall.EOPNOTSUPP, r.outcome.Errno)
			} else {
				require.True(t, r.outcome.Completed(), r.outcome.Err())
				info, err := f.Stat()
				require.NoError(t, err)
				assert.EqualValues(t, 4096, info.Size())
			}
			stopKernel(t, shared, handle)
		})
	}
}

func TestKernel_ShutdownDrain(t *testing.T) {
	for _, kind := range kinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			const depth = 4
			for _, n := range []int{0, 1, depth, 3*depth + 1} {
				shared, handle := startKernel(t, kind, depth)
				f := tempFile(t)
				count := make(chan struct{}, n)
				for i := 0; i < n; i++ {
					req := request.New(int(f.Fd()), request.Write, int64(i*64), make([]byte, 64), func(*request.Request, request.Outcome) {
						count <- struct{}{}
					})
					require.NoError(t, shared.Value().Enqueue(req))
				}
				stopKernel(t, shared, handle)
				require.Len(t, count, n)
			}
		})
	}
}

func TestStart_AutoFallback(t *testing.T) {
	probe := ProbeIOURing
	ProbeIOURing = func(uint32) error {
		return syscall.ENOSYS
	}
	defer func() {
		ProbeIOURing = probe
	}()
	shared := newTestShared(t, 2, scheduler.DefaultBudgets())
	handle, err := Start(shared, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, AIO, handle.Kind())
	stopKernel(t, shared, handle)
}

func TestStart_InvalidDepth(t *testing.T) {
	shared := newTestShared(t, 1, scheduler.DefaultBudgets())
	options := DefaultOptions()
	options.Depth = 0
	_, err := Start(shared, options)
	require.Error(t, err)
	require.NoError(t, shared.Release())
}

func TestStart_SetupFailed(t *testing.T) {
	shared := newTestShared(t, 1, scheduler.DefaultBudgets())
	options := DefaultOptions()
	options.Kind = AIO
	options.Depth = 1 << 30
	_, err := Start(shared, options)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendSetup))
	t.Log(err)
	require.NoError(t, shared.Release())
}

func TestStart_AutoRingSetupFallback(t *testing.T) {
	probe, create := ProbeIOURing, newURing
	ProbeIOURing = func(uint32) error {
		return nil
	}
	newURing = func(int) (*uringBackend, error) {
		return nil, syscall.ENOMEM
	}
	defer func() {
		ProbeIOURing, newURing = probe, create
	}()

	shared := newTestShared(t, 4, scheduler.DefaultBudgets())
	options := DefaultOptions()
	options.Depth = 4
	handle, err := Start(shared, options)
	require.NoError(t, err)
	require.Equal(t, AIO, handle.Kind())
	stopKernel(t, shared, handle)

	// an explicit io_uring request does not fall back
	shared = newTestShared(t, 4, scheduler.DefaultBudgets())
	options.Kind = IOURing
	_, err = Start(shared, options)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendSetup))
	require.NoError(t, shared.Release())
}

func TestStart_AutoDepthAboveRingMax(t *testing.T) {
	if err := ProbeIOURing(2); err != nil {
		t.Skip("io_uring unavailable:", err)
	}
	const depth = 40000
	shared := newTestShared(t, depth, scheduler.DefaultBudgets())
	options := DefaultOptions()
	options.Depth = depth
	options.WaitTimeout = 100 * time.Millisecond
	handle, err := Start(shared, options)
	if errors.Is(err, ErrBackendSetup) {
		require.NoError(t, shared.Release())
		t.Skip("aio context limit too low:", err)
	}
	require.NoError(t, err)
	require.Equal(t, AIO, handle.Kind())
	stopKernel(t, shared, handle)
}

func TestURing_EntryLength(t *testing.T) {
	n, err := entryLength(4096)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, n)

	if strconv.IntSize < 64 {
		return
	}
	limit := int64(math.MaxUint32)
	n, err = entryLength(int(limit))
	require.NoError(t, err)
	assert.EqualValues(t, uint32(math.MaxUint32), n)

	_, err = entryLength(int(limit + 1))
	assert.Equal(t, unix.EINVAL, err)
}
