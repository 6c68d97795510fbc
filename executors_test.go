package dio_test

import (
	"context"
	"testing"

	"github.com/brickingsoft/dio"
	"github.com/brickingsoft/rxp"
	"github.com/stretchr/testify/require"
)

type signalTask chan struct{}

func (task signalTask) Handle(_ context.Context) {
	close(task)
}

func TestEngine_WithExecutors(t *testing.T) {
	executors, err := rxp.New()
	require.NoError(t, err)
	engine := newEngine(t, dio.WithExecutors(executors))
	f := openTemp(t)
	w := newWaiter(1)
	require.NoError(t, engine.Submit(dio.NewRequest(int(f.Fd()), dio.Write, 0, []byte("pool"), w.callback)))
	w.wait(t)
	require.NoError(t, engine.Close())

	// the engine leaves a supplied pool running
	require.True(t, executors.Running())
	done := make(signalTask)
	require.NoError(t, executors.Execute(context.Background(), done))
	<-done
	require.NoError(t, executors.Close())
}

func TestEngine_OwnExecutors(t *testing.T) {
	engine := newEngine(t, dio.WithCallbackWorkers(4), dio.WithMaxReadyGoroutinesIdleDuration(0))
	f := openTemp(t)
	w := newWaiter(8)
	for i := 0; i < 8; i++ {
		require.NoError(t, engine.Submit(dio.NewRequest(int(f.Fd()), dio.Write, int64(i)*512, make([]byte, 512), w.callback)))
	}
	w.wait(t)
	require.NoError(t, engine.Close())
}
