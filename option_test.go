package dio_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/brickingsoft/dio"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_AsRxpOptions(t *testing.T) {
	opts := make([]dio.Option, 0, 1)
	opts = append(opts, dio.WithCloseTimeout(1*time.Second))
	opts = append(opts, dio.WithCallbackWorkers(10))
	opts = append(opts, dio.WithMaxReadyGoroutinesIdleDuration(2*time.Second))
	opts = append(opts, dio.WithMinGOMAXPROCS(3))

	options := dio.Options{}
	for _, opt := range opts {
		require.NoError(t, opt(&options))
	}
	rops := options.AsRxpOptions()
	rps := rxp.Options{}
	for _, rop := range rops {
		require.NoError(t, rop(&rps))
	}
	assert.Equal(t, 10, rps.MaxGoroutines)
	assert.Equal(t, time.Second, rps.CloseTimeout)
	t.Log(fmt.Sprintf("%+v", rps))
}

func TestOptions_Validate(t *testing.T) {
	options := dio.Options{}
	require.NoError(t, dio.WithDepth(8)(&options))
	assert.Equal(t, 8, options.Depth)
	assert.True(t, errors.Is(dio.WithDepth(-1)(&options), dio.ErrInvalidDepth))
	assert.Equal(t, 8, options.Depth)

	assert.True(t, dio.IsUnsupported(dio.WithBackend(dio.Backend(7))(&options)))
	require.NoError(t, dio.WithBackend(dio.AIO)(&options))
	assert.Equal(t, dio.AIO, options.Backend)

	require.Error(t, dio.WithBudgets(scheduler.Budgets{Priority: 1})(&options))
	require.NoError(t, dio.WithBudgets(scheduler.Budgets{Priority: 1, Read: 1, Write: 1})(&options))

	require.NoError(t, dio.WithMergeLimit(0)(&options))
	assert.Zero(t, options.MergeLimit)
	require.NoError(t, dio.WithAffinityCPU(2, 3)(&options))
	assert.Equal(t, 2, options.SubmitterCPU)
	assert.Equal(t, 3, options.CompleterCPU)
}
