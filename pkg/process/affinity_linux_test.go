package process_test

import (
	"runtime"
	"testing"

	"github.com/brickingsoft/dio/pkg/process"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetCPUAffinity(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var saved unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &saved))
	defer func() {
		_ = unix.SchedSetaffinity(0, &saved)
	}()
	require.NoError(t, process.SetCPUAffinity(0))
}
