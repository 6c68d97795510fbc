//go:build linux

package process

import (
	"runtime"
	"strconv"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling thread, callers lock the goroutine to its thread first.
func SetCPUAffinity(index int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(index % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return errors.New(
			"set cpu affinity failed",
			errors.WithMeta("cpu", strconv.Itoa(index)),
			errors.WithWrap(err),
		)
	}
	return nil
}
