//go:build unix

package process

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetCurrentProcessPriority
// raising the priority needs CAP_SYS_NICE.
func SetCurrentProcessPriority(level Priority) error {
	return unix.Setpriority(unix.PRIO_PROCESS, os.Getpid(), level.nice())
}
