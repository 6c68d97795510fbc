//go:build !unix

package process

import "syscall"

func SetCurrentProcessPriority(_ Priority) error {
	return syscall.EINVAL
}
