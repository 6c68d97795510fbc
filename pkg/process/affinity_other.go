//go:build !linux

package process

import "syscall"

func SetCPUAffinity(_ int) error {
	return syscall.ENOTSUP
}
