//go:build linux

package buffers

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// mmap returns page aligned memory, pages are a multiple of MinAlign.
func allocate(size int) (*Buffer, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	buf := &Buffer{
		b:    b,
		free: munmap,
	}
	runtime.SetFinalizer(buf, func(buf *Buffer) {
		_ = buf.Free()
	})
	return buf, nil
}

func munmap(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	return nil
}
