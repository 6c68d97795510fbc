//go:build linux

package driver

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocbCmdPread  = 0
	iocbCmdPwrite = 1
	iocbCmdFsync  = 2
)

// iocb mirrors struct iocb for little endian 64-bit kernels.
type iocb struct {
	data     uint64
	key      uint32
	rwFlags  int32
	opcode   uint16
	reqprio  int16
	fd       uint32
	buf      uint64
	nbytes   uint64
	offset   int64
	reserved uint64
	flags    uint32
	resfd    uint32
}

type ioEvent struct {
	data uint64
	obj  uint64
	res  int64
	res2 int64
}

type aioContext uintptr

func ioSetup(nr int) (ctx aioContext, err error) {
	_, _, errno := unix.Syscall(unix.SYS_IO_SETUP, uintptr(nr), uintptr(unsafe.Pointer(&ctx)), 0)
	if errno != 0 {
		err = errno
	}
	return
}

func ioDestroy(ctx aioContext) error {
	_, _, errno := unix.Syscall(unix.SYS_IO_DESTROY, uintptr(ctx), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioSubmit(ctx aioContext, cbs []*iocb) (int, error) {
	n, _, errno := unix.Syscall(unix.SYS_IO_SUBMIT, uintptr(ctx), uintptr(len(cbs)), uintptr(unsafe.Pointer(&cbs[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func ioGetevents(ctx aioContext, min int, events []ioEvent, timeout *unix.Timespec) (int, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_IO_GETEVENTS,
		uintptr(ctx),
		uintptr(min),
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		uintptr(unsafe.Pointer(timeout)),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}
