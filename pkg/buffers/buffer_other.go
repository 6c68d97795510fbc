//go:build !linux

package buffers

import "unsafe"

// allocate over-allocates on the heap and slices at the first aligned address.
func allocate(size int) (*Buffer, error) {
	raw := make([]byte, size+MinAlign)
	shift := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & (MinAlign - 1)); rem != 0 {
		shift = MinAlign - rem
	}
	return &Buffer{b: raw[shift : shift+size : shift+size]}, nil
}
