package buffers

import (
	"strconv"

	"github.com/brickingsoft/errors"
)

const (
	// MinAlign is the alignment direct I/O needs for offsets, sizes and addresses.
	MinAlign = 512
	MaxSize  = 1 << 31
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "buffers"
)

var (
	ErrAllocateZero = errors.Define("cannot allocate zero")
	ErrTooLarge     = errors.Define("buffer too large")
	ErrAllocate     = errors.Define("allocate buffer failed")
)

// IsAligned reports whether offset and size are multiples of MinAlign.
func IsAligned(offset int64, size int) bool {
	return offset&(MinAlign-1) == 0 && size&(MinAlign-1) == 0
}

// Buffer is a block of memory whose address is aligned to MinAlign.
type Buffer struct {
	b    []byte
	free func([]byte) error
}

// Aligned
// 分配对齐内存，使用完后需调用 Free。
func Aligned(size int) (*Buffer, error) {
	if size < 1 {
		return nil, ErrAllocateZero
	}
	if size > MaxSize {
		return nil, errors.From(
			ErrTooLarge,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("size", strconv.Itoa(size)),
		)
	}
	buf, err := allocate(size)
	if err != nil {
		return nil, errors.From(
			ErrAllocate,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("size", strconv.Itoa(size)),
			errors.WithWrap(err),
		)
	}
	return buf, nil
}

func (buf *Buffer) Bytes() []byte {
	return buf.b
}

func (buf *Buffer) Len() int {
	return len(buf.b)
}

// CopyFrom copies p into the buffer at offset and returns the bytes copied.
func (buf *Buffer) CopyFrom(offset int, p []byte) int {
	if offset < 0 || offset >= len(buf.b) {
		return 0
	}
	return copy(buf.b[offset:], p)
}

// Zero clears n bytes starting at offset.
func (buf *Buffer) Zero(offset int, n int) {
	if offset < 0 || offset >= len(buf.b) {
		return
	}
	end := offset + n
	if end > len(buf.b) {
		end = len(buf.b)
	}
	clear(buf.b[offset:end])
}

// Free returns the memory. The buffer must not be used afterwards.
func (buf *Buffer) Free() (err error) {
	if buf.b == nil {
		return
	}
	b := buf.b
	buf.b = nil
	if buf.free != nil {
		err = buf.free(b)
	}
	return
}
