package buffers

import (
	"strconv"

	"github.com/brickingsoft/errors"
	"github.com/pierrec/lz4/v4"
)

var (
	ErrCompress   = errors.Define("lz4 compress failed")
	ErrDecompress = errors.Define("lz4 decompress failed")
)

// CompressBound is the largest size Compress can produce for n input bytes.
func CompressBound(n int) int {
	return lz4.CompressBlockBound(n)
}

// Compress writes the lz4 block of src into dst and returns its length.
// dst should be at least CompressBound(len(src)) bytes.
func Compress(src []byte, dst []byte) (int, error) {
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil || n <= 0 {
		return 0, codecFailed(ErrCompress, src, dst, err)
	}
	return n, nil
}

// Decompress expands the lz4 block src into dst and returns the length written.
func Decompress(src []byte, dst []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil || n <= 0 {
		return 0, codecFailed(ErrDecompress, src, dst, err)
	}
	return n, nil
}

func codecFailed(kind error, src []byte, dst []byte, cause error) error {
	if cause == nil {
		return errors.From(
			kind,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("src", strconv.Itoa(len(src))),
			errors.WithMeta("dst", strconv.Itoa(len(dst))),
		)
	}
	return errors.From(
		kind,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta("src", strconv.Itoa(len(src))),
		errors.WithMeta("dst", strconv.Itoa(len(dst))),
		errors.WithWrap(cause),
	)
}
