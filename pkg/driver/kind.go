package driver

import (
	"strings"

	"github.com/brickingsoft/errors"
)

// Kind selects the kernel facility, fixed for the lifetime of an engine.
type Kind int

const (
	Auto Kind = iota
	AIO
	IOURing
)

func (kind Kind) String() string {
	switch kind {
	case AIO:
		return "aio"
	case IOURing:
		return "iouring"
	default:
		return "auto"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "aio", "libaio":
		return AIO, nil
	case "iouring", "io_uring", "uring":
		return IOURing, nil
	default:
		return Auto, errors.New(
			"unknown backend",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("backend", s),
			errors.WithWrap(ErrUnsupported),
		)
	}
}

func (kind Kind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

func (kind *Kind) UnmarshalText(text []byte) (err error) {
	*kind, err = ParseKind(string(text))
	return
}
