//go:build !linux

package driver

import (
	"runtime"

	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/brickingsoft/errors"
	"github.com/rs/zerolog"
)

var ProbeIOURing = func(_ uint32) error {
	return errors.From(ErrUnsupported, errors.WithMeta("os", runtime.GOOS))
}

func Detect(_ zerolog.Logger) Kind {
	return Auto
}

func Start(_ *reference.Pointer[*Shared], _ Options) (Handle, error) {
	return nil, errors.From(ErrUnsupported, errors.WithMeta("os", runtime.GOOS))
}
