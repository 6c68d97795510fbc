package dio

import (
	"github.com/brickingsoft/dio/pkg/driver"
	"github.com/brickingsoft/dio/pkg/slots"
	"github.com/brickingsoft/errors"
)

var (
	ErrClosed         = driver.ErrClosed
	ErrUnsupported    = driver.ErrUnsupported
	ErrBackendSetup   = driver.ErrBackendSetup
	ErrInvalidDepth   = slots.ErrInvalidDepth
	ErrInvalidRequest = errors.Define("invalid request")
	ErrInvalidConfig  = errors.Define("invalid config")
)

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "dio"
)

const (
	errMetaOpKey    = "op"
	errMetaOpNew    = "new"
	errMetaOpSubmit = "submit"
	errMetaOpClose  = "close"
	errMetaOpConfig = "config"
)
