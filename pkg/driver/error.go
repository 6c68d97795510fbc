package driver

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrClosed            = errors.Define("engine closed")
	ErrUnsupported       = errors.Define("backend unsupported")
	ErrBackendSetup      = errors.Define("backend setup failed")
	ErrUnknownCompletion = errors.Define("completion for a slot without request")
	ErrSlotMismatch      = errors.Define("free slot count mismatch")
)

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "driver"
)

const (
	errMetaOpKey     = "op"
	errMetaOpSetup   = "setup"
	errMetaOpReap    = "reap"
	errMetaOpDestroy = "destroy"
)
