//go:build linux

package driver

import (
	"strconv"

	"github.com/brickingsoft/dio/pkg/kernel"
	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/brickingsoft/dio/pkg/slots"
	"github.com/brickingsoft/errors"
	"github.com/pawelgaczynski/giouring"
	"github.com/rs/zerolog"
)

// ProbeIOURing reports whether an io_uring instance can be created. Tests replace it.
var ProbeIOURing = func(entries uint32) error {
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return err
	}
	ring.QueueExit()
	return nil
}

// Detect picks io_uring when the kernel can create one and AIO otherwise.
func Detect(logger zerolog.Logger) Kind {
	if v, err := kernel.Get(); err == nil && !v.GTE(5, 1, 0) {
		logger.Info().Str("kernel", v.String()).Msg("kernel predates io_uring, using aio")
		return AIO
	}
	if err := ProbeIOURing(2); err != nil {
		logger.Warn().Err(err).Msg("io_uring unavailable, falling back to aio")
		return AIO
	}
	return IOURing
}

// newURing creates the ring at the configured depth. Tests replace it.
var newURing = newURingBackend

// Start picks the backend once and runs a driver typed on it.
// In Auto mode a ring that cannot be created at the configured depth falls back to AIO.
func Start(shared *reference.Pointer[*Shared], options Options) (Handle, error) {
	depth := options.Depth
	if depth < 1 {
		return nil, errors.From(slots.ErrInvalidDepth, errors.WithMeta("depth", strconv.Itoa(depth)))
	}
	logger := shared.Value().Logger
	kind := options.Kind
	auto := kind == Auto
	if auto {
		kind = Detect(logger)
	}
	if kind == IOURing {
		backend, err := newURing(depth)
		if err == nil {
			table, tableErr := slots.New[struct{}](depth)
			if tableErr != nil {
				_ = backend.Close()
				return nil, tableErr
			}
			return Run[struct{}, *uringBackend](kind, shared, table, backend, options), nil
		}
		if !auto {
			return nil, setupFailed(kind, err)
		}
		logger.Warn().Err(err).Int("depth", depth).Msg("io_uring setup failed, falling back to aio")
		kind = AIO
	}
	switch kind {
	case AIO:
		backend, err := newAIOBackend(depth, options.WaitTimeout)
		if err != nil {
			return nil, setupFailed(kind, err)
		}
		table, err := slots.New[iocb](depth)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return Run[iocb, *aioBackend](kind, shared, table, backend, options), nil
	default:
		return nil, errors.From(ErrUnsupported, errors.WithMeta("backend", kind.String()))
	}
}

func setupFailed(kind Kind, err error) error {
	return errors.From(
		ErrBackendSetup,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpSetup),
		errors.WithMeta("backend", kind.String()),
		errors.WithWrap(err),
	)
}
