package dio

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
)

// newExecutors builds the callback pool the engine owns.
func newExecutors(options []rxp.Option) (rxp.Executors, error) {
	executors, err := rxp.New(options...)
	if err != nil {
		return nil, errors.New(
			"create callback executors failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpNew),
			errors.WithWrap(err),
		)
	}
	return executors, nil
}
