package kernel

import (
	"fmt"

	"github.com/brickingsoft/errors"
)

var ErrUnknownVersion = errors.Define("cannot parse kernel version")

type Version struct {
	Major  int
	Minor  int
	Patch  int
	Flavor string
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Flavor)
}

func (v Version) GTE(major, minor, patch int) bool {
	return Compare(v, Version{Major: major, Minor: minor, Patch: patch}) >= 0
}

func Compare(a, b Version) int {
	if a.Major != b.Major {
		if a.Major > b.Major {
			return 1
		}
		return -1
	}
	if a.Minor != b.Minor {
		if a.Minor > b.Minor {
			return 1
		}
		return -1
	}
	if a.Patch != b.Patch {
		if a.Patch > b.Patch {
			return 1
		}
		return -1
	}
	return 0
}

// Check reports whether the running kernel is at least major.minor.patch.
func Check(major, minor, patch int) (bool, error) {
	v, err := Get()
	if err != nil {
		return false, err
	}
	return v.GTE(major, minor, patch), nil
}

func Parse(release string) (v Version, err error) {
	var (
		parsed  int
		partial string
	)
	parsed, _ = fmt.Sscanf(release, "%d.%d%s", &v.Major, &v.Minor, &partial)
	if parsed < 2 {
		err = errors.From(ErrUnknownVersion, errors.WithMeta("release", release))
		return
	}
	parsed, _ = fmt.Sscanf(partial, ".%d%s", &v.Patch, &v.Flavor)
	if parsed < 1 {
		v.Flavor = partial
	}
	return
}
