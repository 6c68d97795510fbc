package process

import (
	"strings"

	"github.com/brickingsoft/errors"
)

var ErrInvalidPriority = errors.Define("invalid process priority")

type Priority int

const (
	NORM Priority = iota
	HIGH
	REALTIME
	IDLE
)

func (p Priority) String() string {
	switch p {
	case HIGH:
		return "high"
	case REALTIME:
		return "realtime"
	case IDLE:
		return "idle"
	default:
		return "norm"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "norm", "normal":
		return NORM, nil
	case "high":
		return HIGH, nil
	case "realtime":
		return REALTIME, nil
	case "idle":
		return IDLE, nil
	default:
		return NORM, errors.From(ErrInvalidPriority, errors.WithMeta("priority", s))
	}
}

func (p Priority) nice() int {
	switch p {
	case REALTIME:
		return -19
	case HIGH:
		return -15
	case IDLE:
		return 15
	default:
		return 0
	}
}
