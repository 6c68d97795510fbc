package driver

import (
	"time"
)

const (
	DefaultDepth       = 128
	defaultWaitTimeout = time.Second
)

type Options struct {
	Kind         Kind
	Depth        int
	WaitTimeout  time.Duration
	SubmitterCPU int
	CompleterCPU int
}

func DefaultOptions() Options {
	return Options{
		Kind:         Auto,
		Depth:        DefaultDepth,
		WaitTimeout:  defaultWaitTimeout,
		SubmitterCPU: -1,
		CompleterCPU: -1,
	}
}
