package reference

import (
	"io"
	"reflect"
	"sync/atomic"
)

// Make wraps value with one reference held by the caller.
func Make[E io.Closer](value E) *Pointer[E] {
	if reflect.ValueOf(value).IsNil() {
		panic("value is nil")
	}
	p := &Pointer[E]{value: value}
	p.count.Store(1)
	return p
}

type Pointer[E io.Closer] struct {
	value E
	count atomic.Int64
}

// Acquire takes one more reference.
func (pointer *Pointer[E]) Acquire() E {
	pointer.count.Add(1)
	return pointer.value
}

// TryAcquire takes one more reference unless the last one is already gone.
func (pointer *Pointer[E]) TryAcquire() (value E, ok bool) {
	for {
		n := pointer.count.Load()
		if n < 1 {
			return
		}
		if pointer.count.CompareAndSwap(n, n+1) {
			return pointer.value, true
		}
	}
}

// Value returns the value without taking a reference.
func (pointer *Pointer[E]) Value() E {
	return pointer.value
}

func (pointer *Pointer[E]) Count() int64 {
	return pointer.count.Load()
}

// Release drops one reference, the last one closes the value.
func (pointer *Pointer[E]) Release() error {
	n := pointer.count.Add(-1)
	if n == 0 {
		return pointer.value.Close()
	}
	if n < 0 {
		panic("reference released more than acquired")
	}
	return nil
}
