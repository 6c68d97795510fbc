package slots

import (
	"strconv"
	"sync/atomic"

	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/errors"
)

var (
	ErrInvalidDepth  = errors.Define("invalid depth")
	ErrDoubleRelease = errors.Define("slot released twice")
	ErrNotOccupied   = errors.Define("slot is not occupied")
)

// Slot binds one in-flight kernel operation to its request.
// State is the backend's inline submission state.
type Slot[S any] struct {
	req   atomic.Pointer[request.Request]
	wake  atomic.Bool
	busy  atomic.Bool
	State S
}

func (slot *Slot[S]) Request() *request.Request {
	return slot.req.Load()
}

// Wake reports whether the slot carries the shutdown sentinel.
func (slot *Slot[S]) Wake() bool {
	return slot.wake.Load()
}

func New[S any](depth int) (*Table[S], error) {
	if depth < 1 {
		return nil, errors.From(ErrInvalidDepth, errors.WithMeta("depth", strconv.Itoa(depth)))
	}
	size := 1
	for size < depth {
		size <<= 1
	}
	t := &Table[S]{
		slots: make([]Slot[S], depth),
		free:  make([]int32, size),
		spare: make([]int32, 0, depth),
		mask:  uint64(size - 1),
		depth: depth,
	}
	for i := 0; i < depth; i++ {
		t.free[i] = int32(i)
	}
	t.tail.Store(uint64(depth))
	return t, nil
}

// Table is a fixed set of slots.
// Acquire and Return are owned by the submitter and Release by the completion side,
// free indices move between them through a single producer single consumer ring.
type Table[S any] struct {
	slots  []Slot[S]
	free   []int32
	mask   uint64
	head   atomic.Uint64
	tail   atomic.Uint64
	spare  []int32
	spares atomic.Int64
	depth  int
}

func (t *Table[S]) Depth() int {
	return t.depth
}

// Free is exact for the submitter, which alone moves head. Other goroutines get a snapshot
// kept within [0, depth].
func (t *Table[S]) Free() int {
	head := t.head.Load()
	tail := t.tail.Load()
	free := int(tail-head) + int(t.spares.Load())
	if free < 0 {
		return 0
	}
	if free > t.depth {
		return t.depth
	}
	return free
}

func (t *Table[S]) Occupied() int {
	return t.depth - t.Free()
}

func (t *Table[S]) Slot(index int) *Slot[S] {
	return &t.slots[index]
}

func (t *Table[S]) Acquire() (int, bool) {
	if n := len(t.spare); n > 0 {
		index := int(t.spare[n-1])
		t.spare = t.spare[:n-1]
		t.slots[index].busy.Store(true)
		t.spares.Add(-1)
		return index, true
	}
	head := t.head.Load()
	if head == t.tail.Load() {
		return -1, false
	}
	index := int(t.free[head&t.mask])
	t.slots[index].busy.Store(true)
	t.head.Store(head + 1)
	return index, true
}

func (t *Table[S]) Bind(index int, req *request.Request) *Slot[S] {
	slot := &t.slots[index]
	if !slot.busy.Load() {
		panic(errors.From(ErrNotOccupied, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	slot.req.Store(req)
	return slot
}

func (t *Table[S]) BindWake(index int) *Slot[S] {
	slot := &t.slots[index]
	if !slot.busy.Load() {
		panic(errors.From(ErrNotOccupied, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	slot.wake.Store(true)
	return slot
}

// Take removes the request of an occupied slot, the slot stays occupied until Release.
func (t *Table[S]) Take(index int) (req *request.Request, wake bool) {
	if index < 0 || index >= t.depth {
		panic(errors.From(ErrNotOccupied, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	slot := &t.slots[index]
	if !slot.busy.Load() {
		panic(errors.From(ErrNotOccupied, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	req = slot.req.Swap(nil)
	wake = slot.wake.Swap(false)
	return
}

func (t *Table[S]) Release(index int) {
	slot := &t.slots[index]
	if !slot.busy.CompareAndSwap(true, false) {
		panic(errors.From(ErrDoubleRelease, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	slot.req.Store(nil)
	slot.wake.Store(false)
	tail := t.tail.Load()
	if tail-t.head.Load() >= uint64(t.depth) {
		panic(errors.From(ErrDoubleRelease, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	t.free[tail&t.mask] = int32(index)
	t.tail.Store(tail + 1)
}

// Return gives back a slot that never reached the kernel. It must only be called by the submitter.
func (t *Table[S]) Return(index int) {
	slot := &t.slots[index]
	if !slot.busy.CompareAndSwap(true, false) {
		panic(errors.From(ErrDoubleRelease, errors.WithMeta("slot", strconv.Itoa(index))))
	}
	slot.req.Store(nil)
	slot.wake.Store(false)
	t.spare = append(t.spare, int32(index))
	t.spares.Add(1)
}
