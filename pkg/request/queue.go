package request

import (
	"sync/atomic"
)

// Queue is an intrusive FIFO with many producers and one consumer.
// The link lives in the Request, so Enqueue never allocates.
// A request must be linked into at most one queue at a time.
type Queue struct {
	head atomic.Pointer[Request]
	tail *Request
	stub Request
	len  atomic.Int64
}

func NewQueue() *Queue {
	q := &Queue{}
	q.head.Store(&q.stub)
	q.tail = &q.stub
	return q
}

func (q *Queue) Enqueue(req *Request) {
	q.len.Add(1)
	q.link(req)
}

func (q *Queue) link(req *Request) {
	req.next.Store(nil)
	prev := q.head.Swap(req)
	prev.next.Store(req)
}

// Dequeue must only be called by the consumer.
// It may return nil while Length is positive when a producer is between swap and link,
// callers retry.
func (q *Queue) Dequeue() *Request {
	tail := q.tail
	next := tail.next.Load()
	if tail == &q.stub {
		if next == nil {
			return nil
		}
		q.tail = next
		tail = next
		next = next.next.Load()
	}
	if next != nil {
		q.tail = next
		q.len.Add(-1)
		return tail
	}
	if tail != q.head.Load() {
		return nil
	}
	q.link(&q.stub)
	if next = tail.next.Load(); next != nil {
		q.tail = next
		q.len.Add(-1)
		return tail
	}
	return nil
}

func (q *Queue) Length() int64 {
	return q.len.Load()
}
