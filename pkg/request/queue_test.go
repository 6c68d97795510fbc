package request_test

import (
	"sync"
	"testing"

	"github.com/brickingsoft/dio/pkg/request"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	queue := request.NewQueue()
	require.Nil(t, queue.Dequeue())

	for i := 0; i < 10; i++ {
		queue.Enqueue(&request.Request{Offset: int64(i)})
	}
	require.EqualValues(t, 10, queue.Length())
	for i := 0; i < 10; i++ {
		req := queue.Dequeue()
		require.NotNil(t, req)
		require.EqualValues(t, i, req.Offset)
	}
	require.Nil(t, queue.Dequeue())
	require.EqualValues(t, 0, queue.Length())

	// reuse after drained
	req := &request.Request{Offset: 42}
	queue.Enqueue(req)
	require.Same(t, req, queue.Dequeue())
	queue.Enqueue(req)
	require.Same(t, req, queue.Dequeue())
	require.Nil(t, queue.Dequeue())
}

func TestQueue_Producers(t *testing.T) {
	const (
		producers = 8
		each      = 1000
	)
	queue := request.NewQueue()
	wg := new(sync.WaitGroup)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				queue.Enqueue(&request.Request{Fd: p, Offset: int64(i)})
			}
		}(p)
	}

	last := make(map[int]int64)
	got := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for finished := false; ; {
		req := queue.Dequeue()
		if req == nil {
			if finished {
				break
			}
			select {
			case <-done:
				finished = true
			default:
			}
			continue
		}
		if prev, ok := last[req.Fd]; ok {
			require.Greater(t, req.Offset, prev, "producer %d out of order", req.Fd)
		}
		last[req.Fd] = req.Offset
		got++
	}
	require.Equal(t, producers*each, got)
	require.EqualValues(t, 0, queue.Length())
	t.Log("dequeued", got)
}
