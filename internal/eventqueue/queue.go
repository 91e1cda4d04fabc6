// Package eventqueue provides the time-ordered buffer of pending simulation
// events. Ordering is fully deterministic: events dequeue by ascending
// timestamp, ties break by symbol in lexical order, and remaining ties by
// insertion sequence.
package eventqueue

import (
	"container/heap"

	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

type item struct {
	event types.Event
	seq   uint64
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	ti, tj := h[i].event.Time(), h[j].event.Time()
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}

	si, sj := h[i].event.EventSymbol(), h[j].event.EventSymbol()
	if si != sj {
		return si < sj
	}

	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]

	return it
}

// Queue is a time-ordered event buffer. It is not safe for concurrent use;
// the simulation is single-threaded by construction.
type Queue struct {
	items itemHeap
	seq   uint64
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return &Queue{
		items: itemHeap{},
		seq:   0,
	}
}

// Enqueue inserts an event, maintaining ascending-timestamp order.
func (q *Queue) Enqueue(event types.Event) {
	heap.Push(&q.items, item{event: event, seq: q.seq})
	q.seq++
}

// Dequeue removes and returns the earliest event. It fails with
// ErrCodeQueueEmpty if no events remain.
func (q *Queue) Dequeue() (types.Event, error) {
	if len(q.items) == 0 {
		return nil, errors.New(errors.ErrCodeQueueEmpty, "event queue is empty")
	}

	it := heap.Pop(&q.items).(item)

	return it.event, nil
}

// Peek returns the earliest event without removing it.
func (q *Queue) Peek() (types.Event, error) {
	if len(q.items) == 0 {
		return nil, errors.New(errors.ErrCodeQueueEmpty, "event queue is empty")
	}

	return q.items[0].event, nil
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue holds no events.
func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear resets the queue to empty.
func (q *Queue) Clear() {
	q.items = itemHeap{}
	q.seq = 0
}
