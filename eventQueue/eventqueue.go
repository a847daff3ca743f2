package eventQueue

import (
	"container/heap"

	"github.com/pkg/errors"
)

// ErrEmptyQueue is returned when DequeueEarliest is called with no entries
// scheduled. The simulation driver treats it as the end of the run.
var ErrEmptyQueue = errors.New("event queue is empty")

// An entry is one scheduled item. The insertion sequence breaks ties so
// that items scheduled for the same time dequeue in FIFO order rather than
// arbitrary heap order.
type entry[T any] struct {
	item  T
	time  int64
	seq   uint64
	index int // the index of the entry in the heap
}

type entryHeap[T any] []*entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	// We want Pop to give us the earliest entry, so we use less than here.
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[T]) Push(x any) {
	n := len(*h)
	e := x.(*entry[T])
	e.index = n
	*h = append(*h, e)
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil  // don't stop the GC from reclaiming the entry eventually
	e.index = -1    // for safety
	*h = old[0 : n-1]
	return e
}

// A Queue holds items scheduled for logical times and hands them back in
// non-decreasing time order, FIFO among equal times. There is no removal
// primitive other than DequeueEarliest: an entry that becomes moot stays
// queued and must be handled by the dequeuing side.
type Queue[T any] struct {
	heap    entryHeap[T]
	nextSeq uint64
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue inserts item scheduled for time at in O(log n).
func (q *Queue[T]) Enqueue(item T, at int64) {
	e := &entry[T]{item: item, time: at, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.heap, e)
}

// DequeueEarliest removes and returns the entry with the minimal time,
// breaking ties by insertion order. It returns ErrEmptyQueue if no entries
// remain.
func (q *Queue[T]) DequeueEarliest() (T, int64, error) {
	if len(q.heap) == 0 {
		var zero T
		return zero, 0, ErrEmptyQueue
	}
	e := heap.Pop(&q.heap).(*entry[T])
	return e.item, e.time, nil
}

// PeekTime returns the scheduled time of the earliest entry without
// removing it. ok is false when the queue is empty.
func (q *Queue[T]) PeekTime() (at int64, ok bool) {
	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].time, true
}

// IsEmpty reports whether any entries remain.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.heap) == 0
}

// Len returns the number of scheduled entries.
func (q *Queue[T]) Len() int {
	return len(q.heap)
}
