// Package runqueue implements the per-output ready queues and the wait
// set: a priority-ordered collection per output keyed by
// (negative priority bucket, last timestamp, stable tie-break), plus a
// disjoint set holding blocked or unscheduled inputs keyed by their wake
// criterion.
//
// Push and Pop are O(log n) via container/heap and Peek is O(1);
// Remove by handle first finds the item with a linear scan, so it is
// O(n).
package runqueue

import (
	"container/heap"

	"tracesched/internal/arena"
)

// Item is one runnable input queued for an output.
type Item struct {
	Handle    arena.Handle
	Priority  int
	Timestamp uint64
	// Ordinal is the stable tie-break; callers pass the input's arena
	// handle order or an equivalent monotonic counter.
	Ordinal uint64
}

// heapSlice implements container/heap.Interface over []Item.
// useTimestamp gates whether the last-seen
// timestamp participates in ordering (DEPENDENCY_TIMESTAMPS); when
// unset, only priority and the stable tie-break matter.
type heapSlice struct {
	items        []Item
	useTimestamp bool
}

func (h heapSlice) Len() int { return len(h.items) }

func (h heapSlice) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	// Higher priority runs first: compare with > so the min-heap
	// surfaces it.
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if h.useTimestamp && a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Ordinal < b.Ordinal
}

func (h heapSlice) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *heapSlice) Push(x any) { h.items = append(h.items, x.(Item)) }

func (h *heapSlice) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Queue is one output's ready runqueue. Not internally synchronized:
// the scheduler mutex guards all mutation.
type Queue struct {
	h heapSlice
}

// NewQueue builds an empty queue. useTimestamp mirrors the scheduler's
// dependency-timestamps setting.
func NewQueue(useTimestamp bool) *Queue {
	q := &Queue{h: heapSlice{useTimestamp: useTimestamp}}
	heap.Init(&q.h)
	return q
}

// Len returns the number of ready inputs queued.
func (q *Queue) Len() int { return q.h.Len() }

// Push inserts item in priority order.
func (q *Queue) Push(item Item) { heap.Push(&q.h, item) }

// Pop removes and returns the highest-priority item.
func (q *Queue) Pop() (Item, bool) {
	if q.h.Len() == 0 {
		return Item{}, false
	}
	return heap.Pop(&q.h).(Item), true
}

// Peek returns the highest-priority item without removing it.
func (q *Queue) Peek() (Item, bool) {
	if q.h.Len() == 0 {
		return Item{}, false
	}
	return q.h.items[0], true
}

// Remove removes the first queued item with the given handle, if
// present, preserving heap order. Used when a direct switch or steal
// pulls a specific input out of a queue it isn't at the front of.
func (q *Queue) Remove(handle arena.Handle) (Item, bool) {
	for i, it := range q.h.items {
		if it.Handle == handle {
			removed := heap.Remove(&q.h, i).(Item)
			return removed, true
		}
	}
	return Item{}, false
}

// Items returns a snapshot of queued items in arbitrary (non-priority)
// order, for rebalancing's "move N inputs" logic.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.h.items))
	copy(out, q.h.items)
	return out
}

// Set is the collection of per-output ready queues plus the shared
// wait set, indexed by output ordinal.
type Set struct {
	queues       []*Queue
	Wait         *WaitSet
	useTimestamp bool
}

// NewSet builds a Set with numOutputs empty ready queues.
func NewSet(numOutputs int, useTimestamp bool) *Set {
	s := &Set{
		queues:       make([]*Queue, numOutputs),
		Wait:         NewWaitSet(),
		useTimestamp: useTimestamp,
	}
	for i := range s.queues {
		s.queues[i] = NewQueue(useTimestamp)
	}
	return s
}

// Queue returns the ready queue for the given output ordinal.
func (s *Set) Queue(outputOrdinal int) *Queue { return s.queues[outputOrdinal] }

// NumOutputs returns the number of per-output queues.
func (s *Set) NumOutputs() int { return len(s.queues) }

// TotalReady returns the number of runnable (queued, not waiting)
// inputs across every output, used by the rebalancer's target-size
// computation.
func (s *Set) TotalReady() int {
	n := 0
	for _, q := range s.queues {
		n += q.Len()
	}
	return n
}
