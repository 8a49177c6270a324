// ============================================================================
// Ready Queue Disciplines
// ============================================================================
//
// Package: internal/queue
// File: queue.go
// Purpose: Ordered containers used by the executors to hold READY jobs.
//
// Two shapes are provided:
//   - Ordered[T]: a binary heap driven by a caller supplied Less function.
//     Elements that compare equal leave in insertion order, so the result
//     never depends on heap internals.
//   - FIFO[T]: push to back, pop from front.
//
// Both containers treat an underflow (Pop on empty) as a programming
// error and panic. Callers check Len() first.
//
// ============================================================================

package queue

import "container/heap"

// Less reports whether a must leave the queue before b.
type Less[T any] func(a, b T) bool

type entry[T any] struct {
	value T
	seq   uint64
}

// Ordered is a priority queue with an explicit comparator.
type Ordered[T any] struct {
	h   *orderedHeap[T]
	seq uint64
}

// NewOrdered builds an empty queue ordered by less.
func NewOrdered[T any](less Less[T]) *Ordered[T] {
	return &Ordered[T]{h: &orderedHeap[T]{less: less}}
}

// Push inserts v.
func (q *Ordered[T]) Push(v T) {
	q.seq++
	heap.Push(q.h, entry[T]{value: v, seq: q.seq})
}

// Pop removes and returns the smallest element.
func (q *Ordered[T]) Pop() T {
	if q.h.Len() == 0 {
		panic("queue: pop from empty ordered queue")
	}
	return heap.Pop(q.h).(entry[T]).value
}

// Remove deletes the first element matching match and reports whether one was found.
func (q *Ordered[T]) Remove(match func(T) bool) bool {
	for i, e := range q.h.items {
		if match(e.value) {
			heap.Remove(q.h, i)
			return true
		}
	}
	return false
}

// Len returns the number of queued elements.
func (q *Ordered[T]) Len() int {
	return q.h.Len()
}

type orderedHeap[T any] struct {
	items []entry[T]
	less  Less[T]
}

func (h orderedHeap[T]) Len() int { return len(h.items) }

func (h orderedHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.seq < b.seq
}

func (h orderedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *orderedHeap[T]) Push(x any) {
	h.items = append(h.items, x.(entry[T]))
}

func (h *orderedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	var zero entry[T]
	old[n-1] = zero
	h.items = old[:n-1]
	return e
}

// FIFO is a plain first-in first-out queue.
type FIFO[T any] struct {
	items []T
}

// NewFIFO builds an empty FIFO queue.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{items: make([]T, 0)}
}

// Push appends v at the back.
func (q *FIFO[T]) Push(v T) {
	q.items = append(q.items, v)
}

// Pop removes and returns the front element.
func (q *FIFO[T]) Pop() T {
	if len(q.items) == 0 {
		panic("queue: pop from empty fifo")
	}
	v := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return v
}

// Len returns the number of queued elements.
func (q *FIFO[T]) Len() int {
	return len(q.items)
}
