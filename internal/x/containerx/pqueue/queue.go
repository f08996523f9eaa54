// Package pqueue provides a single-ended priority queue that supports removal
// of arbitrary elements.
package pqueue

import (
	"container/heap"
)

// Elem is an element within a priority queue.
type Elem interface {
	// Less returns true if this element should be closer to the front of the
	// queue than e, that is, if it is higher priority than e.
	Less(e Elem) bool
}

// Queue is a priority queue. Elements with a higher priority appear at the
// front of the queue.
//
// The zero-value is an empty, ready-to-use queue. It is not safe for
// concurrent use.
type Queue struct {
	heap  qheap
	index map[Elem]*item
}

// Len returns the number of elements on the queue.
func (q *Queue) Len() int {
	return q.heap.Len()
}

// Push adds an element to the queue.
//
// It returns true if e is at the front of the queue.
func (q *Queue) Push(e Elem) bool {
	it := &item{
		elem:  e,
		index: q.heap.Len(),
	}

	if q.index == nil {
		q.index = map[Elem]*item{}
	}

	q.index[e] = it
	heap.Push(&q.heap, it)

	return it.index == 0
}

// Peek returns the element with the highest priority without removing it from
// the queue.
//
// It returns false if the queue is empty.
func (q *Queue) Peek() (Elem, bool) {
	if q.heap.Len() == 0 {
		return nil, false
	}

	return q.heap.items[0].elem, true
}

// Pop removes the element with the highest priority and returns it.
//
// It returns false if the queue is empty.
func (q *Queue) Pop() (Elem, bool) {
	if q.heap.Len() == 0 {
		return nil, false
	}

	it := heap.Pop(&q.heap).(*item)
	delete(q.index, it.elem)

	return it.elem, true
}

// Remove removes e from the queue.
//
// It returns false if e is not on the queue.
func (q *Queue) Remove(e Elem) bool {
	it, ok := q.index[e]
	if !ok {
		return false
	}

	heap.Remove(&q.heap, it.index)
	delete(q.index, e)

	return true
}

// item is an entry on the heap.
type item struct {
	elem  Elem
	index int // position within the heap
}

// qheap is the heap.Interface implementation backing Queue.
type qheap struct {
	items []*item
}

func (h *qheap) Len() int {
	return len(h.items)
}

func (h *qheap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *qheap) Less(i, j int) bool {
	return h.items[i].elem.Less(h.items[j].elem)
}

func (h *qheap) Push(it interface{}) {
	h.items = append(h.items, it.(*item))
}

func (h *qheap) Pop() interface{} {
	n := len(h.items) - 1
	it := h.items[n]

	h.items[n] = nil // avoid retaining the element
	h.items = h.items[:n]

	return it
}
