// Package queue provides an indexed binary min-heap for search frontiers.
package queue

// Item is an element that records its own slot in the heap. The heap keeps
// the slot current on every move and sets it to -1 when the item leaves.
type Item interface {
	HeapIndex() int
	SetHeapIndex(i int)
}

// Stats counts heap operations since construction or the last ResetStats.
type Stats struct {
	Pushes  int
	Pops    int
	Updates int
}

// Heap is a binary min-heap ordered by a caller supplied less function.
// Avoids interface boxing overhead of container/heap.
//
// The heap never changes priorities itself: callers mutate the item first and
// then call Update with the item's slot.
type Heap[T Item] struct {
	items []T
	less  func(a, b T) bool
	stats Stats
}

// New creates a heap with room for capacity items before growing.
func New[T Item](less func(a, b T) bool, capacity int) *Heap[T] {
	return &Heap[T]{
		items: make([]T, 0, capacity),
		less:  less,
	}
}

func (h *Heap[T]) Len() int { return len(h.items) }

// Push inserts item and records its slot.
func (h *Heap[T]) Push(item T) {
	h.stats.Pushes++
	h.items = append(h.items, item)
	i := len(h.items) - 1
	item.SetHeapIndex(i)
	h.siftUp(i)
}

// Pop removes and returns the minimum item. It panics on an empty heap.
func (h *Heap[T]) Pop() T {
	h.stats.Pops++
	n := len(h.items)
	item := h.items[0]
	last := h.items[n-1]
	var zero T
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	if n > 1 {
		h.items[0] = last
		last.SetHeapIndex(0)
		h.siftDown(0)
	}
	item.SetHeapIndex(-1)
	return item
}

// Peek returns the minimum item without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// Update restores heap order after the priority of the item at slot i changed.
// Out of range slots are ignored.
func (h *Heap[T]) Update(i int) {
	if i < 0 || i >= len(h.items) {
		return
	}
	h.stats.Updates++
	h.siftDown(i)
	h.siftUp(h.items[i].HeapIndex())
}

// Reset empties the heap, keeping its backing array. Items still queued are
// marked as not present.
func (h *Heap[T]) Reset() {
	var zero T
	for i, item := range h.items {
		item.SetHeapIndex(-1)
		h.items[i] = zero
	}
	h.items = h.items[:0]
}

func (h *Heap[T]) Stats() Stats { return h.stats }

func (h *Heap[T]) ResetStats() { h.stats = Stats{} }

func (h *Heap[T]) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		p := h.items[parent]
		if !h.less(item, p) {
			break
		}
		h.items[i] = p
		p.SetHeapIndex(i)
		i = parent
	}
	h.items[i] = item
	item.SetHeapIndex(i)
}

func (h *Heap[T]) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	half := n / 2
	for i < half {
		best := 2*i + 1
		if right := best + 1; right < n && h.less(h.items[right], h.items[best]) {
			best = right
		}
		if !h.less(h.items[best], item) {
			break
		}
		h.items[i] = h.items[best]
		h.items[i].SetHeapIndex(i)
		i = best
	}
	h.items[i] = item
	item.SetHeapIndex(i)
}
