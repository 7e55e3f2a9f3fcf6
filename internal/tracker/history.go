package tracker

// History is a fixed-capacity FIFO of records, oldest first.
// Appending to a full buffer overwrites exactly the oldest record.
// Not safe for concurrent use; the owning entity serializes access.
type History[R any] struct {
	data     []R
	capacity int
	head     int // index of the next write
	size     int
}

// NewHistory creates a history buffer holding at most capacity records.
// Capacity below 1 is raised to 1.
func NewHistory[R any](capacity int) *History[R] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[R]{
		data:     make([]R, capacity),
		capacity: capacity,
	}
}

// Append inserts a record. O(1).
func (h *History[R]) Append(r R) {
	h.data[h.head] = r
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// AppendAll inserts records in order.
func (h *History[R]) AppendAll(rs []R) {
	for _, r := range rs {
		h.Append(r)
	}
}

// Items returns a copy of the records in insertion order. O(N).
func (h *History[R]) Items() []R {
	out := make([]R, 0, h.size)
	if h.size < h.capacity {
		return append(out, h.data[:h.size]...)
	}
	out = append(out, h.data[h.head:]...)
	return append(out, h.data[:h.head]...)
}

// Len returns the current number of records.
func (h *History[R]) Len() int {
	return h.size
}

// Cap returns the maximum number of records.
func (h *History[R]) Cap() int {
	return h.capacity
}
