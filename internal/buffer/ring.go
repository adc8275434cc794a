package buffer

// Ring is a fixed-capacity buffer that overwrites its oldest entry once full.
type Ring[T any] struct {
	entries []T
	head    int
	size    int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		entries: make([]T, capacity),
	}
}

func (ring *Ring[T]) Add(entry T) {
	if ring == nil || len(ring.entries) == 0 {
		return
	}

	if ring.size < len(ring.entries) {
		ring.entries[(ring.head+ring.size)%len(ring.entries)] = entry
		ring.size++
		return
	}

	ring.entries[ring.head] = entry
	ring.head = (ring.head + 1) % len(ring.entries)
}

func (ring *Ring[T]) Len() int {
	if ring == nil {
		return 0
	}
	return ring.size
}

func (ring *Ring[T]) Cap() int {
	if ring == nil {
		return 0
	}
	return len(ring.entries)
}

// List returns entries oldest first.
func (ring *Ring[T]) List() []T {
	if ring == nil || ring.size == 0 {
		return nil
	}

	out := make([]T, ring.size)
	for index := 0; index < ring.size; index++ {
		out[index] = ring.entries[(ring.head+index)%len(ring.entries)]
	}
	return out
}
