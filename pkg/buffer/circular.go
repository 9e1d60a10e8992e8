package buffer

import (
	"sync"

	"github.com/c360/canvaskit/errors"
)

// circularBuffer is a fixed-capacity ring. Writes advance head, reads
// advance tail, and a full ring resolves the collision through the
// configured overflow policy.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int
	tail     int
	policy   OverflowPolicy
	onDrop   DropCallback[T]
	rec      recorder
	closed   bool
}

func newCircularBuffer[T any](capacity int, s *settings[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}
	rec, err := newRecorder(s)
	if err != nil {
		return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
	}
	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		policy:   s.policy,
		onDrop:   s.onDrop,
		rec:      rec,
	}, nil
}

// takeOldest removes and returns the tail item. Caller holds the
// write lock and has verified size > 0.
func (b *circularBuffer[T]) takeOldest() T {
	var zero T
	item := b.items[b.tail]
	b.items[b.tail] = zero
	b.tail = (b.tail + 1) % b.capacity
	b.size--
	return item
}

// Write appends an item. When the ring is full the overflow policy
// picks a loser, the drop callback sees it after the lock is
// released, and with DropNewest the write itself is not counted.
func (b *circularBuffer[T]) Write(item T) error {
	var (
		droppedItem T
		dropped     bool
	)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "buffer", "Write", "buffer closed")
	}

	if b.size == b.capacity {
		b.rec.dropped()
		if b.policy == DropNewest {
			b.mu.Unlock()
			if b.onDrop != nil {
				b.onDrop(item)
			}
			return nil
		}
		droppedItem = b.takeOldest()
		dropped = true
	}

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	b.size++
	b.rec.wrote(b.size, b.capacity)
	b.mu.Unlock()

	if dropped && b.onDrop != nil {
		b.onDrop(droppedItem)
	}
	return nil
}

// Read removes and returns the oldest item, reporting false on an
// empty buffer.
func (b *circularBuffer[T]) Read() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		var zero T
		return zero, false
	}
	item := b.takeOldest()
	b.rec.read(1, b.size, b.capacity)
	return item, true
}

// ReadBatch removes and returns up to max items, oldest first.
func (b *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(max, b.size)
	if n == 0 {
		return nil
	}
	batch := make([]T, n)
	for i := range batch {
		batch[i] = b.takeOldest()
	}
	b.rec.read(n, b.size, b.capacity)
	return batch
}

// Peek returns the oldest item without removing it.
func (b *circularBuffer[T]) Peek() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		var zero T
		return zero, false
	}
	b.rec.peeked()
	return b.items[b.tail], true
}

func (b *circularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *circularBuffer[T]) Capacity() int {
	return b.capacity
}

func (b *circularBuffer[T]) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size == b.capacity
}

func (b *circularBuffer[T]) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size == 0
}

// Clear discards every buffered item. The drop callback sees each one,
// oldest first, after the lock is released; cleared items are not
// counted as drops.
func (b *circularBuffer[T]) Clear() {
	b.mu.Lock()
	var cleared []T
	if b.onDrop != nil && b.size > 0 {
		cleared = make([]T, b.size)
		for i := range cleared {
			cleared[i] = b.items[(b.tail+i)%b.capacity]
		}
	}
	b.items = make([]T, b.capacity)
	b.head, b.tail, b.size = 0, 0, 0
	b.rec.resized(0, b.capacity)
	b.mu.Unlock()

	for _, item := range cleared {
		b.onDrop(item)
	}
}

// Stats returns the live statistics tracker shared with the buffer.
func (b *circularBuffer[T]) Stats() *Statistics {
	return b.rec.stats
}

// Close rejects further writes. Buffered items remain readable so
// consumers can drain.
func (b *circularBuffer[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
