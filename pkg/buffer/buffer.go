package buffer

// Buffer is a bounded FIFO queue. Implementations are safe for
// concurrent producers and consumers.
type Buffer[T any] interface {
	// Write adds an item. On a full buffer the overflow policy
	// decides which item is discarded; Write itself never blocks.
	Write(item T) error

	// Read removes and returns the oldest item, reporting false
	// when the buffer is empty.
	Read() (T, bool)

	// ReadBatch removes and returns up to max items, oldest first.
	// The result may be shorter than max, or nil when empty.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (T, bool)

	// Size returns the current item count.
	Size() int

	// Capacity returns the maximum item count.
	Capacity() int

	// IsFull reports whether Size equals Capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Clear discards all buffered items.
	Clear()

	// Stats returns the always-on statistics tracker.
	Stats() *Statistics

	// Close rejects further writes; remaining items stay readable.
	Close() error
}

// OverflowPolicy decides which item a full buffer discards.
type OverflowPolicy int

const (
	// DropOldest discards the oldest item to make room for the new
	// one. This is the default.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item and keeps the buffer
	// contents intact.
	DropNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback observes every item the overflow policy discards. It is
// invoked outside the buffer lock, so it may call back into the buffer.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a fixed-capacity ring buffer. Capacities
// below one are raised to one. Statistics are always collected; an
// error is returned only when WithMetrics registration fails.
func NewCircularBuffer[T any](capacity int, opts ...Option[T]) (Buffer[T], error) {
	return newCircularBuffer(capacity, resolveOptions(opts...))
}
