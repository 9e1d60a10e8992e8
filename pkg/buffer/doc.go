// Package buffer provides generic, thread-safe ring buffers with
// configurable overflow policies.
//
// A buffer decouples producers from consumers without unbounded
// growth: writes never block, and when the ring is full the overflow
// policy picks which item to discard. The channel manager keeps its
// outbound queue in a DropOldest buffer so publishes issued while the
// connection is down survive until reconnect.
//
// # Construction
//
//	outbound, err := buffer.NewCircularBuffer[channel.Message](256,
//		buffer.WithOverflowPolicy[channel.Message](buffer.DropOldest),
//		buffer.WithMetrics[channel.Message](registry, "channel_outbound"),
//	)
//
// # Overflow Policies
//
// DropOldest (the default) evicts the oldest item to admit the new
// one; use it when the newest data matters most. DropNewest rejects
// the incoming item and preserves what is already queued. Either way
// the WithDropCallback function, when set, receives every discarded
// item after the buffer lock is released, so callers can log or
// requeue what the policy threw away.
//
// # Observability
//
// Every buffer carries a Statistics tracker: atomic counters for
// writes, reads, peeks, overflows, and drops plus derived rates,
// reachable through Stats() with no configuration. WithMetrics
// additionally exports the same activity as Prometheus series
// (canvaskit_buffer_* with a component label). The two tiers are
// independent, which keeps statistics available in tests and debug
// endpoints that never scrape Prometheus.
//
// # Concurrency
//
// All operations are safe for concurrent use. Counters are lock-free;
// ring state is guarded by a sync.RWMutex, so reads of Size, Peek,
// IsFull, and IsEmpty proceed in parallel.
package buffer
