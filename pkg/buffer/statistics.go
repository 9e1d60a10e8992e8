package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks buffer activity with lock-free counters. Every
// buffer carries one; it needs no configuration and costs an atomic
// add per operation.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	peeks     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64
	size      atomic.Int64
	peak      atomic.Int64
	startNs   atomic.Int64
}

// NewStatistics creates a tracker with its uptime clock started.
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startNs.Store(time.Now().UnixNano())
	return s
}

// Write records one successful write.
func (s *Statistics) Write() { s.writes.Add(1) }

// Read records one item leaving the buffer.
func (s *Statistics) Read() { s.reads.Add(1) }

// Peek records one non-destructive read.
func (s *Statistics) Peek() { s.peeks.Add(1) }

// Overflow records a write arriving at a full buffer.
func (s *Statistics) Overflow() { s.overflows.Add(1) }

// Drop records an item lost to the overflow policy.
func (s *Statistics) Drop() { s.drops.Add(1) }

// UpdateSize records the current item count and advances the peak
// high-water mark when exceeded.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		peak := s.peak.Load()
		if size <= peak || s.peak.CompareAndSwap(peak, size) {
			return
		}
	}
}

// Writes returns the total write count.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Reads returns the total read count.
func (s *Statistics) Reads() int64 { return s.reads.Load() }

// Peeks returns the total peek count.
func (s *Statistics) Peeks() int64 { return s.peeks.Load() }

// Overflows returns how many writes found the buffer full.
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }

// Drops returns how many items the overflow policy discarded.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the item count as of the last update.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// MaxSize returns the highest item count observed.
func (s *Statistics) MaxSize() int64 { return s.peak.Load() }

// Throughput returns average writes per second since start.
func (s *Statistics) Throughput() float64 {
	return perSecond(s.Writes(), s.Uptime())
}

// ReadThroughput returns average reads per second since start.
func (s *Statistics) ReadThroughput() float64 {
	return perSecond(s.Reads(), s.Uptime())
}

// DropRate returns the fraction of write attempts that dropped an
// item, in [0, 1].
func (s *Statistics) DropRate() float64 {
	return fraction(s.Drops(), s.Writes())
}

// OverflowRate returns the fraction of write attempts that found the
// buffer full, in [0, 1].
func (s *Statistics) OverflowRate() float64 {
	return fraction(s.Overflows(), s.Writes())
}

// Utilization returns current fill level as a fraction of capacity.
func (s *Statistics) Utilization(capacity int64) float64 {
	return fraction(s.CurrentSize(), capacity)
}

// Uptime returns how long this tracker has been running.
func (s *Statistics) Uptime() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.startNs.Load())
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *Statistics) Reset() {
	s.writes.Store(0)
	s.reads.Store(0)
	s.peeks.Store(0)
	s.overflows.Store(0)
	s.drops.Store(0)
	s.size.Store(0)
	s.peak.Store(0)
	s.startNs.Store(time.Now().UnixNano())
}

func perSecond(count int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}

func fraction(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// StatsSummary is a point-in-time copy of all statistics, shaped for
// JSON debug endpoints.
type StatsSummary struct {
	Writes         int64         `json:"writes"`
	Reads          int64         `json:"reads"`
	Peeks          int64         `json:"peeks"`
	Overflows      int64         `json:"overflows"`
	Drops          int64         `json:"drops"`
	CurrentSize    int64         `json:"current_size"`
	MaxSize        int64         `json:"max_size"`
	Throughput     float64       `json:"throughput"`
	ReadThroughput float64       `json:"read_throughput"`
	DropRate       float64       `json:"drop_rate"`
	OverflowRate   float64       `json:"overflow_rate"`
	Uptime         time.Duration `json:"uptime"`
}

// Summary captures all statistics at once.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:         s.Writes(),
		Reads:          s.Reads(),
		Peeks:          s.Peeks(),
		Overflows:      s.Overflows(),
		Drops:          s.Drops(),
		CurrentSize:    s.CurrentSize(),
		MaxSize:        s.MaxSize(),
		Throughput:     s.Throughput(),
		ReadThroughput: s.ReadThroughput(),
		DropRate:       s.DropRate(),
		OverflowRate:   s.OverflowRate(),
		Uptime:         s.Uptime(),
	}
}
