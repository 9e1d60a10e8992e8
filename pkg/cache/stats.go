package cache

import (
	"sync/atomic"
	"time"
)

// Statistics tracks cache activity. All methods are safe for concurrent
// use; counters only move backwards through Reset.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64

	size    atomic.Int64
	peak    atomic.Int64
	startNs atomic.Int64
}

// NewStatistics returns a tracker with its uptime clock started.
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startNs.Store(time.Now().UnixNano())
	return s
}

// Hit records a lookup served from the cache.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records a lookup that found nothing usable.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Set records a store.
func (s *Statistics) Set() { s.sets.Add(1) }

// Delete records an explicit removal.
func (s *Statistics) Delete() { s.deletes.Add(1) }

// Eviction records a removal forced by capacity or expiry.
func (s *Statistics) Eviction() { s.evictions.Add(1) }

// UpdateSize records the current entry count and maintains the
// high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		peak := s.peak.Load()
		if size <= peak || s.peak.CompareAndSwap(peak, size) {
			return
		}
	}
}

// Hits returns the number of lookups served from the cache.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of lookups that found nothing usable.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the number of stores.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the number of explicit removals.
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the number of removals forced by capacity or expiry.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// CurrentSize returns the entry count as of the last UpdateSize.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// MaxSize returns the largest entry count seen since construction or
// the last Reset.
func (s *Statistics) MaxSize() int64 { return s.peak.Load() }

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// HitRatio returns hits/(hits+misses), or 0 before any lookups.
func (s *Statistics) HitRatio() float64 {
	hits := s.hits.Load()
	return ratio(hits, hits+s.misses.Load())
}

// MissRatio is 1 - HitRatio.
func (s *Statistics) MissRatio() float64 {
	return 1 - s.HitRatio()
}

// RequestsPerSecond averages lookups over the tracker's uptime.
func (s *Statistics) RequestsPerSecond() float64 {
	elapsed := s.Uptime().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.hits.Load()+s.misses.Load()) / elapsed
}

// Uptime is the time since construction or the last Reset.
func (s *Statistics) Uptime() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.startNs.Load())
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *Statistics) Reset() {
	for _, counter := range []*atomic.Int64{
		&s.hits, &s.misses, &s.sets, &s.deletes, &s.evictions, &s.size, &s.peak,
	} {
		counter.Store(0)
	}
	s.startNs.Store(time.Now().UnixNano())
}

// StatsSummary is a point-in-time view of every counter. The counters
// are read independently, so a summary taken under load is approximate.
type StatsSummary struct {
	Hits              int64         `json:"hits"`
	Misses            int64         `json:"misses"`
	Sets              int64         `json:"sets"`
	Deletes           int64         `json:"deletes"`
	Evictions         int64         `json:"evictions"`
	CurrentSize       int64         `json:"current_size"`
	MaxSize           int64         `json:"max_size"`
	HitRatio          float64       `json:"hit_ratio"`
	MissRatio         float64       `json:"miss_ratio"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Uptime            time.Duration `json:"uptime"`
}

// Summary captures all counters at once.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:              s.Hits(),
		Misses:            s.Misses(),
		Sets:              s.Sets(),
		Deletes:           s.Deletes(),
		Evictions:         s.Evictions(),
		CurrentSize:       s.CurrentSize(),
		MaxSize:           s.MaxSize(),
		HitRatio:          s.HitRatio(),
		MissRatio:         s.MissRatio(),
		RequestsPerSecond: s.RequestsPerSecond(),
		Uptime:            s.Uptime(),
	}
}
