package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/canvaskit/errors"
)

// Strategy selects how a cache decides which entries to drop.
type Strategy string

const (
	// StrategySimple never evicts.
	StrategySimple Strategy = "simple"

	// StrategyLRU evicts the least recently used entry past MaxSize.
	StrategyLRU Strategy = "lru"

	// StrategyTTL expires entries after their time-to-live.
	StrategyTTL Strategy = "ttl"

	// StrategyHybrid applies both LRU capacity and TTL expiry.
	StrategyHybrid Strategy = "hybrid"
)

// Config describes a cache declaratively, typically deserialized from a
// layout document or service configuration file.
type Config struct {
	// Enabled turns caching off entirely when false.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Strategy picks the eviction policy.
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// MaxSize caps the entry count for lru and hybrid strategies.
	MaxSize int `json:"max_size" yaml:"max_size"`

	// TTL is the entry lifetime for ttl and hybrid strategies.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// CleanupInterval is the background sweep period for ttl and
	// hybrid strategies.
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// StatsInterval is how often aggregate statistics are refreshed.
	StatsInterval time.Duration `json:"stats_interval" yaml:"stats_interval"`
}

// DefaultConfig returns the settings used when a layout omits the
// cache block: TTL expiry with a one minute lifetime.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Strategy:        StrategyTTL,
		MaxSize:         1000,
		TTL:             time.Minute,
		CleanupInterval: 30 * time.Second,
		StatsInterval:   30 * time.Second,
	}
}

// Validate reports the first problem with the configuration. A
// disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Strategy {
	case StrategySimple, StrategyLRU, StrategyTTL, StrategyHybrid:
	default:
		return configErr("unknown cache strategy: %s", c.Strategy)
	}

	needsSize := c.Strategy == StrategyLRU || c.Strategy == StrategyHybrid
	needsTTL := c.Strategy == StrategyTTL || c.Strategy == StrategyHybrid

	if needsSize && c.MaxSize <= 0 {
		return configErr("max_size must be positive for %s strategy, got %d", c.Strategy, c.MaxSize)
	}
	if needsTTL {
		if c.TTL <= 0 {
			return configErr("ttl must be positive for %s strategy, got %v", c.Strategy, c.TTL)
		}
		if c.CleanupInterval <= 0 {
			return configErr("cleanup_interval must be positive for %s strategy, got %v", c.Strategy, c.CleanupInterval)
		}
	}
	if c.StatsInterval < 0 {
		return configErr("stats_interval must not be negative, got %v", c.StatsInterval)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
		fmt.Sprintf(format, args...))
}

// NewFromConfig builds the cache the configuration asks for. A
// disabled config yields a no-op cache so callers never need to branch
// on Enabled themselves.
func NewFromConfig[V any](ctx context.Context, config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation failed")
	}

	if !config.Enabled {
		return NewNoop[V](), nil
	}

	if config.StatsInterval > 0 {
		options = append(options, WithStatsInterval[V](config.StatsInterval))
	}

	switch config.Strategy {
	case StrategySimple:
		return NewSimple[V](options...)
	case StrategyLRU:
		return NewLRU[V](config.MaxSize, options...)
	case StrategyTTL:
		return NewTTL[V](ctx, config.TTL, config.CleanupInterval, options...)
	case StrategyHybrid:
		return NewHybrid[V](ctx, config.MaxSize, config.TTL, config.CleanupInterval, options...)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewFromConfig",
			fmt.Sprintf("unsupported cache strategy: %s", config.Strategy))
	}
}

// NewSimple creates a cache with no eviction policy.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	return newSimpleCache(resolveOptions(options...))
}

// NewLRU creates a cache that evicts least recently used entries once
// maxSize is exceeded.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	return newLRUCache(maxSize, resolveOptions(options...))
}

// NewTTL creates a cache whose entries expire after ttl, swept every
// cleanupInterval. The sweep goroutine stops when ctx is cancelled or
// Close is called.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	return newTTLCache(ctx, ttl, cleanupInterval, resolveOptions(options...))
}

// NewHybrid creates a cache bounded by both maxSize and ttl.
func NewHybrid[V any](
	ctx context.Context, maxSize int, ttl, cleanupInterval time.Duration,
	options ...Option[V],
) (Cache[V], error) {
	return newHybridCache(ctx, maxSize, ttl, cleanupInterval, resolveOptions(options...))
}

// NewNoop creates a cache that stores nothing and misses every read.
// It stands in when caching is disabled by configuration.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{}
}

type noopCache[V any] struct{}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) { return false, nil }

func (c *noopCache[V]) SetWithTTL(_ string, _ V, _ time.Duration) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) Delete(_ string) (bool, error) { return false, nil }

func (c *noopCache[V]) DeletePrefix(_ string) (int, error) { return 0, nil }

func (c *noopCache[V]) Clear() error { return nil }

func (c *noopCache[V]) Size() int { return 0 }

func (c *noopCache[V]) Keys() []string { return nil }

func (c *noopCache[V]) Snapshot() Snapshot {
	return Snapshot{Entries: []EntrySnapshot{}}
}

func (c *noopCache[V]) Stats() *Statistics { return nil }

func (c *noopCache[V]) Close() error { return nil }

// flexDuration decodes from either a Go duration string ("30s", "5m")
// or an integer nanosecond count, so hand-written layouts and
// machine-emitted ones both load.
type flexDuration time.Duration

func (d *flexDuration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = flexDuration(parsed)
		return nil
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("duration must be a string like %q or integer nanoseconds: %s", "1h", data)
	}
	*d = flexDuration(ns)
	return nil
}

// UnmarshalJSON decodes the duration fields through flexDuration.
// Fields absent from the document keep whatever value c already holds,
// which is how defaults survive a partial config.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		TTL             *flexDuration `json:"ttl"`
		CleanupInterval *flexDuration `json:"cleanup_interval"`
		StatsInterval   *flexDuration `json:"stats_interval"`
		*plain
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TTL != nil {
		c.TTL = time.Duration(*aux.TTL)
	}
	if aux.CleanupInterval != nil {
		c.CleanupInterval = time.Duration(*aux.CleanupInterval)
	}
	if aux.StatsInterval != nil {
		c.StatsInterval = time.Duration(*aux.StatsInterval)
	}
	return nil
}
