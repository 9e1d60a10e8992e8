package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/channel"
	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/hydrate"
	"github.com/c360/canvaskit/pkg/cache"
)

// Duration is a time.Duration that unmarshals from either a duration
// string ("30s", "5m") or integer nanoseconds. It marshals as a string.
type Duration time.Duration

// MarshalJSON renders the duration in time.Duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1m30s" style strings or integer nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("duration must be a string or integer nanoseconds, got %T", raw)
	}
	return nil
}

// Config is the complete runtime configuration: resolver behavior,
// hydration fetch policy, channel connection settings, the resolved-value
// cache, and per-source settings.
type Config struct {
	// Version is a semantic version for the config document itself, used
	// to decide whether a stored copy supersedes a local one.
	Version string `json:"version,omitempty"`

	Resolver  ResolverConfig  `json:"resolver"`
	Hydration HydrationConfig `json:"hydration"`
	Channel   ChannelConfig   `json:"channel"`
	Cache     cache.Config    `json:"cache"`
	Sources   SourcesConfig   `json:"sources"`
}

// ResolverConfig tunes binding resolution.
type ResolverConfig struct {
	// DefaultCacheTTL applies to cacheKey bindings that set no cacheTtlMs.
	DefaultCacheTTL Duration `json:"default_cache_ttl,omitempty"`

	// FetchTimeout bounds each source adapter fetch. Zero leaves the
	// caller's context as the only bound.
	FetchTimeout Duration `json:"fetch_timeout,omitempty"`
}

// Options maps the resolver settings onto resolver options. Zero fields
// produce no option, leaving the resolver's own defaults in place.
func (c ResolverConfig) Options() []binding.Option {
	var opts []binding.Option
	if c.DefaultCacheTTL > 0 {
		opts = append(opts, binding.WithDefaultTTL(time.Duration(c.DefaultCacheTTL)))
	}
	if c.FetchTimeout > 0 {
		opts = append(opts, binding.WithTimeout(time.Duration(c.FetchTimeout)))
	}
	return opts
}

// HydrationConfig tunes the hydration orchestrator. Boolean fields are
// taken verbatim: start from DefaultConfig when building by hand so
// jitter and response caching keep their recommended values.
type HydrationConfig struct {
	TimeoutPerEndpoint Duration `json:"timeout_per_endpoint,omitempty"`
	MaxRetries         int      `json:"max_retries"`
	BackoffBase        Duration `json:"backoff_base,omitempty"`
	BackoffMax         Duration `json:"backoff_max,omitempty"`
	Jitter             bool     `json:"jitter"`
	CacheTTL           Duration `json:"cache_ttl,omitempty"`
	CacheEnabled       bool     `json:"cache_enabled"`
}

// HydrateConfig converts the settings into the hydrator's config type.
func (c HydrationConfig) HydrateConfig() hydrate.Config {
	return hydrate.Config{
		TimeoutPerEndpoint: time.Duration(c.TimeoutPerEndpoint),
		MaxRetries:         c.MaxRetries,
		BackoffBase:        time.Duration(c.BackoffBase),
		BackoffMax:         time.Duration(c.BackoffMax),
		Jitter:             c.Jitter,
		CacheTTL:           time.Duration(c.CacheTTL),
		CacheEnabled:       c.CacheEnabled,
	}
}

// ChannelConfig tunes the WebSocket channel manager.
type ChannelConfig struct {
	// URL is the channel endpoint (ws:// or wss://).
	URL string `json:"url,omitempty"`

	HeartbeatInterval Duration `json:"heartbeat_interval,omitempty"`
	HeartbeatTimeout  Duration `json:"heartbeat_timeout,omitempty"`
	ReconnectBase     Duration `json:"reconnect_base,omitempty"`
	ReconnectMax      Duration `json:"reconnect_max,omitempty"`

	// MaxReconnects is the reconnect attempt budget. Zero disables
	// reconnection entirely, matching the manager's option semantics.
	MaxReconnects int `json:"max_reconnects"`

	QueueCapacity int `json:"queue_capacity,omitempty"`
}

// Options maps the channel settings onto manager options. Zero durations
// and a zero queue capacity fall back to the manager's defaults;
// MaxReconnects is always applied.
func (c ChannelConfig) Options() []channel.Option {
	opts := []channel.Option{
		channel.WithReconnectMaxAttempts(c.MaxReconnects),
	}
	if c.HeartbeatInterval > 0 {
		opts = append(opts, channel.WithHeartbeatInterval(time.Duration(c.HeartbeatInterval)))
	}
	if c.HeartbeatTimeout > 0 {
		opts = append(opts, channel.WithHeartbeatTimeout(time.Duration(c.HeartbeatTimeout)))
	}
	if c.ReconnectBase > 0 {
		opts = append(opts, channel.WithReconnectBaseInterval(time.Duration(c.ReconnectBase)))
	}
	if c.ReconnectMax > 0 {
		opts = append(opts, channel.WithReconnectMaxInterval(time.Duration(c.ReconnectMax)))
	}
	if c.QueueCapacity > 0 {
		opts = append(opts, channel.WithQueueCapacity(c.QueueCapacity))
	}
	return opts
}

// SourcesConfig holds per-adapter settings for the built-in sources.
type SourcesConfig struct {
	REST       RESTSourceConfig       `json:"rest"`
	PlatformKV PlatformKVSourceConfig `json:"platform_kv"`
}

// RESTSourceConfig configures the REST source adapter.
type RESTSourceConfig struct {
	// BaseURL is joined with relative endpoint params. Empty means only
	// absolute endpoints are usable.
	BaseURL string `json:"base_url,omitempty"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers,omitempty"`

	// Timeout bounds each HTTP request.
	Timeout Duration `json:"timeout,omitempty"`

	Retry RetryConfig `json:"retry"`
}

// PlatformKVSourceConfig configures the platform KV source adapter.
type PlatformKVSourceConfig struct {
	// URL is the NATS server address the host connects to before handing
	// the JetStream context to the adapter.
	URL string `json:"url,omitempty"`

	// Timeout bounds each KV read.
	Timeout Duration `json:"timeout,omitempty"`
}

// RetryConfig describes a retry policy in config form.
type RetryConfig struct {
	MaxRetries    int      `json:"max_retries"`
	InitialDelay  Duration `json:"initial_delay,omitempty"`
	MaxDelay      Duration `json:"max_delay,omitempty"`
	BackoffFactor float64  `json:"backoff_factor,omitempty"`
}

// ToRetryConfig converts the policy to the error framework's form.
// MaxRetries is taken verbatim (zero means no retries); unset delays and
// factor fall back to the framework defaults.
func (c RetryConfig) ToRetryConfig() errors.RetryConfig {
	def := errors.DefaultRetryConfig()
	rc := errors.RetryConfig{
		MaxRetries:    c.MaxRetries,
		InitialDelay:  time.Duration(c.InitialDelay),
		MaxDelay:      time.Duration(c.MaxDelay),
		BackoffFactor: c.BackoffFactor,
	}
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = def.InitialDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = def.MaxDelay
	}
	if rc.MaxDelay < rc.InitialDelay {
		rc.MaxDelay = rc.InitialDelay
	}
	if rc.BackoffFactor < 1 {
		rc.BackoffFactor = def.BackoffFactor
	}
	return rc
}

// DefaultConfig returns the recommended configuration. Load overlays
// documents on top of these values, so a config file only needs the
// fields it changes.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Resolver: ResolverConfig{
			DefaultCacheTTL: Duration(60 * time.Second),
			FetchTimeout:    Duration(10 * time.Second),
		},
		Hydration: HydrationConfig{
			TimeoutPerEndpoint: Duration(10 * time.Second),
			MaxRetries:         3,
			BackoffBase:        Duration(200 * time.Millisecond),
			BackoffMax:         Duration(5 * time.Second),
			Jitter:             true,
			CacheTTL:           Duration(60 * time.Second),
			CacheEnabled:       true,
		},
		Channel: ChannelConfig{
			HeartbeatInterval: Duration(30 * time.Second),
			HeartbeatTimeout:  Duration(10 * time.Second),
			ReconnectBase:     Duration(time.Second),
			ReconnectMax:      Duration(30 * time.Second),
			MaxReconnects:     10,
			QueueCapacity:     100,
		},
		Cache: cache.DefaultConfig(),
		Sources: SourcesConfig{
			REST: RESTSourceConfig{
				Timeout: Duration(10 * time.Second),
				Retry: RetryConfig{
					MaxRetries:    3,
					InitialDelay:  Duration(100 * time.Millisecond),
					MaxDelay:      Duration(5 * time.Second),
					BackoffFactor: 2,
				},
			},
			PlatformKV: PlatformKVSourceConfig{
				Timeout: Duration(5 * time.Second),
			},
		},
	}
}

// Validate checks the configuration for values the components would
// reject or silently misbehave on.
func (c *Config) Validate() error {
	if c.Version != "" {
		if _, err := parseSemVer(c.Version); err != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("version %q is not a semantic version: %v", c.Version, err))
		}
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"resolver.default_cache_ttl", c.Resolver.DefaultCacheTTL},
		{"resolver.fetch_timeout", c.Resolver.FetchTimeout},
		{"hydration.timeout_per_endpoint", c.Hydration.TimeoutPerEndpoint},
		{"hydration.backoff_base", c.Hydration.BackoffBase},
		{"hydration.backoff_max", c.Hydration.BackoffMax},
		{"hydration.cache_ttl", c.Hydration.CacheTTL},
		{"channel.heartbeat_interval", c.Channel.HeartbeatInterval},
		{"channel.heartbeat_timeout", c.Channel.HeartbeatTimeout},
		{"channel.reconnect_base", c.Channel.ReconnectBase},
		{"channel.reconnect_max", c.Channel.ReconnectMax},
		{"sources.rest.timeout", c.Sources.REST.Timeout},
		{"sources.rest.retry.initial_delay", c.Sources.REST.Retry.InitialDelay},
		{"sources.rest.retry.max_delay", c.Sources.REST.Retry.MaxDelay},
		{"sources.platform_kv.timeout", c.Sources.PlatformKV.Timeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("%s must not be negative, got %v", d.name, time.Duration(d.value)))
		}
	}

	if c.Hydration.MaxRetries < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("hydration.max_retries must not be negative, got %d", c.Hydration.MaxRetries))
	}
	if c.Hydration.BackoffBase > 0 && c.Hydration.BackoffMax > 0 &&
		c.Hydration.BackoffMax < c.Hydration.BackoffBase {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"hydration.backoff_max must not be less than hydration.backoff_base")
	}

	if c.Channel.MaxReconnects < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("channel.max_reconnects must not be negative, got %d", c.Channel.MaxReconnects))
	}
	if c.Channel.QueueCapacity < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("channel.queue_capacity must not be negative, got %d", c.Channel.QueueCapacity))
	}
	if c.Channel.URL != "" {
		if err := validateURL("channel.url", c.Channel.URL, "ws", "wss"); err != nil {
			return err
		}
	}

	if c.Sources.REST.BaseURL != "" {
		if err := validateURL("sources.rest.base_url", c.Sources.REST.BaseURL, "http", "https"); err != nil {
			return err
		}
	}
	if c.Sources.REST.Retry.MaxRetries < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("sources.rest.retry.max_retries must not be negative, got %d",
				c.Sources.REST.Retry.MaxRetries))
	}
	if f := c.Sources.REST.Retry.BackoffFactor; f != 0 && f < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("sources.rest.retry.backoff_factor must be at least 1, got %v", f))
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("%s: %v", name, err))
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			if parsed.Host == "" {
				break
			}
			return nil
		}
	}
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
		fmt.Sprintf("%s must be an absolute %v URL, got %q", name, schemes, raw))
}

// Clone returns a deep copy via a JSON round trip. A copy that cannot be
// round-tripped degrades to a shallow copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String renders the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SafeConfig wraps a Config for concurrent readers and writers.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps an existing config. A nil config starts empty.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current config.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update validates and atomically swaps in a new config.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Update",
			"config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
