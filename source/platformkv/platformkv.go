// Package platformkv reads JSON documents from NATS JetStream key-value
// buckets as a binding source. The binding's params select the document:
// "bucket" names the KV bucket and "key" the entry within it.
package platformkv

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/errors"
)

// SourceID is the registry identifier used by Register.
const SourceID = "platform-kv"

const (
	paramBucket = "bucket"
	paramKey    = "key"

	defaultTimeout = 5 * time.Second
)

// BucketOpener resolves bucket names to KV handles. jetstream.JetStream
// satisfies it.
type BucketOpener interface {
	KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error)
}

// Source reads KV entries and decodes them as JSON. Bucket handles are
// opened lazily and cached for the life of the source.
type Source struct {
	opener  BucketOpener
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
}

// Option configures a Source.
type Option func(*Source)

// WithTimeout bounds each KV read. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Source) {
		if timeout >= 0 {
			s.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a platform KV source.
func New(opener BucketOpener, opts ...Option) (*Source, error) {
	if opener == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("bucket opener is required"),
			"PlatformKVSource", "New", "dependency validation")
	}

	s := &Source{
		opener:  opener,
		timeout: defaultTimeout,
		buckets: make(map[string]jetstream.KeyValue),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "platformkv-source")
	}
	return s, nil
}

// Fetch reads and decodes the entry selected by the binding params. A
// missing key and a missing bucket are invalid (the layout points at
// something that does not exist); infrastructure failures are transient.
func (s *Source) Fetch(ctx context.Context, params map[string]any, _ binding.Context) (any, error) {
	bucketName, ok := stringParam(params, paramBucket)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q param is required", errors.ErrMissingConfig, paramBucket),
			"PlatformKVSource", "Fetch", "params validation")
	}
	key, ok := stringParam(params, paramKey)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q param is required", errors.ErrMissingConfig, paramKey),
			"PlatformKVSource", "Fetch", "params validation")
	}

	bucket, err := s.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := s.applyTimeout(ctx)
	defer cancel()

	entry, err := bucket.Get(fetchCtx, key)
	if err != nil {
		if isKeyNotFound(err) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s/%s", errors.ErrKeyNotFound, bucketName, key),
				"PlatformKVSource", "Fetch", "key lookup")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("kv get %s/%s: %w", bucketName, key, err),
			"PlatformKVSource", "Fetch", "key lookup")
	}

	raw := entry.Value()
	if len(raw) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s/%s: %w", errors.ErrParsingFailed, bucketName, key, err),
			"PlatformKVSource", "Fetch", "json decode")
	}
	return value, nil
}

// bucket returns a cached handle or opens one. Duplicate opens under
// concurrency are harmless; the last handle wins.
func (s *Source) bucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	cached, ok := s.buckets[name]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	kv, err := s.opener.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s: %w", errors.ErrBucketNotFound, name, err),
				"PlatformKVSource", "Fetch", "bucket lookup")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("open bucket %s: %w", name, err),
			"PlatformKVSource", "Fetch", "bucket lookup")
	}

	s.mu.Lock()
	s.buckets[name] = kv
	s.mu.Unlock()
	s.logger.Debug("opened kv bucket", "bucket", name)
	return kv, nil
}

func (s *Source) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// isKeyNotFound matches both the jetstream sentinel and the raw NATS
// error text, which leaks through some client paths.
func isKeyNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

func stringParam(params map[string]any, key string) (string, bool) {
	value, ok := params[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok && str != ""
}

// Register adds the source to a registry under SourceID.
func (s *Source) Register(reg *binding.Registry) error {
	return s.RegisterAs(reg, SourceID)
}

// RegisterAs adds the source under a custom identifier.
func (s *Source) RegisterAs(reg *binding.Registry, id string) error {
	return reg.Register(id, s)
}
