// Package realtime serves live channel data as a binding source. It
// subscribes to a topic the first time a binding asks for it and keeps
// the most recent data message, so path expressions always evaluate
// against the last-known snapshot rather than waiting on the socket.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/channel"
	"github.com/c360/canvaskit/errors"
)

// SourceID is the registry identifier used by Register.
const SourceID = "realtime"

const paramTopic = "topic"

// Source retains the latest message payload per subscribed topic.
type Source struct {
	manager *channel.Manager
	logger  *slog.Logger

	mu     sync.Mutex
	latest map[string]any
	unsub  map[string]func()
	closed bool
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a realtime source on top of an existing channel manager.
// The source does not own the manager's lifecycle; connect and disconnect
// it separately.
func New(manager *channel.Manager, opts ...Option) (*Source, error) {
	if manager == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("channel manager is required"),
			"RealtimeSource", "New", "dependency validation")
	}

	s := &Source{
		manager: manager,
		latest:  make(map[string]any),
		unsub:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "realtime-source")
	}
	return s, nil
}

// Fetch returns the latest payload seen on the binding's topic,
// subscribing on first use. Before any message arrives the result is nil
// while connected; while disconnected with no snapshot it is an error, so
// the binding's fallback shows instead of an empty widget.
func (s *Source) Fetch(ctx context.Context, params map[string]any, _ binding.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic, ok := stringParam(params, paramTopic)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q param is required", errors.ErrMissingConfig, paramTopic),
			"RealtimeSource", "Fetch", "params validation")
	}

	if err := s.ensureSubscribed(topic); err != nil {
		return nil, err
	}

	s.mu.Lock()
	value, seen := s.latest[topic]
	s.mu.Unlock()
	if seen {
		return value, nil
	}

	if state := s.manager.State(); state != channel.StateConnected {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: channel %s and no snapshot for topic %q", errors.ErrNoConnection, state, topic),
			"RealtimeSource", "Fetch", "snapshot lookup")
	}
	return nil, nil
}

func (s *Source) ensureSubscribed(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "RealtimeSource", "Fetch", "closed check")
	}
	if _, ok := s.unsub[topic]; ok {
		return nil
	}

	unsubscribe, err := s.manager.Subscribe(topic, func(msg channel.Message) {
		s.mu.Lock()
		if !s.closed {
			s.latest[topic] = msg.Data
		}
		s.mu.Unlock()
	})
	if err != nil {
		return err
	}
	s.unsub[topic] = unsubscribe
	s.logger.Debug("subscribed to topic", "topic", topic)
	return nil
}

// Topics returns the sorted topics the source is currently subscribed to.
func (s *Source) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.unsub))
	for topic := range s.unsub {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Close unsubscribes from every topic and rejects further fetches. It
// does not touch the channel manager itself.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubs := make([]func(), 0, len(s.unsub))
	for _, fn := range s.unsub {
		unsubs = append(unsubs, fn)
	}
	s.unsub = make(map[string]func())
	s.latest = make(map[string]any)
	s.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	return nil
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
