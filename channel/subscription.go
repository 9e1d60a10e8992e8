package channel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/canvaskit/errors"
)

// WildcardTopic subscribes a handler to every data message regardless of
// topic.
const WildcardTopic = "*"

// Handler receives data messages for a subscribed topic. Handlers run on
// the manager's single delivery goroutine, so they see messages in arrival
// order and must not block for long. Calling Disconnect or Close from a
// handler deadlocks.
type Handler func(msg Message)

// Filter decides whether a message is delivered to one specific handler.
// Filters run before the handler on the delivery goroutine.
type Filter func(msg Message) bool

// SubscribeOption adjusts a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	filter Filter
}

// WithFilter attaches a predicate to the subscription. Messages failing
// the predicate are skipped for this handler only; other handlers on the
// same topic are unaffected.
func WithFilter(filter Filter) SubscribeOption {
	return func(sc *subscribeConfig) {
		sc.filter = filter
	}
}

// subscriber is one registered handler with its optional filter.
type subscriber struct {
	id     int
	fn     Handler
	filter Filter
}

// subscriptionTable tracks handlers per topic in registration order.
type subscriptionTable struct {
	mu     sync.RWMutex
	nextID int
	topics map[string][]*subscriber
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{topics: make(map[string][]*subscriber)}
}

// add registers a handler and reports whether it is the first subscriber
// for its topic.
func (st *subscriptionTable) add(topic string, fn Handler, filter Filter) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextID++
	sub := &subscriber{id: st.nextID, fn: fn, filter: filter}
	existing := st.topics[topic]
	st.topics[topic] = append(existing, sub)
	return sub.id, len(existing) == 0
}

// remove drops a handler and reports whether it was the last subscriber
// for its topic. The second return is false when the id is already gone.
func (st *subscriptionTable) remove(topic string, id int) (bool, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	subs, ok := st.topics[topic]
	if !ok {
		return false, false
	}
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(st.topics, topic)
			return true, true
		}
		st.topics[topic] = subs
		return false, true
	}
	return false, false
}

// match returns the handlers for a topic plus any wildcard handlers, in
// registration order. The slice is a copy so dispatch can run without
// holding the lock.
func (st *subscriptionTable) match(topic string) []*subscriber {
	st.mu.RLock()
	defer st.mu.RUnlock()

	direct := st.topics[topic]
	var wild []*subscriber
	if topic != WildcardTopic {
		wild = st.topics[WildcardTopic]
	}
	if len(direct) == 0 && len(wild) == 0 {
		return nil
	}
	out := make([]*subscriber, 0, len(direct)+len(wild))
	out = append(out, direct...)
	out = append(out, wild...)
	return out
}

// activeTopics returns the sorted set of topics with at least one
// subscriber. Used to replay subscribe messages after a reconnect.
func (st *subscriptionTable) activeTopics() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]string, 0, len(st.topics))
	for topic := range st.topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Subscribe registers a handler for a topic and returns a function that
// removes it. The first subscriber for a topic triggers a subscribe
// control message to the server; removing the last one triggers an
// unsubscribe. Use WildcardTopic to observe every data message. The
// returned function is idempotent.
//
// Subscriptions survive reconnects: after the socket is reestablished the
// manager replays a subscribe message for every active topic.
func (m *Manager) Subscribe(topic string, fn Handler, opts ...SubscribeOption) (func(), error) {
	if topic == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: topic is required", errors.ErrSubscriptionFailed),
			"Manager", "Subscribe", "validate topic")
	}
	if fn == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: handler is required", errors.ErrSubscriptionFailed),
			"Manager", "Subscribe", "validate handler")
	}

	var sc subscribeConfig
	for _, opt := range opts {
		opt(&sc)
	}

	id, first := m.subs.add(topic, fn, sc.filter)
	if first {
		m.sendControl(newControl(TypeSubscribe, topic))
	}
	m.logger.Debug("subscription added", "topic", topic, "first", first)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			last, ok := m.subs.remove(topic, id)
			if !ok {
				return
			}
			if last {
				m.sendControl(newControl(TypeUnsubscribe, topic))
			}
			m.logger.Debug("subscription removed", "topic", topic, "last", last)
		})
	}
	return unsubscribe, nil
}
