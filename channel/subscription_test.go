package channel

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionTableFirstAndLast(t *testing.T) {
	st := newSubscriptionTable()

	id1, first := st.add("metrics.pnl", func(Message) {}, nil)
	assert.True(t, first)

	id2, first := st.add("metrics.pnl", func(Message) {}, nil)
	assert.False(t, first)

	last, ok := st.remove("metrics.pnl", id1)
	assert.True(t, ok)
	assert.False(t, last)

	last, ok = st.remove("metrics.pnl", id2)
	assert.True(t, ok)
	assert.True(t, last)

	_, ok = st.remove("metrics.pnl", id2)
	assert.False(t, ok)
}

func TestSubscriptionTableMatchIncludesWildcard(t *testing.T) {
	st := newSubscriptionTable()
	st.add("orders", func(Message) {}, nil)
	st.add(WildcardTopic, func(Message) {}, nil)

	assert.Len(t, st.match("orders"), 2)
	assert.Len(t, st.match("unrelated"), 1)
	assert.Len(t, st.match(WildcardTopic), 1)
	assert.Nil(t, st.match(""))
}

func TestSubscriptionTableMatchPreservesRegistrationOrder(t *testing.T) {
	st := newSubscriptionTable()

	var order []int
	for i := 1; i <= 4; i++ {
		n := i
		st.add("topic", func(Message) { order = append(order, n) }, nil)
	}

	for _, sub := range st.match("topic") {
		sub.fn(Message{})
	}
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestSubscriptionTableActiveTopicsSorted(t *testing.T) {
	st := newSubscriptionTable()
	st.add("zeta", func(Message) {}, nil)
	st.add("alpha", func(Message) {}, nil)
	st.add("alpha", func(Message) {}, nil)
	st.add(WildcardTopic, func(Message) {}, nil)

	assert.Equal(t, []string{WildcardTopic, "alpha", "zeta"}, st.activeTopics())
}

func TestSubscriptionTableConcurrentAccess(t *testing.T) {
	st := newSubscriptionTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			topic := fmt.Sprintf("topic-%d", n%4)
			for j := 0; j < 50; j++ {
				id, _ := st.add(topic, func(Message) {}, nil)
				st.match(topic)
				st.activeTopics()
				st.remove(topic, id)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, st.activeTopics())
}

func TestSubscribeValidation(t *testing.T) {
	m, err := New("ws://localhost:0")
	require.NoError(t, err)

	_, err = m.Subscribe("", func(Message) {})
	assert.Error(t, err)

	_, err = m.Subscribe("topic", nil)
	assert.Error(t, err)
}

func TestSubscribeUnsubscribeIdempotent(t *testing.T) {
	m, err := New("ws://localhost:0")
	require.NoError(t, err)

	unsubA, err := m.Subscribe("alerts", func(Message) {})
	require.NoError(t, err)
	unsubB, err := m.Subscribe("alerts", func(Message) {})
	require.NoError(t, err)

	assert.Equal(t, []string{"alerts"}, m.subs.activeTopics())

	unsubA()
	unsubA()
	assert.Equal(t, []string{"alerts"}, m.subs.activeTopics())

	unsubB()
	assert.Empty(t, m.subs.activeTopics())
}
