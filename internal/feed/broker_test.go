package feed

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second
const tick = 5 * time.Millisecond

func TestSubscribeRunsImmediately(t *testing.T) {
	b := NewBroker()
	var calls atomic.Int32
	cancel := b.Subscribe(KindMessages, "c1", func() { calls.Add(1) })
	defer cancel()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
}

func TestPublishFiltersByKindAndKey(t *testing.T) {
	b := NewBroker()
	var c1, c2, all atomic.Int32
	defer b.Subscribe(KindMessages, "c1", func() { c1.Add(1) })()
	defer b.Subscribe(KindMessages, "c2", func() { c2.Add(1) })()
	defer b.Subscribe(KindUser, "", func() { all.Add(1) })()

	require.Eventually(t, func() bool { return c1.Load() == 1 && c2.Load() == 1 && all.Load() == 1 }, waitFor, tick)

	b.Publish(Event{Kind: KindMessages, Key: "c1"})
	require.Eventually(t, func() bool { return c1.Load() == 2 }, waitFor, tick)

	b.Publish(Event{Kind: KindUser, Key: "u9"})
	require.Eventually(t, func() bool { return all.Load() == 2 }, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, c2.Load())
	assert.EqualValues(t, 2, c1.Load())
}

func TestResyncReachesEverySubscription(t *testing.T) {
	b := NewBroker()
	var a, c atomic.Int32
	defer b.Subscribe(KindTyping, "c1", func() { a.Add(1) })()
	defer b.Subscribe(KindConversations, "u1", func() { c.Add(1) })()
	require.Eventually(t, func() bool { return a.Load() == 1 && c.Load() == 1 }, waitFor, tick)

	b.Publish(Event{Kind: KindResync})
	require.Eventually(t, func() bool { return a.Load() == 2 && c.Load() == 2 }, waitFor, tick)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker()
	var calls atomic.Int32
	cancel := b.Subscribe(KindMessages, "c1", func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	cancel()
	cancel()
	assert.Equal(t, 0, b.Len())

	b.Publish(Event{Kind: KindMessages, Key: "c1"})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBusyHandlerCoalescesEvents(t *testing.T) {
	b := NewBroker()
	release := make(chan struct{})
	var calls atomic.Int32
	defer b.Subscribe(KindMessages, "c1", func() {
		if calls.Add(1) == 1 {
			<-release
		}
	})()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
	for i := 0; i < 10; i++ {
		b.Publish(Event{Kind: KindMessages, Key: "c1"})
	}
	close(release)

	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
}

func TestHandlerPanicKeepsSubscriptionAlive(t *testing.T) {
	b := NewBroker()
	var calls atomic.Int32
	defer b.Subscribe(KindUser, "", func() {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
	b.Publish(Event{Kind: KindUser, Key: "u1"})
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
}

func TestConversationChangedFansOut(t *testing.T) {
	assert.Equal(t, []Event{
		{Kind: KindConversations, Key: "a"},
		{Kind: KindConversations, Key: "b"},
	}, ConversationChanged([]string{"a", "b"}))
}
