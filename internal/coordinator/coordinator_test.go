package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/store"
)

// fakeSubs records every subscription and lets the test push deliveries.
type fakeSubs struct {
	mu            sync.Mutex
	open          map[string]int
	conversations func([]*models.Conversation)
	messages      map[string]func([]*models.Message)
	presence      func([]string)
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{open: map[string]int{}, messages: map[string]func([]*models.Message){}}
}

func (f *fakeSubs) track(key string) feed.Cancel {
	f.mu.Lock()
	f.open[key]++
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.open[key]--
			f.mu.Unlock()
		})
	}
}

func (f *fakeSubs) SubscribePresence(cb func([]string)) feed.Cancel {
	f.mu.Lock()
	f.presence = cb
	f.mu.Unlock()
	return f.track("presence")
}

func (f *fakeSubs) SubscribeConversations(userID string, cb func([]*models.Conversation)) feed.Cancel {
	f.mu.Lock()
	f.conversations = cb
	f.mu.Unlock()
	return f.track("conversations:" + userID)
}

func (f *fakeSubs) SubscribeMessages(id string, cb func([]*models.Message)) feed.Cancel {
	f.mu.Lock()
	f.messages[id] = cb
	f.mu.Unlock()
	return f.track("messages:" + id)
}

func (f *fakeSubs) SubscribeTyping(id, _ string, _ func([]string)) feed.Cancel {
	return f.track("typing:" + id)
}

func (f *fakeSubs) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[key]
}

func (f *fakeSubs) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.open {
		n += v
	}
	return n
}

type receipts struct {
	mu    sync.Mutex
	calls []string
}

func (r *receipts) MarkRead(_ context.Context, conversationID, messageID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, conversationID+"/"+messageID+"/"+userID)
	return nil
}

func (r *receipts) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func convs(ids ...string) []*models.Conversation {
	out := make([]*models.Conversation, len(ids))
	for i, id := range ids {
		out[i] = &models.Conversation{ID: id}
	}
	return out
}

func TestSetUserOpensSessionSubscriptions(t *testing.T) {
	subs := newFakeSubs()
	c := New(store.NewChatStore(nil), subs, &receipts{})

	c.SetUser(context.Background(), &models.User{ID: "u1"})

	assert.Equal(t, 1, subs.count("presence"))
	assert.Equal(t, 1, subs.count("conversations:u1"))
}

func TestReconcileFollowsConversationList(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})

	subs.conversations(convs("c1", "c2"))
	subs.conversations(convs("c2", "c3"))

	assert.Equal(t, 0, subs.count("messages:c1"))
	assert.Equal(t, 0, subs.count("typing:c1"))
	for _, id := range []string{"c2", "c3"} {
		assert.Equal(t, 1, subs.count("messages:"+id))
		assert.Equal(t, 1, subs.count("typing:"+id))
	}
	assert.Equal(t, map[string]int{"c2": 2, "c3": 2}, c.OpenStreams())
	assert.Len(t, s.Conversations(), 2)
}

func TestFirstConversationBecomesActive(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})

	subs.conversations(convs("c7", "c8"))
	assert.Equal(t, "c7", s.ActiveConversation())

	c.Select("c8")
	subs.conversations(convs("c7", "c8"))
	assert.Equal(t, "c8", s.ActiveConversation())
}

func TestSignOutTearsEverythingDown(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})
	subs.conversations(convs("c1", "c2"))

	c.SetUser(context.Background(), nil)

	assert.Zero(t, subs.total())
	assert.Nil(t, s.CurrentUser())
	assert.Empty(t, s.Conversations())
}

func TestSwitchingUsersClosesPreviousSubscriptions(t *testing.T) {
	subs := newFakeSubs()
	c := New(store.NewChatStore(nil), subs, &receipts{})

	c.SetUser(context.Background(), &models.User{ID: "u1"})
	c.SetUser(context.Background(), &models.User{ID: "u2"})

	assert.Equal(t, 0, subs.count("conversations:u1"))
	assert.Equal(t, 1, subs.count("conversations:u2"))
	assert.Equal(t, 1, subs.count("presence"))
}

func TestCloseLeavesNothingOpen(t *testing.T) {
	subs := newFakeSubs()
	c := New(store.NewChatStore(nil), subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})
	subs.conversations(convs("c1"))

	c.Close()
	assert.Zero(t, subs.total())

	c.SetUser(context.Background(), &models.User{ID: "u1"})
	assert.Zero(t, subs.total())
}

func TestStaleDeliveriesAreIgnored(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})
	stale := subs.conversations

	c.SetUser(context.Background(), &models.User{ID: "u2"})
	stale(convs("c1"))

	assert.Empty(t, s.Conversations())
	assert.Zero(t, subs.count("messages:c1"))
}

func TestActiveConversationMessagesAreMarkedRead(t *testing.T) {
	subs := newFakeSubs()
	r := &receipts{}
	s := store.NewChatStore(nil)
	c := New(s, subs, r)
	c.SetUser(context.Background(), &models.User{ID: "u1"})
	subs.conversations(convs("c1", "c2"))

	subs.messages["c1"]([]*models.Message{
		{ID: "m1", SenderID: "u1", ReadBy: []string{"u1"}},
		{ID: "m2", SenderID: "u2", ReadBy: []string{"u2"}},
		{ID: "m3", SenderID: "u2", ReadBy: []string{"u2", "u1"}},
	})
	subs.messages["c2"]([]*models.Message{
		{ID: "m4", SenderID: "u2", ReadBy: []string{"u2"}},
	})

	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c1/m2/u1"}, r.snapshot())
	assert.Len(t, s.Messages("c2"), 1)
}

func TestReplacedMessageStreamCannotOverwriteStore(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})

	subs.conversations(convs("c1"))
	old := subs.messages["c1"]

	subs.conversations(convs("c1"))
	fresh := subs.messages["c1"]
	fresh([]*models.Message{
		{ID: "m1", SenderID: "u1", ReadBy: []string{"u1"}},
		{ID: "m2", SenderID: "u1", ReadBy: []string{"u1"}},
	})

	old([]*models.Message{{ID: "m1", SenderID: "u1", ReadBy: []string{"u1"}}})

	assert.Equal(t, map[string]int{"c1": 2}, c.OpenStreams())
	assert.Len(t, s.Messages("c1"), 2)
}

func TestDroppedConversationStreamIsIgnored(t *testing.T) {
	subs := newFakeSubs()
	s := store.NewChatStore(nil)
	c := New(s, subs, &receipts{})
	c.SetUser(context.Background(), &models.User{ID: "u1"})

	subs.conversations(convs("c1", "c2"))
	old := subs.messages["c1"]
	subs.conversations(convs("c2"))

	old([]*models.Message{{ID: "m1", SenderID: "u2", ReadBy: []string{"u2"}}})

	assert.Empty(t, s.Messages("c1"))
}
