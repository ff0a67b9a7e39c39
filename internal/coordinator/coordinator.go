package coordinator

import (
	"context"
	"sync"

	"chat/infrastructure"
	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/store"
)

type Subscriptions interface {
	SubscribePresence(cb func(onlineUserIDs []string)) feed.Cancel
	SubscribeConversations(userID string, cb func([]*models.Conversation)) feed.Cancel
	SubscribeMessages(conversationID string, cb func([]*models.Message)) feed.Cancel
	SubscribeTyping(conversationID, excludeUserID string, cb func(usernames []string)) feed.Cancel
}

type ReadReceipts interface {
	MarkRead(ctx context.Context, conversationID, messageID, userID string) error
}

// Coordinator opens and closes subscriptions for one client. Presence and
// the conversation list follow the signed-in user; message and typing
// streams follow the conversation list.
type Coordinator struct {
	mu       sync.Mutex
	store    *store.ChatStore
	subs     Subscriptions
	receipts ReadReceipts

	userID  string
	gen     uint64
	closed  bool
	session []feed.Cancel
	seq     uint64
	perConv map[string]convStreams
	marking map[string]bool
}

// convStreams holds the message and typing subscriptions opened for one
// conversation. Callbacks carry the token they were opened with and are
// dropped once perConv holds a different one.
type convStreams struct {
	token   uint64
	cancels []feed.Cancel
}

func New(s *store.ChatStore, subs Subscriptions, receipts ReadReceipts) *Coordinator {
	return &Coordinator{
		store:    s,
		subs:     subs,
		receipts: receipts,
		perConv:  make(map[string]convStreams),
		marking:  make(map[string]bool),
	}
}

// SetUser switches the signed-in user. Every open subscription is closed
// first; nil signs out and clears the store.
func (c *Coordinator) SetUser(ctx context.Context, user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.teardown()
	c.gen++

	if user == nil {
		c.userID = ""
		c.store.Reset()
		return
	}

	c.userID = user.ID
	c.store.SetCurrentUser(ctx, user)

	gen := c.gen
	c.session = append(c.session,
		c.subs.SubscribePresence(func(ids []string) {
			if c.current(gen) {
				c.store.SetOnlineUsers(ids)
			}
		}),
		c.subs.SubscribeConversations(user.ID, func(convs []*models.Conversation) {
			c.onConversations(gen, convs)
		}),
	)
}

// Select makes conversationID the active one and marks what is already
// loaded for it as read.
func (c *Coordinator) Select(conversationID string) {
	c.store.SetActiveConversation(conversationID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.userID == "" {
		return
	}
	c.markUnread(conversationID, c.store.Messages(conversationID))
}

// Close cancels every subscription. The coordinator cannot be reused.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown()
	c.gen++
	c.closed = true
}

// OpenStreams reports how many message and typing subscriptions are open
// for each conversation.
func (c *Coordinator) OpenStreams() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.perConv))
	for id, streams := range c.perConv {
		out[id] = len(streams.cancels)
	}
	return out
}

func (c *Coordinator) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

func (c *Coordinator) teardown() {
	for _, cancel := range c.session {
		cancel()
	}
	c.session = nil
	c.teardownConversations()
}

// streamCurrent reports whether token still identifies the open streams of
// conversationID. Callers hold c.mu.
func (c *Coordinator) streamCurrent(conversationID string, token uint64) bool {
	streams, ok := c.perConv[conversationID]
	return !c.closed && ok && streams.token == token
}

func (c *Coordinator) teardownConversations() {
	for id, streams := range c.perConv {
		for _, cancel := range streams.cancels {
			cancel()
		}
		delete(c.perConv, id)
	}
}

// onConversations replaces the list and re-opens one message and one typing
// stream per conversation in it.
func (c *Coordinator) onConversations(gen uint64, convs []*models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}

	c.store.SetConversations(convs)
	c.teardownConversations()

	keep := make(map[string]bool, len(convs))
	for _, conv := range convs {
		id := conv.ID
		keep[id] = true
		c.seq++
		token := c.seq
		cancels := []feed.Cancel{
			c.subs.SubscribeMessages(id, func(msgs []*models.Message) {
				c.onMessages(id, token, msgs)
			}),
			c.subs.SubscribeTyping(id, c.userID, func(names []string) {
				c.onTyping(id, token, names)
			}),
		}
		c.perConv[id] = convStreams{token: token, cancels: cancels}
	}
	c.store.Forget(keep)

	if c.store.ActiveConversation() == "" && len(convs) > 0 {
		c.store.SetActiveConversation(convs[0].ID)
	}
}

func (c *Coordinator) onMessages(conversationID string, token uint64, msgs []*models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streamCurrent(conversationID, token) {
		return
	}

	c.store.SetMessages(conversationID, msgs)
	if c.store.ActiveConversation() == conversationID {
		c.markUnread(conversationID, msgs)
	}
}

func (c *Coordinator) onTyping(conversationID string, token uint64, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streamCurrent(conversationID, token) {
		return
	}
	c.store.SetTyping(conversationID, names)
}

// markUnread sends read receipts for messages the current user neither
// wrote nor read. Receipts are best effort.
func (c *Coordinator) markUnread(conversationID string, msgs []*models.Message) {
	userID := c.userID
	for _, m := range msgs {
		if m.SenderID == userID || m.IsReadBy(userID) || c.marking[m.ID] {
			continue
		}
		msgID := m.ID
		c.marking[msgID] = true
		infrastructure.Detach(context.Background(), "read receipt", func(ctx context.Context) error {
			defer func() {
				c.mu.Lock()
				delete(c.marking, msgID)
				c.mu.Unlock()
			}()
			return c.receipts.MarkRead(ctx, conversationID, msgID, userID)
		})
	}
}
