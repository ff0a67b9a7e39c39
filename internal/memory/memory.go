package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat/infrastructure"
	"chat/internal/auth/accounts"
	"chat/internal/chat"
	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/user"
)

// Backend keeps every record in process memory. A single mutex makes each
// operation atomic, which gives the same guarantees as the Postgres
// storages: one direct conversation per pair and no lost reaction updates.
type Backend struct {
	mu  sync.Mutex
	pub feed.Publisher
	now func() time.Time

	accounts      map[string]*accounts.Account // provider + ":" + subject
	users         map[string]*models.User
	conversations map[string]*models.Conversation
	directKeys    map[string]string
	messages      map[string][]*models.Message
	typing        map[string]map[string]*models.TypingIndicator
	prefs         map[string]string
	states        map[string]oauthState
}

type oauthState struct {
	provider string
	expires  time.Time
}

func NewBackend(pub feed.Publisher) *Backend {
	return &Backend{
		pub:           pub,
		now:           time.Now,
		accounts:      make(map[string]*accounts.Account),
		users:         make(map[string]*models.User),
		conversations: make(map[string]*models.Conversation),
		directKeys:    make(map[string]string),
		messages:      make(map[string][]*models.Message),
		typing:        make(map[string]map[string]*models.TypingIndicator),
		prefs:         make(map[string]string),
		states:        make(map[string]oauthState),
	}
}

// WithClock replaces the clock that stamps messages and expires states.
func (b *Backend) WithClock(now func() time.Time) *Backend {
	b.now = now
	return b
}

func (b *Backend) publish(events ...feed.Event) {
	if b.pub != nil && len(events) > 0 {
		b.pub.Publish(events...)
	}
}

func identity(provider, subject string) string {
	return provider + ":" + subject
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

// Accounts

func (b *Backend) CreateAccount(_ context.Context, account *accounts.Account, u *models.User) error {
	b.mu.Lock()
	key := identity(account.Provider, account.Subject)
	if _, ok := b.accounts[key]; ok {
		b.mu.Unlock()
		return infrastructure.ErrUserAlreadyExists
	}
	a := *account
	b.accounts[key] = &a
	b.users[u.ID] = cloneUser(u)
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindUser, Key: u.ID})
	return nil
}

func (b *Backend) AccountByIdentity(_ context.Context, provider, subject string) (*accounts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[identity(provider, subject)]
	if !ok {
		return nil, infrastructure.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (b *Backend) EnsureAccount(_ context.Context, account *accounts.Account) (*accounts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := identity(account.Provider, account.Subject)
	if a, ok := b.accounts[key]; ok {
		c := *a
		return &c, nil
	}
	a := *account
	b.accounts[key] = &a
	c := a
	return &c, nil
}

// Users

func (b *Backend) CreateIfMissing(_ context.Context, u *models.User) (bool, error) {
	if err := models.ValidateUser(u); err != nil {
		return false, err
	}
	b.mu.Lock()
	if _, ok := b.users[u.ID]; ok {
		b.mu.Unlock()
		return false, nil
	}
	b.users[u.ID] = cloneUser(u)
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindUser, Key: u.ID})
	return true, nil
}

func (b *Backend) GetByID(_ context.Context, id string) (*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return nil, infrastructure.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (b *Backend) ListAll(_ context.Context) ([]*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.User, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b *Backend) OnlineUserIDs(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, u := range b.users {
		if u.Status == models.StatusOnline {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *Backend) Update(_ context.Context, id string, mutate user.Mutation) (*models.User, error) {
	b.mu.Lock()
	u, ok := b.users[id]
	if !ok {
		b.mu.Unlock()
		return nil, infrastructure.ErrUserNotFound
	}
	draft := cloneUser(u)
	if err := mutate(draft); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.users[id] = draft
	out := cloneUser(draft)
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindUser, Key: id})
	return out, nil
}

// Conversations and messages

func (b *Backend) FindOrCreateDirect(_ context.Context, conv *models.Conversation) (string, error) {
	b.mu.Lock()
	if id, ok := b.directKeys[conv.DirectKey]; ok {
		b.mu.Unlock()
		return id, nil
	}
	b.conversations[conv.ID] = models.CloneConversation(conv)
	b.directKeys[conv.DirectKey] = conv.ID
	b.mu.Unlock()

	b.publish(feed.ConversationChanged(conv.ParticipantIDs)...)
	return conv.ID, nil
}

func (b *Backend) ConversationByID(_ context.Context, id string) (*models.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conversations[id]
	if !ok {
		return nil, infrastructure.ErrConversationNotFound
	}
	return models.CloneConversation(c), nil
}

func (b *Backend) ConversationsForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*models.Conversation
	for _, c := range b.conversations {
		if c.HasParticipant(userID) {
			out = append(out, models.CloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b *Backend) SaveMessage(_ context.Context, msg *models.Message) error {
	b.mu.Lock()
	conv, ok := b.conversations[msg.ConversationID]
	if !ok {
		b.mu.Unlock()
		return infrastructure.ErrConversationNotFound
	}
	msg.Timestamp = max(models.Millis(b.now()), conv.LastMessageTimestamp)
	b.messages[conv.ID] = append(b.messages[conv.ID], models.CloneMessage(msg))

	conv.LastMessageID = msg.ID
	conv.LastMessageText = msg.Text
	conv.LastMessageTimestamp = msg.Timestamp
	conv.UpdatedAt = msg.Timestamp
	participants := append([]string(nil), conv.ParticipantIDs...)
	b.mu.Unlock()

	b.publish(append(feed.ConversationChanged(participants),
		feed.Event{Kind: feed.KindMessages, Key: msg.ConversationID})...)
	return nil
}

func (b *Backend) Messages(_ context.Context, conversationID string) ([]*models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[conversationID]
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = models.CloneMessage(m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (b *Backend) message(conversationID, messageID string) *models.Message {
	for _, m := range b.messages[conversationID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

func (b *Backend) MarkRead(_ context.Context, conversationID, messageID, userID string) error {
	b.mu.Lock()
	m := b.message(conversationID, messageID)
	if m == nil {
		b.mu.Unlock()
		return infrastructure.ErrMessageNotFound
	}
	if !m.IsReadBy(userID) {
		m.ReadBy = append(m.ReadBy, userID)
	}
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindMessages, Key: conversationID})
	return nil
}

func (b *Backend) UpdateReactions(_ context.Context, conversationID, messageID string, mutate chat.ReactionMutation) error {
	b.mu.Lock()
	m := b.message(conversationID, messageID)
	if m == nil {
		b.mu.Unlock()
		return nil
	}
	if m.Reactions == nil {
		m.Reactions = map[string][]string{}
	}
	changed := mutate(m.Reactions)
	b.mu.Unlock()

	if changed {
		b.publish(feed.Event{Kind: feed.KindMessages, Key: conversationID})
	}
	return nil
}

// Typing

func (b *Backend) Upsert(_ context.Context, indicator *models.TypingIndicator) error {
	b.mu.Lock()
	byUser, ok := b.typing[indicator.ConversationID]
	if !ok {
		byUser = make(map[string]*models.TypingIndicator)
		b.typing[indicator.ConversationID] = byUser
	}
	t := *indicator
	byUser[indicator.UserID] = &t
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindTyping, Key: indicator.ConversationID})
	return nil
}

func (b *Backend) ClearIfOlder(_ context.Context, conversationID, userID string, cutoff int64) error {
	b.mu.Lock()
	t, ok := b.typing[conversationID][userID]
	if !ok || t.Timestamp == 0 || t.Timestamp > cutoff {
		b.mu.Unlock()
		return nil
	}
	t.Timestamp = 0
	b.mu.Unlock()

	b.publish(feed.Event{Kind: feed.KindTyping, Key: conversationID})
	return nil
}

func (b *Backend) Indicators(_ context.Context, conversationID string) ([]*models.TypingIndicator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.TypingIndicator, 0, len(b.typing[conversationID]))
	for _, t := range b.typing[conversationID] {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// Preferences

func (b *Backend) Load(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.prefs[key]
	return v, ok, nil
}

func (b *Backend) Save(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefs[key] = value
	return nil
}

// OAuth states

func (b *Backend) SaveState(_ context.Context, state, provider string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[state] = oauthState{provider: provider, expires: b.now().Add(ttl)}
	return nil
}

func (b *Backend) TakeState(_ context.Context, state string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[state]
	delete(b.states, state)
	if !ok || b.now().After(s.expires) {
		return "", nil
	}
	return s.provider, nil
}
