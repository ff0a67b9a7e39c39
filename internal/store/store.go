package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"chat/internal/models"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultTheme = ThemeDark
)

// Field names a piece of store state in change notifications.
type Field string

const (
	FieldCurrentUser        Field = "current_user"
	FieldConversations      Field = "conversations"
	FieldMessages           Field = "messages"
	FieldTyping             Field = "typing"
	FieldOnlineUsers        Field = "online_users"
	FieldActiveConversation Field = "active_conversation"
	FieldTheme              Field = "theme"
	FieldSettingsOpen       Field = "settings_open"
	FieldSidebarOpen        Field = "sidebar_open"
)

// Change tells observers which field moved. Key carries the conversation id
// for per-conversation fields.
type Change struct {
	Field Field
	Key   string
}

// Preferences is the key-value slot the theme survives restarts in.
type Preferences interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

// ChatStore holds the latest value of every subscription for one client.
// Subscription-fed fields are replaced wholesale; everything else goes
// through a narrow setter.
type ChatStore struct {
	mu sync.RWMutex

	currentUser        *models.User
	conversations      []*models.Conversation
	messages           map[string][]*models.Message
	typing             map[string][]string
	onlineUsers        map[string]struct{}
	activeConversation string
	theme              Theme
	settingsOpen       bool
	sidebarOpen        bool

	prefs     Preferences
	observers map[int]func(Change)
	nextObs   int
}

func NewChatStore(prefs Preferences) *ChatStore {
	return &ChatStore{
		messages:    make(map[string][]*models.Message),
		typing:      make(map[string][]string),
		onlineUsers: make(map[string]struct{}),
		theme:       DefaultTheme,
		prefs:       prefs,
		observers:   make(map[int]func(Change)),
	}
}

func themeKey(userID string) string {
	return "theme:" + userID
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs after the store lock is released.
func (s *ChatStore) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *ChatStore) notify(changes ...Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// SetCurrentUser replaces the signed-in user and loads that user's theme.
func (s *ChatStore) SetCurrentUser(ctx context.Context, user *models.User) {
	s.mu.Lock()
	if user != nil {
		u := *user
		s.currentUser = &u
	} else {
		s.currentUser = nil
	}
	s.mu.Unlock()

	changes := []Change{{Field: FieldCurrentUser}}
	if user != nil && s.loadTheme(ctx, user.ID) {
		changes = append(changes, Change{Field: FieldTheme})
	}
	s.notify(changes...)
}

func (s *ChatStore) loadTheme(ctx context.Context, userID string) bool {
	if s.prefs == nil {
		return false
	}
	v, ok, err := s.prefs.Load(ctx, themeKey(userID))
	if err != nil {
		slog.WarnContext(ctx, "failed to load theme", "user_id", userID, "error", err)
		return false
	}
	theme := DefaultTheme
	if ok && (Theme(v) == ThemeLight || Theme(v) == ThemeDark) {
		theme = Theme(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == theme {
		return false
	}
	s.theme = theme
	return true
}

func (s *ChatStore) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return nil
	}
	u := *s.currentUser
	return &u
}

func (s *ChatStore) SetConversations(convs []*models.Conversation) {
	cp := make([]*models.Conversation, len(convs))
	for i, c := range convs {
		cp[i] = models.CloneConversation(c)
	}

	s.mu.Lock()
	s.conversations = cp
	s.mu.Unlock()
	s.notify(Change{Field: FieldConversations})
}

func (s *ChatStore) Conversations() []*models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = models.CloneConversation(c)
	}
	return out
}

func (s *ChatStore) SetMessages(conversationID string, msgs []*models.Message) {
	cp := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		cp[i] = models.CloneMessage(m)
	}

	s.mu.Lock()
	s.messages[conversationID] = cp
	s.mu.Unlock()
	s.notify(Change{Field: FieldMessages, Key: conversationID})
}

// AddMessage appends one message to a conversation's list.
func (s *ChatStore) AddMessage(conversationID string, msg *models.Message) {
	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], models.CloneMessage(msg))
	s.mu.Unlock()
	s.notify(Change{Field: FieldMessages, Key: conversationID})
}

func (s *ChatStore) Messages(conversationID string) []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = models.CloneMessage(m)
	}
	return out
}

func (s *ChatStore) SetTyping(conversationID string, usernames []string) {
	s.mu.Lock()
	s.typing[conversationID] = append([]string(nil), usernames...)
	s.mu.Unlock()
	s.notify(Change{Field: FieldTyping, Key: conversationID})
}

func (s *ChatStore) Typing(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.typing[conversationID]...)
}

func (s *ChatStore) SetOnlineUsers(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	s.onlineUsers = set
	s.mu.Unlock()
	s.notify(Change{Field: FieldOnlineUsers})
}

func (s *ChatStore) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.onlineUsers[userID]
	return ok
}

// OnlineUsers returns the online ids in sorted order.
func (s *ChatStore) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.onlineUsers))
	for id := range s.onlineUsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *ChatStore) SetActiveConversation(id string) {
	s.mu.Lock()
	if s.activeConversation == id {
		s.mu.Unlock()
		return
	}
	s.activeConversation = id
	s.mu.Unlock()
	s.notify(Change{Field: FieldActiveConversation})
}

func (s *ChatStore) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeConversation
}

func (s *ChatStore) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// ToggleTheme flips between light and dark and persists the choice for the
// current user. A failed write keeps the new theme in memory.
func (s *ChatStore) ToggleTheme(ctx context.Context) Theme {
	s.mu.Lock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	theme := s.theme
	var userID string
	if s.currentUser != nil {
		userID = s.currentUser.ID
	}
	s.mu.Unlock()

	if s.prefs != nil && userID != "" {
		if err := s.prefs.Save(ctx, themeKey(userID), string(theme)); err != nil {
			slog.WarnContext(ctx, "failed to save theme", "user_id", userID, "error", err)
		}
	}
	s.notify(Change{Field: FieldTheme})
	return theme
}

func (s *ChatStore) SetSettingsOpen(open bool) {
	s.mu.Lock()
	s.settingsOpen = open
	s.mu.Unlock()
	s.notify(Change{Field: FieldSettingsOpen})
}

func (s *ChatStore) SettingsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsOpen
}

func (s *ChatStore) SetSidebarOpen(open bool) {
	s.mu.Lock()
	s.sidebarOpen = open
	s.mu.Unlock()
	s.notify(Change{Field: FieldSidebarOpen})
}

func (s *ChatStore) SidebarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarOpen
}

// Reset clears everything a signed-in session accumulated. The theme stays.
func (s *ChatStore) Reset() {
	s.mu.Lock()
	s.currentUser = nil
	s.conversations = nil
	s.messages = make(map[string][]*models.Message)
	s.typing = make(map[string][]string)
	s.onlineUsers = make(map[string]struct{})
	s.activeConversation = ""
	s.mu.Unlock()

	s.notify(
		Change{Field: FieldCurrentUser},
		Change{Field: FieldConversations},
		Change{Field: FieldOnlineUsers},
		Change{Field: FieldActiveConversation},
	)
}

// Forget drops per-conversation state for conversations not in keep.
func (s *ChatStore) Forget(keep map[string]bool) {
	s.mu.Lock()
	for id := range s.messages {
		if !keep[id] {
			delete(s.messages, id)
		}
	}
	for id := range s.typing {
		if !keep[id] {
			delete(s.typing, id)
		}
	}
	s.mu.Unlock()
}
