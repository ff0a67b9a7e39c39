package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chat/infrastructure"
	"chat/internal/coordinator"
	"chat/internal/models"
	"chat/internal/store"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Authenticator resolves the token a websocket client connects with.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Event is pushed to the client whenever a store field changes.
type Event struct {
	Type store.Field `json:"type"`
	Data any         `json:"data"`
}

// Command is sent by the client.
type Command struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Open           bool   `json:"open,omitempty"`
}

const (
	CommandSelect      = "select"
	CommandToggleTheme = "toggle_theme"
	CommandSettings    = "settings"
	CommandSidebar     = "sidebar"
)

type conversationMessages struct {
	ConversationID string            `json:"conversationId"`
	Messages       []*models.Message `json:"messages"`
}

type conversationTyping struct {
	ConversationID string   `json:"conversationId"`
	Usernames      []string `json:"usernames"`
}

// SessionHandler gives every websocket client its own store and coordinator
// and streams the store to it.
type SessionHandler struct {
	auth     Authenticator
	prefs    store.Preferences
	subs     coordinator.Subscriptions
	receipts coordinator.ReadReceipts
	accept   *websocket.AcceptOptions
}

func NewSessionHandler(
	auth Authenticator,
	prefs store.Preferences,
	subs coordinator.Subscriptions,
	receipts coordinator.ReadReceipts,
	accept *websocket.AcceptOptions,
) *SessionHandler {
	return &SessionHandler{auth: auth, prefs: prefs, subs: subs, receipts: receipts, accept: accept}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := newSession(conn, store.NewChatStore(h.prefs))
	defer s.store.Subscribe(s.enqueue)()

	coord := coordinator.New(s.store, h.subs, h.receipts)
	defer coord.Close()

	go func() {
		defer cancel()
		if err := s.writeLoop(ctx); err != nil && ctx.Err() == nil {
			slog.DebugContext(ctx, "websocket write loop stopped", "user_id", user.ID, "error", err)
		}
	}()

	coord.SetUser(ctx, user)
	slog.InfoContext(ctx, "websocket session started", "user_id", user.ID)

	err = s.readLoop(ctx, coord)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		if err != nil && ctx.Err() == nil {
			slog.DebugContext(ctx, "websocket read loop stopped", "user_id", user.ID, "error", err)
		}
	}
	slog.InfoContext(ctx, "websocket session ended", "user_id", user.ID)
}

type session struct {
	conn  *websocket.Conn
	store *store.ChatStore

	mu      sync.Mutex
	pending map[store.Change]bool
	order   []store.Change
	wake    chan struct{}
}

func newSession(conn *websocket.Conn, s *store.ChatStore) *session {
	return &session{
		conn:    conn,
		store:   s,
		pending: make(map[store.Change]bool),
		wake:    make(chan struct{}, 1),
	}
}

// enqueue never blocks the store. Repeated changes to one field collapse
// into a single push of its latest value.
func (s *session) enqueue(c store.Change) {
	s.mu.Lock()
	if !s.pending[c] {
		s.pending[c] = true
		s.order = append(s.order, c)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) drain() []store.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.order
	s.order = nil
	s.pending = make(map[store.Change]bool)
	return out
}

func (s *session) writeLoop(ctx context.Context) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-s.wake:
			for _, c := range s.drain() {
				if err := s.write(ctx, snapshot(s.store, c)); err != nil {
					return err
				}
			}
		}
	}
}

func (s *session) write(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, e)
}

func (s *session) readLoop(ctx context.Context, coord *coordinator.Coordinator) error {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, s.conn, &cmd); err != nil {
			return err
		}
		if err := apply(ctx, s.store, coord, cmd); err != nil {
			slog.DebugContext(ctx, "ignoring client command", "type", cmd.Type, "error", err)
		}
	}
}

var errUnknownCommand = errors.New("unknown command")

func apply(ctx context.Context, s *store.ChatStore, coord *coordinator.Coordinator, cmd Command) error {
	switch cmd.Type {
	case CommandSelect:
		coord.Select(cmd.ConversationID)
	case CommandToggleTheme:
		s.ToggleTheme(ctx)
	case CommandSettings:
		s.SetSettingsOpen(cmd.Open)
	case CommandSidebar:
		s.SetSidebarOpen(cmd.Open)
	default:
		return errUnknownCommand
	}
	return nil
}

func snapshot(s *store.ChatStore, c store.Change) Event {
	e := Event{Type: c.Field}
	switch c.Field {
	case store.FieldCurrentUser:
		e.Data = s.CurrentUser()
	case store.FieldConversations:
		e.Data = s.Conversations()
	case store.FieldMessages:
		e.Data = conversationMessages{ConversationID: c.Key, Messages: s.Messages(c.Key)}
	case store.FieldTyping:
		e.Data = conversationTyping{ConversationID: c.Key, Usernames: s.Typing(c.Key)}
	case store.FieldOnlineUsers:
		e.Data = s.OnlineUsers()
	case store.FieldActiveConversation:
		e.Data = s.ActiveConversation()
	case store.FieldTheme:
		e.Data = s.Theme()
	case store.FieldSettingsOpen:
		e.Data = s.SettingsOpen()
	case store.FieldSidebarOpen:
		e.Data = s.SidebarOpen()
	}
	return e
}
