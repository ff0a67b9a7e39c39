package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/typing"
)

type PresenceSource interface {
	OnlineUserIDs(ctx context.Context) ([]string, error)
}

type ConversationSource interface {
	ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type MessageSource interface {
	Messages(ctx context.Context, conversationID string) ([]*models.Message, error)
}

type TypingSource interface {
	Indicators(ctx context.Context, conversationID string) ([]*models.TypingIndicator, error)
}

type Subscriber interface {
	Subscribe(kind feed.Kind, key string, handler func()) feed.Cancel
}

// Service turns change events into typed snapshots. Every subscription
// delivers the full current state right away and again after each change.
type Service struct {
	broker        Subscriber
	publisher     feed.Publisher
	presence      PresenceSource
	conversations ConversationSource
	messages      MessageSource
	typing        TypingSource
	now           func() time.Time
}

func NewService(
	broker *feed.Broker,
	presence PresenceSource,
	conversations ConversationSource,
	messages MessageSource,
	typing TypingSource,
) *Service {
	return &Service{
		broker:        broker,
		publisher:     broker,
		presence:      presence,
		conversations: conversations,
		messages:      messages,
		typing:        typing,
		now:           time.Now,
	}
}

// WithClock replaces the clock used to judge typing staleness.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func watch[T any](s *Service, kind feed.Kind, key string, query func(ctx context.Context) (T, error), cb func(T)) feed.Cancel {
	ctx, cancel := context.WithCancel(context.Background())
	stop := s.broker.Subscribe(kind, key, func() {
		v, err := query(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("subscription query failed", "kind", kind, "key", key, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		cb(v)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			stop()
		})
	}
}

// SubscribePresence delivers the ids of every online user.
func (s *Service) SubscribePresence(cb func(onlineUserIDs []string)) feed.Cancel {
	return watch(s, feed.KindUser, "", s.presence.OnlineUserIDs, cb)
}

// SubscribeConversations delivers userID's conversations, most recently
// updated first.
func (s *Service) SubscribeConversations(userID string, cb func([]*models.Conversation)) feed.Cancel {
	return watch(s, feed.KindConversations, userID, func(ctx context.Context) ([]*models.Conversation, error) {
		return s.conversations.ConversationsForUser(ctx, userID)
	}, cb)
}

// SubscribeMessages delivers a conversation's messages, oldest first.
func (s *Service) SubscribeMessages(conversationID string, cb func([]*models.Message)) feed.Cancel {
	return watch(s, feed.KindMessages, conversationID, func(ctx context.Context) ([]*models.Message, error) {
		return s.messages.Messages(ctx, conversationID)
	}, cb)
}

// SubscribeTyping delivers the usernames currently typing in a conversation,
// leaving out excludeUserID. Staleness is judged on this process's clock
// against the writer's timestamp, so skew between nodes can make an
// indicator flicker.
func (s *Service) SubscribeTyping(conversationID, excludeUserID string, cb func(usernames []string)) feed.Cancel {
	var mu sync.Mutex
	var expiry *time.Timer
	stopped := false

	// Re-evaluate when the oldest visible indicator leaves the window, even if
	// nobody writes in the meantime.
	schedule := func(indicators []*models.TypingIndicator, now time.Time) {
		var next time.Duration
		for _, t := range indicators {
			if t.UserID == excludeUserID || !t.Active(now) {
				continue
			}
			left := time.Duration(t.Timestamp+models.TypingWindow.Milliseconds()-models.Millis(now)) * time.Millisecond
			if next == 0 || left < next {
				next = left
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if expiry != nil {
			expiry.Stop()
			expiry = nil
		}
		if next > 0 && !stopped {
			expiry = time.AfterFunc(next, func() {
				s.publisher.Publish(feed.Event{Kind: feed.KindTyping, Key: conversationID})
			})
		}
	}

	cancel := watch(s, feed.KindTyping, conversationID, func(ctx context.Context) ([]string, error) {
		indicators, err := s.typing.Indicators(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		schedule(indicators, now)
		return typing.ActiveUsernames(indicators, excludeUserID, now), nil
	}, cb)

	return func() {
		cancel()
		mu.Lock()
		stopped = true
		if expiry != nil {
			expiry.Stop()
		}
		mu.Unlock()
	}
}
