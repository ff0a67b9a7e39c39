package typing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chat/infrastructure"
	"chat/internal/models"
)

// Membership confirms that a user may type in a conversation.
type Membership interface {
	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
}

type UseCase struct {
	repo    Repository
	members Membership
	now     func() time.Time
	after   func(d time.Duration, f func())
}

func NewUseCase(repo Repository, members Membership) *UseCase {
	return &UseCase{
		repo:    repo,
		members: members,
		now:     time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// WithClock replaces the clock and the cleanup scheduler.
func (uc *UseCase) WithClock(now func() time.Time, after func(d time.Duration, f func())) *UseCase {
	uc.now = now
	uc.after = after
	return uc
}

// UpdateTyping stamps the user's indicator and schedules a cleanup one
// window later. Backend failures are logged and dropped; only a request
// the user may not make is reported.
func (uc *UseCase) UpdateTyping(ctx context.Context, conversationID, userID, username string) error {
	conv, err := uc.members.ConversationByID(ctx, conversationID)
	if errors.Is(err, infrastructure.ErrNotFound) {
		return err
	}
	if err != nil {
		slog.DebugContext(ctx, "typing update dropped", "conversation_id", conversationID, "error", err)
		return nil
	}
	if !conv.HasParticipant(userID) {
		return infrastructure.ErrNotParticipant
	}

	indicator := &models.TypingIndicator{
		ConversationID: conversationID,
		UserID:         userID,
		Username:       username,
		Timestamp:      models.Millis(uc.now()),
	}
	if err := uc.repo.Upsert(ctx, indicator); err != nil {
		slog.DebugContext(ctx, "typing update dropped", "conversation_id", conversationID, "error", err)
		return nil
	}

	uc.after(models.TypingWindow, func() {
		infrastructure.Detach(ctx, "typing cleanup", func(ctx context.Context) error {
			cutoff := models.Millis(uc.now()) - models.TypingWindow.Milliseconds()
			return uc.repo.ClearIfOlder(ctx, conversationID, userID, cutoff)
		})
	})
	return nil
}

// ActiveUsernames lists indicators inside the typing window at now, leaving
// out exclude.
func ActiveUsernames(indicators []*models.TypingIndicator, exclude string, now time.Time) []string {
	names := make([]string, 0, len(indicators))
	for _, t := range indicators {
		if t.UserID != exclude && t.Active(now) {
			names = append(names, t.Username)
		}
	}
	return names
}
