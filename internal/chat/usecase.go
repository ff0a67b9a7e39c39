package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat/infrastructure"
	"chat/internal/models"
)

// UserLookup resolves participants before a conversation is opened with them.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type ConversationUseCase struct {
	repo  Repository
	users UserLookup
	now   func() time.Time
}

func NewConversationUseCase(repo Repository, users UserLookup) *ConversationUseCase {
	return &ConversationUseCase{
		repo:  repo,
		users: users,
		now:   time.Now,
	}
}

// FindOrCreateDirect returns the direct conversation between a and b,
// creating it on first use. The argument order does not matter.
func (uc *ConversationUseCase) FindOrCreateDirect(ctx context.Context, a, b string) (string, error) {
	if a == "" || b == "" {
		return "", infrastructure.Validation("both participants are required")
	}
	if a == b {
		return "", infrastructure.Validation("cannot open a direct conversation with yourself")
	}
	for _, id := range []string{a, b} {
		if _, err := uc.users.GetByID(ctx, id); err != nil {
			return "", err
		}
	}

	now := models.Millis(uc.now())
	conv := &models.Conversation{
		ID:             uuid.NewString(),
		Type:           models.ConversationDirect,
		ParticipantIDs: models.CanonicalPair(a, b),
		DirectKey:      models.DirectKey(a, b),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return uc.repo.FindOrCreateDirect(ctx, conv)
}

func (uc *ConversationUseCase) Conversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return uc.repo.ConversationsForUser(ctx, userID)
}

func (uc *ConversationUseCase) Messages(ctx context.Context, conversationID, userID string) ([]*models.Message, error) {
	if _, err := uc.membership(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return uc.repo.Messages(ctx, conversationID)
}

// SendMessage appends text to the conversation. The sender is the first
// reader and the timestamp comes from the store, not from the caller.
func (uc *ConversationUseCase) SendMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	if err := models.ValidateMessageText(text); err != nil {
		return nil, err
	}
	if _, err := uc.membership(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		ReadBy:         []string{senderID},
		Reactions:      map[string][]string{},
	}
	if err := uc.repo.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (uc *ConversationUseCase) MarkRead(ctx context.Context, conversationID, messageID, userID string) error {
	if _, err := uc.membership(ctx, conversationID, userID); err != nil {
		return err
	}
	return uc.repo.MarkRead(ctx, conversationID, messageID, userID)
}

func (uc *ConversationUseCase) AddReaction(ctx context.Context, conversationID, messageID, emoji, userID string) error {
	if err := models.ValidateEmoji(emoji); err != nil {
		return err
	}
	if _, err := uc.membership(ctx, conversationID, userID); err != nil {
		return err
	}
	return uc.repo.UpdateReactions(ctx, conversationID, messageID, func(reactions map[string][]string) bool {
		return addReaction(reactions, emoji, userID)
	})
}

func (uc *ConversationUseCase) RemoveReaction(ctx context.Context, conversationID, messageID, emoji, userID string) error {
	if _, err := uc.membership(ctx, conversationID, userID); err != nil {
		return err
	}
	return uc.repo.UpdateReactions(ctx, conversationID, messageID, func(reactions map[string][]string) bool {
		return removeReaction(reactions, emoji, userID)
	})
}

func (uc *ConversationUseCase) membership(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	conv, err := uc.repo.ConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, infrastructure.ErrNotParticipant
	}
	return conv, nil
}
