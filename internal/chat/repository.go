package chat

import (
	"context"
	"database/sql"
	"errors"

	"chat/infrastructure"
	"chat/internal/chat/storage"
	"chat/internal/feed"
	"chat/internal/models"
)

// ReactionMutation edits a message's reaction map and reports whether it
// changed anything.
type ReactionMutation func(reactions map[string][]string) bool

type Repository interface {
	// FindOrCreateDirect stores conv unless a conversation with its direct
	// key exists, and returns the id of the one conversation for that key.
	FindOrCreateDirect(ctx context.Context, conv *models.Conversation) (string, error)
	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	// SaveMessage stamps msg with the store's clock, appends it and moves the
	// conversation's last-message fields to it in one write.
	SaveMessage(ctx context.Context, msg *models.Message) error
	Messages(ctx context.Context, conversationID string) ([]*models.Message, error)
	MarkRead(ctx context.Context, conversationID, messageID, userID string) error
	// UpdateReactions applies mutate to the message under a row lock. A
	// missing message is not an error.
	UpdateReactions(ctx context.Context, conversationID, messageID string, mutate ReactionMutation) error
}

type repository struct {
	*sql.DB
	conversationSaver    storage.ConversationSaver
	conversationProvider storage.ConversationProvider
	conversationUpdater  storage.ConversationUpdater
	messageSaver         storage.MessageSaver
	messageProvider      storage.MessageProvider
	messageUpdater       storage.MessageUpdater
	clock                storage.Clock
}

func NewRepository(db *sql.DB, s *storage.PostgresStorage) Repository {
	return &repository{
		DB:                   db,
		conversationSaver:    s,
		conversationProvider: s,
		conversationUpdater:  s,
		messageSaver:         s,
		messageProvider:      s,
		messageUpdater:       s,
		clock:                s,
	}
}

func (r *repository) FindOrCreateDirect(ctx context.Context, conv *models.Conversation) (id string, err error) {
	err = infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		var created bool
		id, created, err = r.conversationSaver.SaveDirectIfMissing(ctx, tx, conv)
		if err != nil || !created {
			return err
		}
		return feed.Notify(ctx, tx, feed.ConversationChanged(conv.ParticipantIDs)...)
	})
	return id, infrastructure.Unavailable("find or create conversation", err)
}

func (r *repository) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	c, err := r.conversationProvider.ConversationByID(ctx, id)
	return c, infrastructure.Unavailable("get conversation", err)
}

func (r *repository) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convs, err := r.conversationProvider.ConversationsForUser(ctx, userID)
	return convs, infrastructure.Unavailable("list conversations", err)
}

func (r *repository) SaveMessage(ctx context.Context, msg *models.Message) error {
	err := infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		// The row lock serializes senders so timestamps follow commit order.
		conv, err := r.conversationUpdater.LockConversation(ctx, tx, msg.ConversationID)
		if err != nil {
			return err
		}

		now, err := r.clock.ServerMillis(ctx, tx)
		if err != nil {
			return err
		}
		msg.Timestamp = max(now, conv.LastMessageTimestamp)

		if err := r.messageSaver.SaveMessage(ctx, tx, msg); err != nil {
			return err
		}

		conv.LastMessageID = msg.ID
		conv.LastMessageText = msg.Text
		conv.LastMessageTimestamp = msg.Timestamp
		conv.UpdatedAt = msg.Timestamp
		if err := r.conversationUpdater.UpdateLastMessage(ctx, tx, conv); err != nil {
			return err
		}

		events := append(feed.ConversationChanged(conv.ParticipantIDs),
			feed.Event{Kind: feed.KindMessages, Key: conv.ID})
		return feed.Notify(ctx, tx, events...)
	})
	return infrastructure.Unavailable("send message", err)
}

func (r *repository) Messages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	msgs, err := r.messageProvider.Messages(ctx, conversationID)
	return msgs, infrastructure.Unavailable("list messages", err)
}

func (r *repository) MarkRead(ctx context.Context, conversationID, messageID, userID string) error {
	err := infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		found, err := r.messageUpdater.AddReader(ctx, tx, conversationID, messageID, userID)
		if err != nil {
			return err
		}
		if !found {
			return infrastructure.ErrMessageNotFound
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindMessages, Key: conversationID})
	})
	return infrastructure.Unavailable("mark read", err)
}

func (r *repository) UpdateReactions(ctx context.Context, conversationID, messageID string, mutate ReactionMutation) error {
	err := infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		msg, err := r.messageUpdater.LockMessage(ctx, tx, conversationID, messageID)
		if errors.Is(err, infrastructure.ErrMessageNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !mutate(msg.Reactions) {
			return nil
		}
		if err := r.messageUpdater.UpdateReactions(ctx, tx, msg); err != nil {
			return err
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindMessages, Key: conversationID})
	})
	return infrastructure.Unavailable("update reactions", err)
}
