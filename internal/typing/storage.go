package typing

import (
	"context"
	"database/sql"

	"chat/infrastructure"
	"chat/internal/feed"
	"chat/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, indicator *models.TypingIndicator) error
	// ClearIfOlder zeroes the indicator unless it was refreshed after cutoff.
	ClearIfOlder(ctx context.Context, conversationID, userID string, cutoff int64) error
	Indicators(ctx context.Context, conversationID string) ([]*models.TypingIndicator, error)
}

type PostgresStorage struct {
	db *sql.DB
}

func NewTypingPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Upsert(ctx context.Context, indicator *models.TypingIndicator) error {
	err := infrastructure.WithTransaction(s.db, ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO typing_indicators (conversation_id, user_id, username, timestamp)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (conversation_id, user_id)
			DO UPDATE SET username = EXCLUDED.username, timestamp = EXCLUDED.timestamp`,
			indicator.ConversationID, indicator.UserID, indicator.Username, indicator.Timestamp)
		if err != nil {
			return err
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindTyping, Key: indicator.ConversationID})
	})
	return infrastructure.Unavailable("update typing", err)
}

func (s *PostgresStorage) ClearIfOlder(ctx context.Context, conversationID, userID string, cutoff int64) error {
	err := infrastructure.WithTransaction(s.db, ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE typing_indicators SET timestamp = 0
			WHERE conversation_id = $1 AND user_id = $2 AND timestamp <> 0 AND timestamp <= $3`,
			conversationID, userID, cutoff)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindTyping, Key: conversationID})
	})
	return infrastructure.Unavailable("clear typing", err)
}

func (s *PostgresStorage) Indicators(ctx context.Context, conversationID string) ([]*models.TypingIndicator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, username, timestamp
		FROM typing_indicators WHERE conversation_id = $1
		ORDER BY username, user_id`, conversationID)
	if err != nil {
		return nil, infrastructure.Unavailable("list typing", err)
	}
	defer rows.Close()

	var out []*models.TypingIndicator
	for rows.Next() {
		var t models.TypingIndicator
		if err := rows.Scan(&t.ConversationID, &t.UserID, &t.Username, &t.Timestamp); err != nil {
			return nil, infrastructure.Unavailable("list typing", err)
		}
		out = append(out, &t)
	}
	return out, infrastructure.Unavailable("list typing", rows.Err())
}
