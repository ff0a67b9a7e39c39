package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"chat/infrastructure"
	"chat/internal/models"
)

type ConversationSaver interface {
	// SaveDirectIfMissing inserts conv unless a conversation with the same
	// direct key exists, and returns the id stored under that key.
	SaveDirectIfMissing(ctx context.Context, tx *sql.Tx, conv *models.Conversation) (id string, created bool, err error)
}

type ConversationProvider interface {
	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type ConversationUpdater interface {
	LockConversation(ctx context.Context, tx *sql.Tx, id string) (*models.Conversation, error)
	UpdateLastMessage(ctx context.Context, tx *sql.Tx, conv *models.Conversation) error
}

type MessageSaver interface {
	SaveMessage(ctx context.Context, tx *sql.Tx, msg *models.Message) error
}

type MessageProvider interface {
	Messages(ctx context.Context, conversationID string) ([]*models.Message, error)
}

type MessageUpdater interface {
	AddReader(ctx context.Context, tx *sql.Tx, conversationID, messageID, userID string) (bool, error)
	LockMessage(ctx context.Context, tx *sql.Tx, conversationID, messageID string) (*models.Message, error)
	UpdateReactions(ctx context.Context, tx *sql.Tx, msg *models.Message) error
}

// Clock reads the database clock so that message order follows commit order
// regardless of which node wrote the message.
type Clock interface {
	ServerMillis(ctx context.Context, tx *sql.Tx) (int64, error)
}

type PostgresStorage struct {
	db *sql.DB
}

func NewChatPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const conversationColumns = `id, type, participant_ids, name, last_message_id, last_message_text,
	last_message_timestamp, created_at, updated_at`

const messageColumns = `id, conversation_id, sender_id, text, timestamp, read_by, reactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var c models.Conversation
	var participants pq.StringArray
	err := row.Scan(&c.ID, &c.Type, &participants, &c.Name, &c.LastMessageID, &c.LastMessageText,
		&c.LastMessageTimestamp, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ParticipantIDs = participants
	return &c, nil
}

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	var readBy pq.StringArray
	var reactions []byte
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.Timestamp, &readBy, &reactions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m.ReadBy = readBy
	m.Reactions = map[string][]string{}
	if err := json.Unmarshal(reactions, &m.Reactions); err != nil {
		return nil, fmt.Errorf("corrupt reactions on message %s: %w", m.ID, err)
	}
	return &m, nil
}

func (s *PostgresStorage) SaveDirectIfMissing(ctx context.Context, tx *sql.Tx, conv *models.Conversation) (string, bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, type, participant_ids, name, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (direct_key) DO NOTHING`,
		conv.ID, conv.Type, pq.Array(conv.ParticipantIDs), conv.Name, conv.DirectKey, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 1 {
		return conv.ID, true, nil
	}

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE direct_key = $1`, conv.DirectKey).Scan(&id)
	return id, false, err
}

func (s *PostgresStorage) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
}

func (s *PostgresStorage) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE participant_ids @> ARRAY[$1]::text[]
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *PostgresStorage) LockConversation(ctx context.Context, tx *sql.Tx, id string) (*models.Conversation, error) {
	return scanConversation(tx.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1 FOR UPDATE`, id))
}

func (s *PostgresStorage) UpdateLastMessage(ctx context.Context, tx *sql.Tx, conv *models.Conversation) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
		last_message_id = $2, last_message_text = $3, last_message_timestamp = $4, updated_at = $5
		WHERE id = $1`,
		conv.ID, conv.LastMessageID, conv.LastMessageText, conv.LastMessageTimestamp, conv.UpdatedAt)
	return err
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, tx *sql.Tx, msg *models.Message) error {
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.Timestamp, pq.Array(msg.ReadBy), string(reactions))
	return err
}

func (s *PostgresStorage) Messages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC, id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AddReader appends userID to read_by. It reports false when the message
// does not exist; a reader already present is not an error.
func (s *PostgresStorage) AddReader(ctx context.Context, tx *sql.Tx, conversationID, messageID, userID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		UPDATE messages SET
		read_by = CASE WHEN $3::text = ANY(read_by) THEN read_by ELSE array_append(read_by, $3::text) END
		WHERE id = $1 AND conversation_id = $2
		RETURNING true`,
		messageID, conversationID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

func (s *PostgresStorage) LockMessage(ctx context.Context, tx *sql.Tx, conversationID, messageID string) (*models.Message, error) {
	return scanMessage(tx.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE id = $1 AND conversation_id = $2 FOR UPDATE`, messageID, conversationID))
}

func (s *PostgresStorage) UpdateReactions(ctx context.Context, tx *sql.Tx, msg *models.Message) error {
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE messages SET reactions = $2 WHERE id = $1`, msg.ID, string(reactions))
	return err
}

func (s *PostgresStorage) ServerMillis(ctx context.Context, tx *sql.Tx) (int64, error) {
	var ms int64
	err := tx.QueryRowContext(ctx, `SELECT (extract(epoch FROM clock_timestamp()) * 1000)::bigint`).Scan(&ms)
	return ms, err
}
