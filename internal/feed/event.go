package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Channel is the Postgres NOTIFY channel change events travel on.
const Channel = "chat_events"

type Kind string

const (
	// KindUser keys on the user id whose record changed.
	KindUser Kind = "user"
	// KindConversations keys on a participant id of the changed conversation.
	KindConversations Kind = "conversations"
	// KindMessages keys on the conversation id whose messages changed.
	KindMessages Kind = "messages"
	// KindTyping keys on the conversation id whose indicators changed.
	KindTyping Kind = "typing"
	// KindResync is delivered to every subscription after the change stream
	// reconnects and events may have been lost.
	KindResync Kind = "resync"
)

type Event struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`
}

// ConversationChanged returns one event per participant so that every
// member's conversation list refreshes.
func ConversationChanged(participantIDs []string) []Event {
	events := make([]Event, 0, len(participantIDs))
	for _, id := range participantIDs {
		events = append(events, Event{Kind: KindConversations, Key: id})
	}
	return events
}

// Notify queues events inside tx. Postgres delivers them to listeners only
// when tx commits, so a rolled back write never announces itself.
func Notify(ctx context.Context, tx *sql.Tx, events ...Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload)); err != nil {
			return fmt.Errorf("failed to notify %s: %w", e.Kind, err)
		}
	}
	return nil
}
