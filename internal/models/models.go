package models

import (
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// TypingWindow is how long a typing indicator stays active after its last
// keystroke.
const TypingWindow = 3000 * time.Millisecond

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Status      Status `json:"status"`
	LastSeen    int64  `json:"lastSeen"`
	CreatedAt   int64  `json:"createdAt"`
}

type Conversation struct {
	ID                   string           `json:"id"`
	Type                 ConversationType `json:"type"`
	ParticipantIDs       []string         `json:"participantIds"`
	Name                 string           `json:"name,omitempty"`
	DirectKey            string           `json:"-"`
	LastMessageID        string           `json:"lastMessageId,omitempty"`
	LastMessageText      string           `json:"lastMessageText,omitempty"`
	LastMessageTimestamp int64            `json:"lastMessageTimestamp,omitempty"`
	CreatedAt            int64            `json:"createdAt"`
	UpdatedAt            int64            `json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	Text           string              `json:"text"`
	Timestamp      int64               `json:"timestamp"`
	ReadBy         []string            `json:"readBy"`
	Reactions      map[string][]string `json:"reactions"`
}

// IsReadBy reports whether userID is in the message's read set.
func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

type TypingIndicator struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Timestamp      int64  `json:"timestamp"`
}

// Active reports whether the indicator is inside the typing window at now.
// A cleared indicator has a zero timestamp and is never active.
func (t *TypingIndicator) Active(now time.Time) bool {
	if t.Timestamp == 0 {
		return false
	}
	return Millis(now)-t.Timestamp < TypingWindow.Milliseconds()
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// CanonicalPair orders two participant ids so that a pair of users always
// maps to the same participant list.
func CanonicalPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// DirectKey is the unique key of the direct conversation between a and b.
func DirectKey(a, b string) string {
	return strings.Join(CanonicalPair(a, b), ":")
}

// CloneMessage returns a deep copy of m.
func CloneMessage(m *Message) *Message {
	c := *m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	c.Reactions = make(map[string][]string, len(m.Reactions))
	for emoji, users := range m.Reactions {
		c.Reactions[emoji] = append([]string(nil), users...)
	}
	return &c
}

// CloneConversation returns a deep copy of c.
func CloneConversation(c *Conversation) *Conversation {
	cc := *c
	cc.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	return &cc
}
