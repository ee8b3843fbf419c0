package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents a single chat bubble, either the user's or the
// agent's. IDs are unique within a session; ordering is by Timestamp with
// the ID's millisecond prefix breaking ties for same-instant inserts.
type ChatMessage struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	IsUser    bool       `json:"is_user"`
	Timestamp time.Time  `json:"timestamp"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

// NewMessageID generates a chat message id. The unix-millisecond prefix keeps
// insertion order under lexicographic sort; the uuid fragment keeps ids unique
// when two messages land in the same millisecond.
func NewMessageID(at time.Time) string {
	return fmt.Sprintf("%013d-%s", at.UnixMilli(), uuid.NewString()[:8])
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Create(ctx context.Context, message *ChatMessage) error
	// ListBySession returns the full history for a session in ascending
	// timestamp order.
	ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]ChatMessage, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
