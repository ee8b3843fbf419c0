package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatSession represents one conversation with the remote agent.
// At most one session per user is active at any time; the chat manager
// enforces this by deactivating prior sessions before inserting a new one.
type ChatSession struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	WebhookSessionID string    `json:"webhook_session_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	IsActive         bool      `json:"is_active"`
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	// GetActiveByUser returns the most recently updated active session for
	// the user, or nil when none exists.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*ChatSession, error)
	DeactivateByUser(ctx context.Context, userID uuid.UUID) error
	// SetWebhookSessionID binds the token returned by the remote agent to an
	// existing session.
	SetWebhookSessionID(ctx context.Context, id uuid.UUID, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
