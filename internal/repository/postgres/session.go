package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, webhook_session_id, created_at, updated_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.WebhookSessionID,
		session.CreatedAt,
		session.UpdatedAt,
		session.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, webhook_session_id, created_at, updated_at, is_active
		FROM chat_sessions
		WHERE user_id = $1 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var s domain.ChatSession
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.WebhookSessionID,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) DeactivateByUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE chat_sessions
		SET is_active = false, updated_at = $1
		WHERE user_id = $2 AND is_active = true
	`
	_, err := r.pool.Exec(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) SetWebhookSessionID(ctx context.Context, id uuid.UUID, token string) error {
	query := `
		UPDATE chat_sessions
		SET webhook_session_id = $1, updated_at = $2
		WHERE id = $3
	`
	_, err := r.pool.Exec(ctx, query, token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set webhook session id: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
