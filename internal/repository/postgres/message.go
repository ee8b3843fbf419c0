package postgres

import (
	"context"
	"fmt"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create inserts a new message
func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, text, is_user, timestamp, user_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.Text,
		message.IsUser,
		message.Timestamp,
		message.UserID,
		message.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListBySession retrieves the full history for a session, oldest first.
// The id's millisecond prefix breaks ties for same-instant inserts.
func (r *MessageRepository) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, text, is_user, timestamp, user_id, session_id
		FROM chat_messages
		WHERE session_id = $1 AND user_id = $2
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(
			&m.ID,
			&m.Text,
			&m.IsUser,
			&m.Timestamp,
			&m.UserID,
			&m.SessionID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// DeleteByUser removes all messages for a user, agent replies included.
func (r *MessageRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM chat_messages WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
