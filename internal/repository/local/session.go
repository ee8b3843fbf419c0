package local

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
)

const (
	sessionKeyPrefix = "chat_session:"
	activeKeyPrefix  = "chat_session_active:"
)

// SessionRepository implements domain.SessionRepository over the key-value
// store. One device holds one user's data, so the active-session index is a
// single key per user.
type SessionRepository struct {
	store *Store
}

// NewSessionRepository creates a session repository over a local store.
func NewSessionRepository(store *Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func sessionKey(id uuid.UUID) string    { return sessionKeyPrefix + id.String() }
func activeKey(userID uuid.UUID) string { return activeKeyPrefix + userID.String() }

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	// Drop the previously indexed session so rotations don't accumulate
	// orphaned records.
	if prevID, ok, err := r.store.Get(ctx, activeKey(session.UserID)); err == nil && ok {
		_ = r.store.Remove(ctx, sessionKeyPrefix+prevID)
	}

	if err := r.save(ctx, session); err != nil {
		return err
	}
	if err := r.store.Set(ctx, activeKey(session.UserID), session.ID.String()); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

func (r *SessionRepository) save(ctx context.Context, session *domain.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.store.Set(ctx, sessionKey(session.ID), string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) load(ctx context.Context, key string) (*domain.ChatSession, error) {
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var session domain.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	id, ok, err := r.store.Get(ctx, activeKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load session index: %w", err)
	}
	if !ok {
		return nil, nil
	}
	session, err := r.load(ctx, sessionKeyPrefix+id)
	if err != nil || session == nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, nil
	}
	return session, nil
}

func (r *SessionRepository) DeactivateByUser(ctx context.Context, userID uuid.UUID) error {
	session, err := r.GetActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.IsActive = false
	session.UpdatedAt = time.Now()
	return r.save(ctx, session)
}

func (r *SessionRepository) SetWebhookSessionID(ctx context.Context, id uuid.UUID, token string) error {
	session, err := r.load(ctx, sessionKey(id))
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", id)
	}
	session.WebhookSessionID = token
	session.UpdatedAt = time.Now()
	return r.save(ctx, session)
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	id, ok, err := r.store.Get(ctx, activeKey(userID))
	if err != nil {
		return fmt.Errorf("failed to load session index: %w", err)
	}
	if ok {
		if err := r.store.Remove(ctx, sessionKeyPrefix+id); err != nil {
			return err
		}
	}
	return r.store.Remove(ctx, activeKey(userID))
}
