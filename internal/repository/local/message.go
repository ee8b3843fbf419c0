package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
)

const messagesKeyPrefix = "chat_messages:"

// MessageRepository implements domain.MessageRepository over the key-value
// store. The whole history for a user lives under one key as a JSON array,
// mirroring how the mobile client persisted its message list.
type MessageRepository struct {
	store *Store
}

// NewMessageRepository creates a message repository over a local store.
func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{store: store}
}

func messagesKey(userID uuid.UUID) string { return messagesKeyPrefix + userID.String() }

func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	if message.UserID == nil {
		return fmt.Errorf("local store requires an owning user id")
	}

	messages, err := r.loadAll(ctx, *message.UserID)
	if err != nil {
		return err
	}
	messages = append(messages, *message)

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	if err := r.store.Set(ctx, messagesKey(*message.UserID), string(data)); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	messages, err := r.loadAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []domain.ChatMessage
	for _, m := range messages {
		if m.SessionID != nil && *m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	// Insertion order already matches, but a stable sort keeps the contract
	// honest if the stored array was ever edited out-of-band.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *MessageRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.store.Remove(ctx, messagesKey(userID))
}

func (r *MessageRepository) loadAll(ctx context.Context, userID uuid.UUID) ([]domain.ChatMessage, error) {
	data, ok, err := r.store.Get(ctx, messagesKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var messages []domain.ChatMessage
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return messages, nil
}
