package local

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
)

const userKey = "local_user"

// UserRepository implements domain.UserRepository for the no-backend mode:
// one device-local demo user behind a fixed access code, with no
// housing-company assignments (so news stays empty without network calls).
type UserRepository struct {
	store      *Store
	accessCode string
}

// NewUserRepository creates a local user repository accepting the given
// access code.
func NewUserRepository(store *Store, accessCode string) *UserRepository {
	return &UserRepository{store: store, accessCode: accessCode}
}

func (r *UserRepository) GetByAccessCode(ctx context.Context, accessCode string) (*domain.User, error) {
	if accessCode != r.accessCode {
		return nil, nil
	}
	return r.loadOrCreate(ctx)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := r.loadOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if user.ID != id {
		return nil, nil
	}
	return user, nil
}

// loadOrCreate keeps the generated user id stable across restarts so the
// local chat history stays attached to it.
func (r *UserRepository) loadOrCreate(ctx context.Context) (*domain.User, error) {
	data, ok, err := r.store.Get(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load local user: %w", err)
	}
	if ok {
		var user domain.User
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal local user: %w", err)
		}
		return &user, nil
	}

	user := &domain.User{
		ID:         uuid.New(),
		Role:       "resident",
		AccessCode: r.accessCode,
		CreatedAt:  time.Now(),
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal local user: %w", err)
	}
	if err := r.store.Set(ctx, userKey, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to save local user: %w", err)
	}
	return user, nil
}
