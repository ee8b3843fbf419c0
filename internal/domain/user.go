package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a resident account resolved by the auth collaborator.
// Instances are immutable for the lifetime of a login.
type User struct {
	ID                uuid.UUID   `json:"id"`
	Email             string      `json:"email,omitempty"`
	Role              string      `json:"role"`
	AccessCode        string      `json:"-"`
	HousingCompanyIDs []uuid.UUID `json:"housing_company_ids"`
	CreatedAt         time.Time   `json:"created_at"`
}

// BelongsTo reports whether the user is assigned to the given housing company.
func (u *User) BelongsTo(housingCompanyID uuid.UUID) bool {
	for _, id := range u.HousingCompanyIDs {
		if id == housingCompanyID {
			return true
		}
	}
	return false
}

// UserRepository defines the interface for user lookup
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByAccessCode(ctx context.Context, accessCode string) (*User, error)
}

// UserLogin represents an access-code login request
type UserLogin struct {
	AccessCode string `json:"access_code" validate:"required,min=4,max=64"`
}

// TokenPair represents JWT token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
