package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewsItem represents a housing-company announcement. A user only sees items
// whose HousingCompanyID is among the user's assignments.
type NewsItem struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Text               string    `json:"text"`
	ImageURL           string    `json:"image_url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	HousingCompanyID   uuid.UUID `json:"housing_company_id"`
	HousingCompanyName string    `json:"housing_company_name,omitempty"`
}

// NewsSnapshot is the persisted form of the last-good news cache. It records
// which user the items were fetched for, so a restored snapshot is never
// served to a different user.
type NewsSnapshot struct {
	UserID   uuid.UUID  `json:"user_id"`
	Items    []NewsItem `json:"items"`
	SyncedAt time.Time  `json:"synced_at"`
}

// NewsRepository defines the interface for news retrieval
type NewsRepository interface {
	// ListByHousingCompanies returns all items for the given companies,
	// newest first.
	ListByHousingCompanies(ctx context.Context, ids []uuid.UUID) ([]NewsItem, error)
	// ListCreatedAfter returns items created strictly after the watermark,
	// scoped to the given companies, newest first.
	ListCreatedAfter(ctx context.Context, after time.Time, ids []uuid.UUID) ([]NewsItem, error)
}
