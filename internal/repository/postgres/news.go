package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewsRepository implements domain.NewsRepository
type NewsRepository struct {
	pool *pgxpool.Pool
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

const newsColumns = `
	n.id, n.title, n.text, COALESCE(n.image_url, ''), n.created_at,
	n.housing_company_id, COALESCE(hc.name, '')
`

// ListByHousingCompanies returns all items for the given companies, newest
// first. An empty id list yields an empty result without touching the pool.
func (r *NewsRepository) ListByHousingCompanies(ctx context.Context, ids []uuid.UUID) ([]domain.NewsItem, error) {
	if len(ids) == 0 {
		return []domain.NewsItem{}, nil
	}
	query := `
		SELECT ` + newsColumns + `
		FROM news n
		LEFT JOIN housing_companies hc ON hc.id = n.housing_company_id
		WHERE n.housing_company_id = ANY($1)
		ORDER BY n.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

// ListCreatedAfter returns items created strictly after the watermark,
// scoped to the given companies, newest first.
func (r *NewsRepository) ListCreatedAfter(ctx context.Context, after time.Time, ids []uuid.UUID) ([]domain.NewsItem, error) {
	if len(ids) == 0 {
		return []domain.NewsItem{}, nil
	}
	query := `
		SELECT ` + newsColumns + `
		FROM news n
		LEFT JOIN housing_companies hc ON hc.id = n.housing_company_id
		WHERE n.created_at > $1 AND n.housing_company_id = ANY($2)
		ORDER BY n.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, after, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list new news: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanNews(rows rowScanner) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	for rows.Next() {
		var n domain.NewsItem
		if err := rows.Scan(
			&n.ID,
			&n.Title,
			&n.Text,
			&n.ImageURL,
			&n.CreatedAt,
			&n.HousingCompanyID,
			&n.HousingCompanyName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read news rows: %w", err)
	}
	return items, nil
}
