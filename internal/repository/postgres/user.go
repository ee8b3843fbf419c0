package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user and their housing-company assignments.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, COALESCE(email, ''), role, access_code, created_at
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByAccessCode resolves a user from their access code. Returns nil when
// no user matches.
func (r *UserRepository) GetByAccessCode(ctx context.Context, accessCode string) (*domain.User, error) {
	query := `
		SELECT id, COALESCE(email, ''), role, access_code, created_at
		FROM users
		WHERE access_code = $1
	`
	return r.getOne(ctx, query, accessCode)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Role,
		&u.AccessCode,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	companies, err := r.listHousingCompanies(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.HousingCompanyIDs = companies
	return &u, nil
}

func (r *UserRepository) listHousingCompanies(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT housing_company_id
		FROM user_housing_companies
		WHERE user_id = $1
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list housing companies: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan housing company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
