package news

import (
	"context"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockNewsRepository mocks the domain.NewsRepository interface
type MockNewsRepository struct {
	mock.Mock
}

func (m *MockNewsRepository) ListByHousingCompanies(ctx context.Context, ids []uuid.UUID) ([]domain.NewsItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NewsItem), args.Error(1)
}

func (m *MockNewsRepository) ListCreatedAfter(ctx context.Context, after time.Time, ids []uuid.UUID) ([]domain.NewsItem, error) {
	args := m.Called(ctx, after, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NewsItem), args.Error(1)
}

// MockSnapshotStore mocks the SnapshotStore interface
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Load(ctx context.Context) (*domain.NewsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NewsSnapshot), args.Error(1)
}

func (m *MockSnapshotStore) Save(ctx context.Context, snap domain.NewsSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}
