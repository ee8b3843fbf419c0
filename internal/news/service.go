// Package news maintains the housing-company news cache and its periodic
// synchronization against the remote store.
package news

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SnapshotStore persists the last-good news cache across restarts.
// Implementations are best-effort; the service never fails a sync over a
// snapshot error.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.NewsSnapshot, error)
	Save(ctx context.Context, snap domain.NewsSnapshot) error
}

// Service owns the in-memory news cache for one user scope. The first sync
// is a full fetch; later syncs are incremental against the last sync
// watermark and merge by id. The cache belongs to exactly one user at a
// time: binding a different user evicts it and clears the watermark, so the
// next sync is a full fetch in the new scope.
type Service struct {
	repo     domain.NewsRepository
	snapshot SnapshotStore

	mu       sync.Mutex
	userID   uuid.UUID
	cache    []domain.NewsItem
	lastSync *time.Time
}

// NewService creates a news service. snapshot may be nil.
func NewService(repo domain.NewsRepository, snapshot SnapshotStore) *Service {
	return &Service{repo: repo, snapshot: snapshot}
}

// Restore loads the persisted snapshot into the cache, if one exists.
// Called once at startup so the UI starts from last-good news. The snapshot
// carries its owning user id; a later Bind by anyone else evicts it.
func (s *Service) Restore(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	snap, err := s.snapshot.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore news snapshot")
		return
	}
	if snap == nil {
		return
	}
	syncedAt := snap.SyncedAt
	s.mu.Lock()
	s.userID = snap.UserID
	s.cache = snap.Items
	s.lastSync = &syncedAt
	s.mu.Unlock()
}

// Bind scopes the cache to a user. Binding a different user evicts the
// previous user's items immediately, before any sync runs, so a read between
// login and the first sync cannot serve out-of-scope news. A nil user keeps
// the cache for a re-login by the same user.
func (s *Service) Bind(user *domain.User) {
	if user == nil {
		return
	}
	s.mu.Lock()
	s.rebindLocked(user.ID)
	s.mu.Unlock()
}

// rebindLocked resets cache and watermark when the scope owner changes.
// Without the reset an incremental sync for the new user would merge into
// the previous user's items, and mergeByID never evicts.
func (s *Service) rebindLocked(userID uuid.UUID) {
	if s.userID == userID {
		return
	}
	s.userID = userID
	s.cache = nil
	s.lastSync = nil
}

// Cache returns a copy of the cached items and the last sync time.
func (s *Service) Cache() ([]domain.NewsItem, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.NewsItem, len(s.cache))
	copy(items, s.cache)
	return items, s.lastSync
}

// Sync performs one synchronization pass scoped to the user's housing
// companies. It reports whether the cache changed, so callers can skip
// downstream re-renders on no-op passes. A canceled context never mutates
// the cache.
func (s *Service) Sync(ctx context.Context, user *domain.User) (bool, []domain.NewsItem, error) {
	if user == nil {
		s.mu.Lock()
		changed := len(s.cache) != 0
		s.cache = []domain.NewsItem{}
		s.mu.Unlock()
		return changed, []domain.NewsItem{}, nil
	}

	s.mu.Lock()
	s.rebindLocked(user.ID)
	if len(user.HousingCompanyIDs) == 0 {
		// No assignments means no news, without a network call. A valid
		// terminal state, not an error.
		changed := len(s.cache) != 0
		s.cache = []domain.NewsItem{}
		s.mu.Unlock()
		return changed, []domain.NewsItem{}, nil
	}
	lastSync := s.lastSync
	s.mu.Unlock()

	if lastSync == nil {
		return s.fullSync(ctx, user)
	}
	return s.incrementalSync(ctx, user, *lastSync)
}

// fullSync replaces the cache unconditionally. An empty result is
// meaningful here: it records "no news for this user" as distinct from
// "not yet synced".
func (s *Service) fullSync(ctx context.Context, user *domain.User) (bool, []domain.NewsItem, error) {
	items, err := s.repo.ListByHousingCompanies(ctx, user.HousingCompanyIDs)
	if err != nil {
		return false, nil, err
	}
	if ctx.Err() != nil {
		return false, nil, ctx.Err()
	}
	if items == nil {
		items = []domain.NewsItem{}
	}
	sortByCreatedDesc(items)

	now := time.Now()
	s.mu.Lock()
	s.cache = items
	s.lastSync = &now
	s.mu.Unlock()

	s.saveSnapshot(ctx, user.ID, items, now)

	out := make([]domain.NewsItem, len(items))
	copy(out, items)
	return true, out, nil
}

// incrementalSync merges newly created items into the cache by id,
// last-write-wins. Zero new items is a no-op: neither the cache nor the
// watermark moves.
func (s *Service) incrementalSync(ctx context.Context, user *domain.User, since time.Time) (bool, []domain.NewsItem, error) {
	fresh, err := s.repo.ListCreatedAfter(ctx, since, user.HousingCompanyIDs)
	if err != nil {
		return false, nil, err
	}
	if ctx.Err() != nil {
		return false, nil, ctx.Err()
	}
	if len(fresh) == 0 {
		return false, nil, nil
	}

	now := time.Now()
	s.mu.Lock()
	merged := mergeByID(s.cache, fresh)
	s.cache = merged
	s.lastSync = &now
	s.mu.Unlock()

	s.saveSnapshot(ctx, user.ID, merged, now)

	out := make([]domain.NewsItem, len(merged))
	copy(out, merged)
	return true, out, nil
}

func (s *Service) saveSnapshot(ctx context.Context, userID uuid.UUID, items []domain.NewsItem, syncedAt time.Time) {
	if s.snapshot == nil {
		return
	}
	snap := domain.NewsSnapshot{UserID: userID, Items: items, SyncedAt: syncedAt}
	if err := s.snapshot.Save(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("failed to persist news snapshot")
	}
}

// mergeByID applies incoming items over existing ones, deduplicating by id
// with the incoming side winning, then re-sorts newest first. Idempotent:
// re-applying the same batch changes nothing.
func mergeByID(existing, incoming []domain.NewsItem) []domain.NewsItem {
	byID := make(map[string]domain.NewsItem, len(existing)+len(incoming))
	for _, item := range existing {
		byID[item.ID.String()] = item
	}
	for _, item := range incoming {
		byID[item.ID.String()] = item
	}

	merged := make([]domain.NewsItem, 0, len(byID))
	for _, item := range byID {
		merged = append(merged, item)
	}
	sortByCreatedDesc(merged)
	return merged
}

func sortByCreatedDesc(items []domain.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
