package news

import (
	"context"
	"sync"
	"time"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/rs/zerolog/log"
)

// State describes what the sync manager is doing.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateError
)

// SyncConfig configures the background sync loop.
type SyncConfig struct {
	Enabled  bool
	Interval time.Duration
	OnUpdate func(items []domain.NewsItem)
	OnError  func(err error)
}

// SyncManager runs Service.Sync immediately on Start and then on a fixed
// interval until Stop. Failures are reported through OnError and never
// clear the existing cache; stale-but-available beats empty.
type SyncManager struct {
	service *Service

	mu      sync.Mutex
	config  SyncConfig
	user    *domain.User
	state   State
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewSyncManager creates a sync manager around a news service.
func NewSyncManager(service *Service, config SyncConfig) *SyncManager {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	return &SyncManager{service: service, config: config}
}

// SetUser scopes subsequent syncs to the given user. Binding a different
// user evicts the previous user's cached items right away. nil suspends
// syncing without stopping the timer.
func (m *SyncManager) SetUser(user *domain.User) {
	m.service.Bind(user)
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

// State returns the current sync state.
func (m *SyncManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins the sync loop. No-op when disabled or already running.
func (m *SyncManager) Start() {
	m.mu.Lock()
	if !m.config.Enabled || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	stopped := make(chan struct{})
	m.stopped = stopped
	interval := m.config.Interval
	m.mu.Unlock()

	go m.run(ctx, interval, stopped)
}

// Stop cancels the pending timer and any in-flight fetch. The cancellation
// propagates into Service.Sync, which refuses to mutate the cache once the
// context is done.
func (m *SyncManager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	stopped := m.stopped
	m.cancel = nil
	m.stopped = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// UpdateConfig replaces the sync configuration. Changing the interval while
// running restarts the timer.
func (m *SyncManager) UpdateConfig(config SyncConfig) {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}

	m.mu.Lock()
	running := m.cancel != nil
	restart := running && config.Interval != m.config.Interval
	m.config = config
	m.mu.Unlock()

	if restart {
		m.Stop()
		m.Start()
	}
}

func (m *SyncManager) run(ctx context.Context, interval time.Duration, stopped chan struct{}) {
	defer close(stopped)

	m.performSync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.performSync(ctx)
		}
	}
}

func (m *SyncManager) performSync(ctx context.Context) {
	m.mu.Lock()
	user := m.user
	onUpdate := m.config.OnUpdate
	onError := m.config.OnError
	m.state = StateSyncing
	m.mu.Unlock()

	if user == nil {
		m.setState(StateIdle)
		return
	}

	changed, items, err := m.service.Sync(ctx, user)
	if err != nil {
		m.setState(StateError)
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("news sync failed")
			if onError != nil {
				onError(err)
			}
		}
		m.setState(StateIdle)
		return
	}

	if changed && ctx.Err() == nil && onUpdate != nil {
		onUpdate(items)
	}
	m.setState(StateIdle)
}

func (m *SyncManager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
