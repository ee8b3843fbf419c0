// Package chat owns the session and message lifecycle for the current user:
// which session is active, what the conversation so far is, and how outbound
// messages reach the remote agent.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andsome/alpo-core/internal/agent"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxAttempts bounds the log of recent outbound sends kept for RetryLast.
const maxAttempts = 10

// Manager is the single authority over the active session and conversation
// history for one user. Callers serialize SendMessage per session; the
// mutex only guards the in-memory references, not the I/O.
type Manager struct {
	gateway  agent.Gateway
	sessions domain.SessionRepository
	messages domain.MessageRepository

	mu       sync.Mutex
	user     *domain.User
	session  *domain.ChatSession
	attempts []string
}

// NewManager creates a chat manager with injected stores and gateway.
func NewManager(gateway agent.Gateway, sessions domain.SessionRepository, messages domain.MessageRepository) *Manager {
	return &Manager{
		gateway:  gateway,
		sessions: sessions,
		messages: messages,
	}
}

// SetUser binds the manager to a user. A non-nil user starts a fresh session
// immediately: all prior active sessions are deactivated first, then a new
// row is inserted. A crash between the two steps leaves zero active sessions,
// which SendMessage recovers from. A nil user clears the in-memory references
// without touching persisted data.
func (m *Manager) SetUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user == nil {
		m.user = nil
		m.session = nil
		m.attempts = nil
		return nil
	}

	m.user = user
	m.session = nil
	m.attempts = nil

	session, err := m.startNewSession(ctx, user.ID)
	if err != nil {
		// Leave the user bound; SendMessage retries session resolution.
		return fmt.Errorf("failed to start session: %w", err)
	}
	m.session = session
	return nil
}

// startNewSession deactivates prior sessions and inserts a new one, in that
// order. Callers hold m.mu.
func (m *Manager) startNewSession(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	if err := m.sessions.DeactivateByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to deactivate sessions: %w", err)
	}

	now := time.Now()
	session := &domain.ChatSession{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// LoadMessages returns the full ordered history for the active session.
// It never fails: missing user, missing session or an unreachable store all
// degrade to an empty list.
func (m *Manager) LoadMessages(ctx context.Context) []domain.ChatMessage {
	m.mu.Lock()
	user := m.user
	session := m.session
	m.mu.Unlock()

	if user == nil {
		return []domain.ChatMessage{}
	}

	if session == nil {
		found, err := m.sessions.GetActiveByUser(ctx, user.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to resolve active session")
			return []domain.ChatMessage{}
		}
		if found == nil {
			return []domain.ChatMessage{}
		}
		m.mu.Lock()
		m.session = found
		m.mu.Unlock()
		session = found
	}

	history, err := m.messages.ListBySession(ctx, user.ID, session.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to load messages")
		return []domain.ChatMessage{}
	}
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return history
}

// SendMessage sends one message to the remote agent and persists both sides
// of the exchange. The send is at-most-once: a failure surfaces as a
// *domain.SendError with history and session token untouched, and retrying
// is the caller's decision (see RetryLast).
func (m *Manager) SendMessage(ctx context.Context, text string) (*agent.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	m.mu.Lock()
	user := m.user
	session := m.session
	m.mu.Unlock()

	if user == nil {
		return nil, domain.ErrNoSession
	}

	// Lazy resolution: after a restart (or a failed SetUser) the in-memory
	// reference is nil, but the store may still hold an active session.
	if session == nil {
		found, err := m.sessions.GetActiveByUser(ctx, user.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to resolve active session")
		} else if found != nil {
			m.mu.Lock()
			m.session = found
			m.mu.Unlock()
			session = found
		}
	}

	req := agent.Request{Message: text}
	if session != nil {
		req.SessionID = session.WebhookSessionID
	}

	// Recorded before the send so a failed attempt is retryable.
	m.recordAttempt(text)

	resp, err := m.gateway.Send(ctx, req)
	if err != nil {
		return nil, &domain.SendError{Err: err}
	}

	// Bind the token returned by the webhook. Only the first response for a
	// session carries a new token; later responses echo it back.
	session = m.bindSessionToken(ctx, user, session, resp.SessionID)

	now := time.Now()
	userMsg := &domain.ChatMessage{
		ID:        domain.NewMessageID(now),
		Text:      text,
		IsUser:    true,
		Timestamp: now,
		UserID:    &user.ID,
	}
	// The agent reply must sort strictly after the user message even when
	// both land within the same clock tick.
	agentAt := time.Now()
	if !agentAt.After(now) {
		agentAt = now.Add(time.Millisecond)
	}
	agentMsg := &domain.ChatMessage{
		ID:        domain.NewMessageID(agentAt),
		Text:      resp.AgentMessage,
		IsUser:    false,
		Timestamp: agentAt,
		// Agent replies belong to the user's history; keeping the owner id
		// on both sides makes per-user deletion uniform across stores.
		UserID: &user.ID,
	}
	if session != nil {
		userMsg.SessionID = &session.ID
		agentMsg.SessionID = &session.ID
	}

	// The exchange already happened, so a failed save costs history, not the
	// reply. The caller still gets the agent's answer; the gap shows up on
	// the next LoadMessages.
	if err := m.messages.Create(ctx, userMsg); err != nil {
		log.Error().Err(err).Msg("failed to save user message")
	}
	if err := m.messages.Create(ctx, agentMsg); err != nil {
		log.Error().Err(err).Msg("failed to save agent message")
	}

	return resp, nil
}

// bindSessionToken persists the webhook token on the active session, creating
// the session row first if none survived (degraded state after a failed
// SetUser). Returns the session the exchange belongs to, which may be nil if
// every store write failed.
func (m *Manager) bindSessionToken(ctx context.Context, user *domain.User, session *domain.ChatSession, token string) *domain.ChatSession {
	if token == "" {
		return session
	}

	if session == nil {
		created, err := m.startNewSessionLocked(ctx, user.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to create session for webhook token")
			return nil
		}
		session = created
	}

	if session.WebhookSessionID == "" {
		if err := m.sessions.SetWebhookSessionID(ctx, session.ID, token); err != nil {
			log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to persist webhook token")
		}
		session.WebhookSessionID = token
		m.mu.Lock()
		m.session = session
		m.mu.Unlock()
	}
	return session
}

func (m *Manager) startNewSessionLocked(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startNewSession(ctx, userID)
}

func (m *Manager) recordAttempt(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, text)
	if len(m.attempts) > maxAttempts {
		m.attempts = m.attempts[len(m.attempts)-maxAttempts:]
	}
}

// RetryLast re-sends the text of the most recent outbound attempt. It is
// exactly a new send and may produce a duplicate agent exchange; that is
// acceptable because the user asked for it.
func (m *Manager) RetryLast(ctx context.Context) (*agent.Response, error) {
	m.mu.Lock()
	var last string
	if n := len(m.attempts); n > 0 {
		last = m.attempts[n-1]
	}
	m.mu.Unlock()

	if last == "" {
		return nil, fmt.Errorf("no message to retry")
	}
	return m.SendMessage(ctx, last)
}

// CurrentUser returns the user the manager is bound to, or nil.
func (m *Manager) CurrentUser() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// GetSessionID returns the current webhook session token, or "" when no
// session is active. Read-only, no side effects.
func (m *Manager) GetSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.WebhookSessionID
}

// ClearUserData drops the in-memory user and session references (logout).
// Persisted data is untouched.
func (m *Manager) ClearUserData() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.session = nil
	m.attempts = nil
}

// ClearUserChatHistory irreversibly deletes all persisted messages and
// sessions for the current user. Unlike the read paths this fails loudly:
// the user explicitly asked for a destructive action and must see a failure.
func (m *Manager) ClearUserChatHistory(ctx context.Context) error {
	m.mu.Lock()
	user := m.user
	m.mu.Unlock()

	if user == nil {
		return domain.ErrNoSession
	}

	if err := m.messages.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := m.sessions.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	m.mu.Lock()
	m.session = nil
	m.attempts = nil
	m.mu.Unlock()
	return nil
}
