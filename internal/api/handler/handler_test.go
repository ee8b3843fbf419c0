package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/andsome/alpo-core/internal/agent"
	"github.com/andsome/alpo-core/internal/chat"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/andsome/alpo-core/internal/news"
	"github.com/andsome/alpo-core/internal/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	mu       sync.Mutex
	resp     *agent.Response
	err      error
	requests []agent.Request
}

func (g *stubGateway) Send(_ context.Context, req agent.Request) (*agent.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	resp := *g.resp
	return &resp, nil
}

func (g *stubGateway) set(resp *agent.Response, err error) {
	g.mu.Lock()
	g.resp, g.err = resp, err
	g.mu.Unlock()
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ChatSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*domain.ChatSession)}
}

func (r *memSessionRepo) Create(_ context.Context, session *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *memSessionRepo) GetActiveByUser(_ context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) DeactivateByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (r *memSessionRepo) SetWebhookSessionID(_ context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	s.WebhookSessionID = token
	return nil
}

func (r *memSessionRepo) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
}

func (r *memMessageRepo) Create(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *memMessageRepo) ListBySession(_ context.Context, userID, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range r.messages {
		if m.UserID != nil && *m.UserID == userID && m.SessionID != nil && *m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *memMessageRepo) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.UserID == nil || *m.UserID != userID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

type stubUserRepo struct {
	user *domain.User
	err  error
}

func (r *stubUserRepo) GetByAccessCode(_ context.Context, accessCode string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.user != nil && r.user.AccessCode == accessCode {
		return r.user, nil
	}
	return nil, nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, nil
}

type stubNewsRepo struct {
	mu    sync.Mutex
	items []domain.NewsItem
	err   error
}

func (r *stubNewsRepo) ListByHousingCompanies(_ context.Context, _ []uuid.UUID) ([]domain.NewsItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items, r.err
}

func (r *stubNewsRepo) ListCreatedAfter(_ context.Context, _ time.Time, _ []uuid.UUID) ([]domain.NewsItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items, r.err
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

type env struct {
	user     *domain.User
	users    *stubUserRepo
	gateway  *stubGateway
	sessions *memSessionRepo
	newsRepo *stubNewsRepo
	newsSvc  *news.Service
	manager  *chat.Manager

	auth *AuthHandler
	chat *ChatHandler
	news *NewsHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	user := &domain.User{
		ID:                uuid.New(),
		Email:             "resident@example.com",
		Role:              "resident",
		AccessCode:        "123456",
		HousingCompanyIDs: []uuid.UUID{uuid.New()},
		CreatedAt:         time.Now(),
	}

	gateway := &stubGateway{resp: &agent.Response{AgentMessage: "hello", SessionID: "wh-1"}}
	sessions := newMemSessionRepo()
	manager := chat.NewManager(gateway, sessions, &memMessageRepo{})

	newsRepo := &stubNewsRepo{}
	newsSvc := news.NewService(newsRepo, nil)
	syncManager := news.NewSyncManager(newsSvc, news.SyncConfig{Enabled: false, Interval: time.Minute})

	users := &stubUserRepo{user: user}
	jwtManager := security.NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)

	return &env{
		user:     user,
		users:    users,
		gateway:  gateway,
		sessions: sessions,
		newsRepo: newsRepo,
		newsSvc:  newsSvc,
		manager:  manager,
		auth:     NewAuthHandler(users, jwtManager, manager, syncManager),
		chat:     NewChatHandler(manager),
		news:     NewNewsHandler(newsSvc, manager),
	}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	rec := do(e.auth.Login, http.MethodPost, `{"access_code":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func do(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.auth.Login, http.MethodPost, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("access code too short", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.auth.Login, http.MethodPost, `{"access_code":"12"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown access code", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.auth.Login, http.MethodPost, `{"access_code":"999999"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, "invalid access code", env.Error)
	})

	t.Run("lookup failure", func(t *testing.T) {
		e := newEnv(t)
		e.users.err = errors.New("db down")
		rec := do(e.auth.Login, http.MethodPost, `{"access_code":"123456"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("success binds user and starts a session", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.auth.Login, http.MethodPost, `{"access_code":"123456"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User   *domain.User     `json:"user"`
			Tokens domain.TokenPair `json:"tokens"`
		}
		decode(t, rec, &body)
		require.NotNil(t, body.User)
		assert.Equal(t, e.user.ID, body.User.ID)
		assert.NotEmpty(t, body.Tokens.AccessToken)
		assert.NotEmpty(t, body.Tokens.RefreshToken)
		assert.Equal(t, int64(900), body.Tokens.ExpiresIn)

		require.NotNil(t, e.manager.CurrentUser())
		session, err := e.sessions.GetActiveByUser(context.Background(), e.user.ID)
		require.NoError(t, err)
		assert.NotNil(t, session)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e.auth.Logout, http.MethodPost, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, e.manager.CurrentUser())

	// Logout drops in-memory state only; the stored session survives.
	session, err := e.sessions.GetActiveByUser(context.Background(), e.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestChatHandler_SendMessage(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)

		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"what is my rent?"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body sendMessageResponse
		decode(t, rec, &body)
		assert.Equal(t, "hello", body.AgentMessage)
		assert.Equal(t, "wh-1", body.SessionID)
	})

	t.Run("no signed-in user", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"hi"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty message", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("whitespace-only message", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, "message is empty", env.Error)
	})

	t.Run("invalid body", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		rec := do(e.chat.SendMessage, http.MethodPost, `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("agent failure maps to a user-facing error", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		e.gateway.set(nil, errors.New("connection refused"))

		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"hi"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, "Failed to send message. Please check your connection and try again.", env.Error)
	})
}

func TestChatHandler_RetryLast(t *testing.T) {
	t.Run("retries the failed send", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)

		e.gateway.set(nil, errors.New("connection refused"))
		rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"try me"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		e.gateway.set(&agent.Response{AgentMessage: "recovered", SessionID: "wh-2"}, nil)
		rec = do(e.chat.RetryLast, http.MethodPost, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body sendMessageResponse
		decode(t, rec, &body)
		assert.Equal(t, "recovered", body.AgentMessage)
	})

	t.Run("nothing to retry", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		rec := do(e.chat.RetryLast, http.MethodPost, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChatHandler_History(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	rec := do(e.chat.SendMessage, http.MethodPost, `{"message":"first"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e.chat.ListMessages, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []domain.ChatMessage
	decode(t, rec, &messages)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Text)
	assert.True(t, messages[0].IsUser)
	assert.False(t, messages[1].IsUser)

	rec = do(e.chat.GetSession, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session map[string]string
	decode(t, rec, &session)
	assert.Equal(t, "wh-1", session["session_id"])

	rec = do(e.chat.ClearHistory, http.MethodDelete, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e.chat.ListMessages, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages = nil
	decode(t, rec, &messages)
	assert.Empty(t, messages)
}

func TestChatHandler_ClearHistoryRequiresUser(t *testing.T) {
	e := newEnv(t)
	rec := do(e.chat.ClearHistory, http.MethodDelete, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewsHandler(t *testing.T) {
	company := uuid.New()

	t.Run("list serves the cache without a user", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.news.List, http.MethodGet, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body newsListResponse
		decode(t, rec, &body)
		assert.Empty(t, body.Items)
		assert.Nil(t, body.LastSyncTime)
	})

	t.Run("refresh requires a user", func(t *testing.T) {
		e := newEnv(t)
		rec := do(e.news.Refresh, http.MethodPost, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh fills the cache", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		e.newsRepo.items = []domain.NewsItem{{
			ID:               uuid.New(),
			Title:            "Water maintenance",
			Text:             "Water off on Tuesday.",
			CreatedAt:        time.Now(),
			HousingCompanyID: company,
		}}

		rec := do(e.news.Refresh, http.MethodPost, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body newsListResponse
		decode(t, rec, &body)
		require.Len(t, body.Items, 1)
		assert.Equal(t, "Water maintenance", body.Items[0].Title)
		assert.NotNil(t, body.LastSyncTime)
	})

	t.Run("login as another user does not serve the previous user's items", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		e.newsRepo.items = []domain.NewsItem{{
			ID:               uuid.New(),
			Title:            "For the first resident",
			CreatedAt:        time.Now(),
			HousingCompanyID: e.user.HousingCompanyIDs[0],
		}}

		rec := do(e.news.Refresh, http.MethodPost, "")
		require.Equal(t, http.StatusOK, rec.Code)

		// A second resident in a different housing company signs in on the
		// same device.
		e.users.user = &domain.User{
			ID:                uuid.New(),
			Role:              "resident",
			AccessCode:        "654321",
			HousingCompanyIDs: []uuid.UUID{uuid.New()},
		}
		e.newsRepo.items = nil
		rec = do(e.auth.Login, http.MethodPost, `{"access_code":"654321"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(e.news.List, http.MethodGet, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body newsListResponse
		decode(t, rec, &body)
		assert.Empty(t, body.Items)
	})

	t.Run("refresh failure keeps last-good cache", func(t *testing.T) {
		e := newEnv(t)
		e.login(t)
		e.newsRepo.items = []domain.NewsItem{{ID: uuid.New(), Title: "Kept", CreatedAt: time.Now()}}

		rec := do(e.news.Refresh, http.MethodPost, "")
		require.Equal(t, http.StatusOK, rec.Code)

		e.newsRepo.err = errors.New("store down")
		rec = do(e.news.Refresh, http.MethodPost, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		rec = do(e.news.List, http.MethodGet, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body newsListResponse
		decode(t, rec, &body)
		require.Len(t, body.Items, 1)
		assert.Equal(t, "Kept", body.Items[0].Title)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("no backends", func(t *testing.T) {
		h := NewHealthHandler(nil, nil)
		rec := do(h.Health, http.MethodGet, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("degraded database", func(t *testing.T) {
		h := NewHealthHandler(&stubPinger{err: errors.New("down")}, &stubPinger{})
		rec := do(h.Health, http.MethodGet, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status map[string]string
		decode(t, rec, &status)
		assert.Equal(t, "degraded", status["status"])
		assert.Equal(t, "unreachable", status["database"])
		assert.Equal(t, "ok", status["redis"])
	})
}
