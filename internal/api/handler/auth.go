package handler

import (
	"encoding/json"
	"net/http"

	"github.com/andsome/alpo-core/internal/api/response"
	"github.com/andsome/alpo-core/internal/chat"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/andsome/alpo-core/internal/news"
	"github.com/andsome/alpo-core/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// AuthHandler resolves users from access codes and binds them to the chat
// and sync managers. The actual authentication UI lives in the mobile shell;
// this is only the lookup-and-bind step.
type AuthHandler struct {
	users      domain.UserRepository
	jwtManager *security.JWTManager
	chat       *chat.Manager
	sync       *news.SyncManager
	validate   *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users domain.UserRepository, jwtManager *security.JWTManager, chatManager *chat.Manager, syncManager *news.SyncManager) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtManager: jwtManager,
		chat:       chatManager,
		sync:       syncManager,
		validate:   validator.New(),
	}
}

type loginResponse struct {
	User   *domain.User     `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.UserLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.users.GetByAccessCode(r.Context(), req.AccessCode)
	if err != nil {
		log.Error().Err(err).Msg("access code lookup failed")
		response.InternalError(w, "authentication failed")
		return
	}
	if user == nil {
		response.Unauthorized(w, "invalid access code")
		return
	}

	// Bind the user to the core. A failed session rotation is logged, not
	// fatal: the chat manager recovers lazily on the first send.
	if err := h.chat.SetUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Msg("failed to start chat session at login")
	}
	h.sync.SetUser(user)

	access, refresh, expiresIn, err := h.jwtManager.GenerateTokenPair(user.ID, user.Role, user.HousingCompanyIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate tokens")
		response.InternalError(w, "authentication failed")
		return
	}

	response.OK(w, loginResponse{
		User: user,
		Tokens: domain.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    expiresIn,
		},
	})
}

// Logout handles POST /auth/logout: drops in-memory state, keeps persisted
// data.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.chat.ClearUserData()
	h.sync.SetUser(nil)
	response.NoContent(w)
}
