package handler

import (
	"net/http"
	"time"

	"github.com/andsome/alpo-core/internal/api/response"
	"github.com/andsome/alpo-core/internal/chat"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/andsome/alpo-core/internal/news"
	"github.com/rs/zerolog/log"
)

// NewsHandler serves the news cache to the UI shell.
type NewsHandler struct {
	service *news.Service
	chat    *chat.Manager
}

// NewNewsHandler creates a new news handler
func NewNewsHandler(service *news.Service, chatManager *chat.Manager) *NewsHandler {
	return &NewsHandler{service: service, chat: chatManager}
}

type newsListResponse struct {
	Items        []domain.NewsItem `json:"items"`
	LastSyncTime *time.Time        `json:"last_sync_time,omitempty"`
}

// List handles GET /news: returns the cached items without touching the
// network. The background sync keeps the cache fresh.
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, lastSync := h.service.Cache()
	response.OK(w, newsListResponse{Items: items, LastSyncTime: lastSync})
}

// Refresh handles POST /news/refresh: one immediate sync pass for the
// current user, outside the timer.
func (h *NewsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := h.chat.CurrentUser()
	if user == nil {
		response.Unauthorized(w, "no active session")
		return
	}

	if _, _, err := h.service.Sync(r.Context(), user); err != nil {
		// The cache keeps its last-good content; report and move on.
		log.Error().Err(err).Msg("manual news refresh failed")
		response.InternalError(w, "news refresh failed")
		return
	}

	items, lastSync := h.service.Cache()
	response.OK(w, newsListResponse{Items: items, LastSyncTime: lastSync})
}
