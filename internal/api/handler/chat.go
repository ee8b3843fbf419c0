package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andsome/alpo-core/internal/api/response"
	"github.com/andsome/alpo-core/internal/chat"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// ChatHandler exposes the chat manager to the UI shell.
type ChatHandler struct {
	manager  *chat.Manager
	validate *validator.Validate
}

// NewChatHandler creates a new chat handler
func NewChatHandler(manager *chat.Manager) *ChatHandler {
	return &ChatHandler{manager: manager, validate: validator.New()}
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type sendMessageResponse struct {
	AgentMessage string `json:"agent_message"`
	SessionID    string `json:"session_id"`
}

// SendMessage handles POST /chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.manager.SendMessage(r.Context(), req.Message)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	response.OK(w, sendMessageResponse{
		AgentMessage: resp.AgentMessage,
		SessionID:    resp.SessionID,
	})
}

// RetryLast handles POST /chat/retry: re-sends the most recent outbound
// message.
func (h *ChatHandler) RetryLast(w http.ResponseWriter, r *http.Request) {
	resp, err := h.manager.RetryLast(r.Context())
	if err != nil {
		h.writeSendError(w, err)
		return
	}
	response.OK(w, sendMessageResponse{
		AgentMessage: resp.AgentMessage,
		SessionID:    resp.SessionID,
	})
}

func (h *ChatHandler) writeSendError(w http.ResponseWriter, err error) {
	var sendErr *domain.SendError
	switch {
	case errors.Is(err, domain.ErrNoSession):
		response.Unauthorized(w, "no active session")
	case errors.Is(err, domain.ErrEmptyMessage):
		response.BadRequest(w, "message is empty")
	case errors.As(err, &sendErr):
		log.Error().Err(err).Msg("message send failed")
		response.UnprocessableEntity(w, sendErr.UserMessage())
	default:
		response.BadRequest(w, err.Error())
	}
}

// ListMessages handles GET /chat/messages. Degrades to an empty list, never
// to an error.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.manager.LoadMessages(r.Context()))
}

// GetSession handles GET /chat/session
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"session_id": h.manager.GetSessionID()})
}

// ClearHistory handles DELETE /chat/history. Destructive, so store failures
// surface instead of degrading.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearUserChatHistory(r.Context()); err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			response.Unauthorized(w, "no active session")
			return
		}
		log.Error().Err(err).Msg("failed to clear chat history")
		response.InternalError(w, "failed to clear chat history")
		return
	}
	response.NoContent(w)
}
