package handlers

import (
	"net/http"

	middleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

type ChatHandler struct {
	chat     *services.ChatService
	sessions *session.Registry
	log      *logger.Logger
}

func NewChatHandler(chat *services.ChatService, sessions *session.Registry, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, log: log.With("handler", "chat")}
}

type chatRequest struct {
	Message string `json:"message"`
}

// History returns the conversation held by the session.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	st, ok := h.sessions.Get(sid)
	if !ok {
		respondError(w, h.log, session.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: st})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sid, _ := middleware.SessionID(r.Context())
	st, err := h.chat.Send(r.Context(), sid, req.Message)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: st})
}

func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	entry, err := h.chat.Archive(r.Context(), sid)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
