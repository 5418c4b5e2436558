package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

// UserHandler serves the admin-only account management routes.
type UserHandler struct {
	users    *services.UserService
	sessions *session.Registry
	log      *logger.Logger
}

func NewUserHandler(users *services.UserService, sessions *session.Registry, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, log: log.With("handler", "users")}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.users.List())
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.NewUser
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	u, err := h.users.AddUser(r.Context(), req)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Public())
}

// Delete requires ?confirm=true. Open sessions of the removed user are closed.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	confirmed := r.URL.Query().Get("confirm") == "true"

	if err := h.users.DeleteUser(r.Context(), id, confirmed); err != nil {
		respondError(w, h.log, err)
		return
	}
	if n := h.sessions.CloseUser(id); n > 0 {
		h.log.Info("closed sessions of removed user", "user_id", id, "sessions", n)
	}
	w.WriteHeader(http.StatusNoContent)
}
