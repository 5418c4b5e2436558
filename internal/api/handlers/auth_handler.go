package handlers

import (
	"net/http"
	"time"

	middleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

type AuthHandler struct {
	users    *services.UserService
	sessions *session.Registry
	secret   []byte
	log      *logger.Logger
}

func NewAuthHandler(users *services.UserService, sessions *session.Registry, secret []byte, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, secret: secret, log: log.With("handler", "auth")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string        `json:"token,omitempty"`
	Session session.State `json:"session"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		h.log.Info("login rejected")
		respondError(w, h.log, err)
		return
	}

	sid, st := h.sessions.Open(user)
	token, err := middleware.IssueToken(h.secret, sid, user.ID, time.Now())
	if err != nil {
		h.sessions.Close(sid)
		respondError(w, h.log, err)
		return
	}
	h.log.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Session: st})
}

// Logout closes the session; its token stops working immediately.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Session: h.sessions.Close(sid)})
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	st, ok := h.sessions.Get(sid)
	if !ok {
		respondError(w, h.log, session.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: st})
}

type tabRequest struct {
	Tab session.Tab `json:"tab"`
}

func (h *AuthHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sid, _ := middleware.SessionID(r.Context())
	st, err := h.sessions.Update(sid, func(s session.State) (session.State, error) {
		return s.SelectTab(req.Tab)
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: st})
}
