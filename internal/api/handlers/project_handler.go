package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	middleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

type ProjectHandler struct {
	projects    *services.ProjectService
	uploads     *services.UploadService
	proposals   *services.ProposalService
	sessions    *session.Registry
	maxUploadMB int
	log         *logger.Logger
}

func NewProjectHandler(projects *services.ProjectService, uploads *services.UploadService, proposals *services.ProposalService, sessions *session.Registry, maxUploadMB int, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		uploads:     uploads,
		proposals:   proposals,
		sessions:    sessions,
		maxUploadMB: maxUploadMB,
		log:         log.With("handler", "projects"),
	}
}

type createProjectRequest struct {
	Name       string `json:"name"`
	Specialist string `json:"specialist"`
}

type projectResponse struct {
	Project models.AnalysisProject `json:"project"`
	Session session.State          `json:"session"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	writeJSON(w, http.StatusOK, h.projects.Visible(st.User))
}

// Create opens a new analysis and makes it the session's active project.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sid, _ := middleware.SessionID(r.Context())
	st, _ := middleware.SessionState(r.Context())

	p, err := h.projects.Create(r.Context(), st.User, req.Name, req.Specialist)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	next, err := h.sessions.Update(sid, func(s session.State) (session.State, error) {
		return s.SelectProject(p.ID), nil
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: p, Session: next})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	p, err := h.projects.Get(st.User, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Select(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	st, _ := middleware.SessionState(r.Context())

	p, err := h.projects.Get(st.User, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	next, err := h.sessions.Update(sid, func(s session.State) (session.State, error) {
		return s.SelectProject(p.ID), nil
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: p, Session: next})
}

// Upload ingests the multipart field "file". Only one upload per session runs
// at a time; the processing flag is cleared whatever the outcome.
func (h *ProjectHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sid, _ := middleware.SessionID(r.Context())
	st, _ := middleware.SessionState(r.Context())
	projectID := chi.URLParam(r, "id")

	limit := int64(h.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Arquivo excede o tamanho máximo permitido.")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	up := services.FileUpload{Name: header.Filename, ContentType: header.Header.Get("Content-Type")}
	if !services.IsPDF(up.ContentType) {
		respondError(w, h.log, services.ErrNotPDF)
		return
	}
	if up.Data, err = io.ReadAll(file); err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	if _, err := h.sessions.Update(sid, session.State.BeginProcessing); err != nil {
		respondError(w, h.log, err)
		return
	}

	result, err := h.uploads.Upload(r.Context(), st.User, projectID, up)
	if _, uerr := h.sessions.Update(sid, func(s session.State) (session.State, error) {
		return s.EndProcessing(err == nil), nil
	}); uerr != nil {
		h.log.Warn("could not clear processing flag", "error", uerr)
	}
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Download streams the archived original of an ingested PDF.
func (h *ProjectHandler) Download(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	file, data, err := h.uploads.Download(r.Context(), st.User, chi.URLParam(r, "id"), chi.URLParam(r, "fileId"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", file.Type)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ProjectHandler) History(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	entries, err := h.projects.History(st.User, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type historyRequest struct {
	Type    models.AuditEntryType `json:"type"`
	Title   string                `json:"title"`
	Content string                `json:"content"`
}

// AppendHistory archives an artifact produced on the client side.
func (h *ProjectHandler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	st, _ := middleware.SessionState(r.Context())
	_, entry, err := h.projects.AppendHistory(r.Context(), st.User, chi.URLParam(r, "id"), req.Type, req.Title, req.Content)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type documentRequest struct {
	Prompt string `json:"prompt"`
}

func (h *ProjectHandler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	st, _ := middleware.SessionState(r.Context())
	entry, err := h.proposals.GenerateDocument(r.Context(), st.User, chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
