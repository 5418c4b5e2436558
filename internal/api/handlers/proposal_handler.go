package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
)

type ProposalHandler struct {
	proposals   *services.ProposalService
	projects    *services.ProjectService
	maxUploadMB int
	log         *logger.Logger
}

func NewProposalHandler(proposals *services.ProposalService, projects *services.ProjectService, maxUploadMB int, log *logger.Logger) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, projects: projects, maxUploadMB: maxUploadMB, log: log.With("handler", "proposals")}
}

type templateResponse struct {
	Template string                  `json:"template"`
	Custom   bool                    `json:"custom"`
	Items    []services.ProposalItem `json:"items"`
}

// Template returns the template and item list a new proposal starts from.
func (h *ProposalHandler) Template(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	p, err := h.projects.Get(st.User, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	resp := templateResponse{Template: p.ProposalTemplate, Custom: p.ProposalTemplate != "", Items: services.DefaultItems(p)}
	if !resp.Custom {
		resp.Template = services.DefaultProposalTemplate
	}
	writeJSON(w, http.StatusOK, resp)
}

type setTemplateRequest struct {
	Template string `json:"template"`
}

// SetTemplate accepts either {"template": "..."} or a multipart "file" holding
// a markdown or PDF template.
func (h *ProposalHandler) SetTemplate(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.SessionState(r.Context())
	projectID := chi.URLParam(r, "id")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req setTemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		p, err := h.proposals.SetTemplate(r.Context(), st.User, projectID, req.Template)
		if err != nil {
			respondError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxUploadMB)<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	p, err := h.proposals.ImportTemplate(r.Context(), st.User, projectID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type proposalRequest struct {
	Company services.CompanyInfo    `json:"company"`
	Items   []services.ProposalItem `json:"items"`
}

func (h *ProposalHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	st, _ := middleware.SessionState(r.Context())
	entry, err := h.proposals.Generate(r.Context(), st.User, chi.URLParam(r, "id"), req.Company, req.Items)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type exportRequest struct {
	Markdown    string `json:"markdown"`
	CompanyName string `json:"companyName"`
}

// Export returns the proposal as a .doc download.
func (h *ProposalHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		writeError(w, http.StatusBadRequest, "Nada para exportar.")
		return
	}

	filename, doc, err := h.proposals.ExportWord(req.Markdown, req.CompanyName)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", services.WordContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
