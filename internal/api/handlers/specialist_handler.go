package handlers

import (
	"net/http"

	"github.com/inovalupa/govtech-analyzer/internal/config"
)

type SpecialistHandler struct {
	specialists *config.Specialists
}

func NewSpecialistHandler(specialists *config.Specialists) *SpecialistHandler {
	return &SpecialistHandler{specialists: specialists}
}

type specialistResponse struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Default     bool   `json:"default"`
}

// List returns the profiles a new project can be opened with.
func (h *SpecialistHandler) List(w http.ResponseWriter, r *http.Request) {
	keys := h.specialists.Keys()
	out := make([]specialistResponse, 0, len(keys))
	for _, k := range keys {
		p, _ := h.specialists.Profile(k)
		out = append(out, specialistResponse{Key: k, DisplayName: p.DisplayName, Default: k == h.specialists.Default})
	}
	writeJSON(w, http.StatusOK, out)
}
