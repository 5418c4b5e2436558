package services

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

const pdfContentType = "application/pdf"

// ProjectsStore persists the whole project collection.
type ProjectsStore interface {
	SaveProjects(ctx context.Context, projects []models.AnalysisProject) error
}

// ProjectService owns the project collection. Every mutation rewrites the
// whole collection through the store; when that fails memory is left as it was.
type ProjectService struct {
	mu          sync.Mutex
	projects    []models.AnalysisProject
	store       ProjectsStore
	specialists *config.Specialists
	log         *logger.Logger
	now         func() time.Time
}

func NewProjectService(projects []models.AnalysisProject, store ProjectsStore, specialists *config.Specialists, log *logger.Logger) *ProjectService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProjectService{
		projects:    projects,
		store:       store,
		specialists: specialists,
		log:         log.With("component", "projects"),
		now:         time.Now,
	}
}

// Create builds an empty project owned by owner and puts it first in the collection.
// An empty specialist selects the catalogue default.
func (s *ProjectService) Create(ctx context.Context, owner models.User, name, specialist string) (models.AnalysisProject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.AnalysisProject{}, ErrEmptyProjectName
	}
	if specialist == "" {
		specialist = s.specialists.Default
	}
	if _, ok := s.specialists.Profile(specialist); !ok {
		return models.AnalysisProject{}, fmt.Errorf("%w: %q", ErrUnknownSpecialist, specialist)
	}

	p := newProject(uuid.NewString(), owner, name, specialist, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.AnalysisProject, 0, len(s.projects)+1)
	next = append(next, p)
	next = append(next, s.projects...)
	if err := s.store.SaveProjects(ctx, next); err != nil {
		return models.AnalysisProject{}, err
	}
	s.projects = next
	s.log.Info("project created", "project_id", p.ID, "owner_id", owner.ID, "specialist", specialist)
	return p, nil
}

// Visible lists what u may see, newest first.
func (s *ProjectService) Visible(u models.User) []models.AnalysisProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnalysisProject, 0, len(s.projects))
	for i := range s.projects {
		if s.projects[i].VisibleTo(&u) {
			out = append(out, s.projects[i])
		}
	}
	return out
}

// Get returns the project when it exists and u may see it.
func (s *ProjectService) Get(u models.User, id string) (models.AnalysisProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.indexFor(u, id)
	if err != nil {
		return models.AnalysisProject{}, err
	}
	return s.projects[idx], nil
}

// IngestFile records an analysed PDF on the project in one replacement.
func (s *ProjectService) IngestFile(ctx context.Context, u models.User, id string, file models.ProjectFile, result models.AnalysisResult) (models.AnalysisProject, error) {
	if !IsPDF(file.Type) {
		return models.AnalysisProject{}, ErrNotPDF
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadDate.IsZero() {
		file.UploadDate = s.now()
	}
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Type:      models.EntrySupportDocument,
		Title:     "Análise Inicial: " + file.Name,
		Content:   analysisEntryContent(result),
		Timestamp: s.now(),
	}
	return s.update(ctx, u, id, func(p models.AnalysisProject) models.AnalysisProject {
		return withIngestedFile(p, file, result, entry)
	})
}

// AppendHistory adds one audit entry and returns it alongside the project.
func (s *ProjectService) AppendHistory(ctx context.Context, u models.User, id string, typ models.AuditEntryType, title, content string) (models.AnalysisProject, models.AuditEntry, error) {
	if !typ.Valid() {
		return models.AnalysisProject{}, models.AuditEntry{}, fmt.Errorf("%w: type %q", ErrInvalidEntry, typ)
	}
	if strings.TrimSpace(title) == "" {
		return models.AnalysisProject{}, models.AuditEntry{}, fmt.Errorf("%w: title is empty", ErrInvalidEntry)
	}
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Content:   content,
		Timestamp: s.now(),
	}
	p, err := s.update(ctx, u, id, func(p models.AnalysisProject) models.AnalysisProject {
		return withHistoryEntry(p, entry)
	})
	if err != nil {
		return models.AnalysisProject{}, models.AuditEntry{}, err
	}
	return p, entry, nil
}

func (s *ProjectService) SetProposalTemplate(ctx context.Context, u models.User, id, template string) (models.AnalysisProject, error) {
	return s.update(ctx, u, id, func(p models.AnalysisProject) models.AnalysisProject {
		return withProposalTemplate(p, template)
	})
}

// History returns the audit entries newest first.
func (s *ProjectService) History(u models.User, id string) ([]models.AuditEntry, error) {
	p, err := s.Get(u, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, len(p.History))
	for i, e := range p.History {
		out[len(p.History)-1-i] = e
	}
	return out, nil
}

func (s *ProjectService) update(ctx context.Context, u models.User, id string, fn func(models.AnalysisProject) models.AnalysisProject) (models.AnalysisProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexFor(u, id)
	if err != nil {
		return models.AnalysisProject{}, err
	}
	updated := fn(s.projects[idx])

	next := make([]models.AnalysisProject, len(s.projects))
	copy(next, s.projects)
	next[idx] = updated
	if err := s.store.SaveProjects(ctx, next); err != nil {
		return models.AnalysisProject{}, err
	}
	s.projects = next
	return updated, nil
}

// indexFor must be called with s.mu held. Projects u cannot see are reported
// as missing.
func (s *ProjectService) indexFor(u models.User, id string) (int, error) {
	for i := range s.projects {
		if s.projects[i].ID == id {
			if !s.projects[i].VisibleTo(&u) {
				return -1, ErrProjectNotFound
			}
			return i, nil
		}
	}
	return -1, ErrProjectNotFound
}

// IsPDF reports whether contentType names a PDF, ignoring parameters.
func IsPDF(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == pdfContentType
}
