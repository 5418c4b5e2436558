package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/inovalupa/govtech-analyzer/internal/core"
	objectclient "github.com/inovalupa/govtech-analyzer/internal/core/object-client"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

// FileUpload is one PDF received from the client.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	Project models.AnalysisProject `json:"project"`
	File    models.ProjectFile     `json:"file"`
	// Truncated is set when only the leading part of the text was analysed.
	Truncated bool `json:"truncated"`
}

type UploadService struct {
	projects  *ProjectService
	advisor   *Advisor
	extractor core.DocumentExtractor
	storage   core.ObjectClient
	log       *logger.Logger
}

// NewUploadService wires the upload pipeline. storage may be nil, in which case
// the original PDF is not archived.
func NewUploadService(projects *ProjectService, advisor *Advisor, extractor core.DocumentExtractor, storage core.ObjectClient, log *logger.Logger) *UploadService {
	if log == nil {
		log = logger.Nop()
	}
	return &UploadService{
		projects:  projects,
		advisor:   advisor,
		extractor: extractor,
		storage:   storage,
		log:       log.With("component", "upload"),
	}
}

// Upload extracts, archives, analyses and ingests one PDF. Nothing is recorded
// on the project unless every step succeeds.
func (s *UploadService) Upload(ctx context.Context, u models.User, projectID string, up FileUpload) (*UploadResult, error) {
	if !IsPDF(up.ContentType) {
		return nil, ErrNotPDF
	}
	project, err := s.projects.Get(u, projectID)
	if err != nil {
		return nil, err
	}

	fileID := uuid.NewString()
	key := objectclient.ProjectFileKey(project.OwnerID, project.ID, fileID, up.Name)

	var text, url string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.extractor.ExtractText(gctx, up.Data, pdfContentType)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: no text found in %s", ErrExtraction, up.Name)
		}
		text = t
		return nil
	})

	if s.storage != nil {
		g.Go(func() error {
			loc, err := s.storage.UploadFile(gctx, key, bytes.NewReader(up.Data), pdfContentType)
			if err != nil {
				return fmt.Errorf("archive %s: %w", up.Name, err)
			}
			url = loc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error("upload failed before analysis", "project_id", projectID, "file", up.Name, "error", err)
		s.discard(key, url)
		return nil, err
	}

	result, truncated, err := s.advisor.AnalyzeDocument(ctx, text, project.Specialist)
	if err != nil {
		s.discard(key, url)
		return nil, err
	}

	file := models.ProjectFile{
		ID:         fileID,
		Name:       up.Name,
		Size:       int64(len(up.Data)),
		Type:       pdfContentType,
		Text:       text,
		StorageURL: url,
	}
	updated, err := s.projects.IngestFile(ctx, u, projectID, file, result)
	if err != nil {
		s.discard(key, url)
		return nil, err
	}

	ingested := updated.Files[len(updated.Files)-1]
	s.log.Info("file ingested", "project_id", projectID, "file_id", ingested.ID, "chars", len([]rune(text)), "truncated", truncated)
	return &UploadResult{Project: updated, File: ingested, Truncated: truncated}, nil
}

// Download returns an ingested file together with its archived original PDF.
func (s *UploadService) Download(ctx context.Context, u models.User, projectID, fileID string) (models.ProjectFile, []byte, error) {
	project, err := s.projects.Get(u, projectID)
	if err != nil {
		return models.ProjectFile{}, nil, err
	}
	for _, f := range project.Files {
		if f.ID != fileID {
			continue
		}
		if s.storage == nil || f.StorageURL == "" {
			return f, nil, ErrNotArchived
		}
		data, err := s.storage.GetFile(ctx, objectclient.ProjectFileKey(project.OwnerID, project.ID, f.ID, f.Name))
		if err != nil {
			s.log.Error("archived file unavailable", "project_id", projectID, "file_id", fileID, "error", err)
			return f, nil, fmt.Errorf("fetch %s: %w", f.Name, err)
		}
		return f, data, nil
	}
	return models.ProjectFile{}, nil, ErrFileNotFound
}

// discard removes an archived object whose upload did not complete.
func (s *UploadService) discard(key, url string) {
	if s.storage == nil || url == "" {
		return
	}
	if err := s.storage.DeleteFile(context.Background(), key); err != nil {
		s.log.Warn("could not remove orphaned archive object", "key", key, "error", err)
	}
}
