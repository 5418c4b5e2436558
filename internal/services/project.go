package services

import (
	"time"

	"github.com/inovalupa/govtech-analyzer/internal/models"
)

// The functions below build new project values. Slices are copied before
// appending so a project handed out earlier never changes underneath its holder.

func newProject(id string, owner models.User, name, specialist string, at time.Time) models.AnalysisProject {
	return models.AnalysisProject{
		ID:         id,
		OwnerID:    owner.ID,
		OwnerEmail: owner.Email,
		Name:       name,
		CreateDate: at,
		Specialist: specialist,
		Files:      []models.ProjectFile{},
		History:    []models.AuditEntry{},
	}
}

// withIngestedFile appends the file and its audit entry, extends the full text
// and replaces every analysis field with result.
func withIngestedFile(p models.AnalysisProject, file models.ProjectFile, result models.AnalysisResult, entry models.AuditEntry) models.AnalysisProject {
	files := make([]models.ProjectFile, len(p.Files), len(p.Files)+1)
	copy(files, p.Files)
	p.Files = append(files, file)

	if p.FullText == "" {
		p.FullText = file.Text
	} else {
		p.FullText = p.FullText + "\n\n" + file.Text
	}

	p.AnalysisResult = result
	return withHistoryEntry(p, entry)
}

func withHistoryEntry(p models.AnalysisProject, entry models.AuditEntry) models.AnalysisProject {
	history := make([]models.AuditEntry, len(p.History), len(p.History)+1)
	copy(history, p.History)
	p.History = append(history, entry)
	return p
}

func withProposalTemplate(p models.AnalysisProject, template string) models.AnalysisProject {
	p.ProposalTemplate = template
	return p
}

// analysisEntryContent is what the upload audit entry records.
func analysisEntryContent(result models.AnalysisResult) string {
	if s := models.Text(result.PontosAtencaoEspecialista); s != "" {
		return s
	}
	return "Relatório gerado com sucesso."
}
