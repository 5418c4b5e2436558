package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

// DefaultProposalTemplate is used when the project has no template of its own.
const DefaultProposalTemplate = `# PROPOSTA COMERCIAL E TÉCNICA

## 1. IDENTIFICAÇÃO DA PROPONENTE
**Empresa:** {{NOME_EMPRESA}}
**CNPJ:** {{CNPJ}}
**Endereço:** {{ENDERECO}}

## 2. OBJETO
A presente proposta tem por objeto o fornecimento de solução tecnológica conforme especificações contidas no edital.

## 3. ESPECIFICAÇÕES TÉCNICAS E PREÇOS
{{TABELA_ITENS}}

## 4. VALIDADE DA PROPOSTA
60 (sessenta) dias a contar da data de apresentação.

## 5. PRAZO DE ENTREGA E GARANTIA
Conforme exigido em edital: {{SLA}}`

const (
	WordContentType = "application/msword"

	wordHeader = "<html><head><meta charset='utf-8'><style>body{font-family:Arial; line-height:1.5; padding:40px;} table{width:100%; border-collapse:collapse; margin:20px 0;} th,td{border:1px solid #ccc; padding:10px; text-align:left;} h1,h2,h3{color:#1a365d;}</style></head><body>"
	wordFooter = "</body></html>"
	utf8BOM    = "\ufeff"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CompanyInfo identifies the bidder. Only the rendered proposal is persisted.
type CompanyInfo struct {
	Name           string `json:"name"`
	CNPJ           string `json:"cnpj"`
	Address        string `json:"address"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Representative string `json:"representative"`
	BankInfo       string `json:"bankInfo"`
}

type ProposalItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	UnitPrice   float64 `json:"unitPrice"`
}

func FormatCompany(c CompanyInfo) string {
	return fmt.Sprintf("Nome: %s, CNPJ: %s, Endereço: %s, E-mail: %s", c.Name, c.CNPJ, c.Address, c.Email)
}

// FormatItems renders one line per item.
func FormatItems(items []ProposalItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("- %s | Qtd: %s | Marca/Modelo: %s %s | Preço: R$ %s",
			it.Description, formatNumber(it.Quantity), it.Brand, it.Model, formatNumber(it.UnitPrice))
	}
	return strings.Join(lines, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DefaultItems is the single line a new proposal starts with.
func DefaultItems(p models.AnalysisProject) []ProposalItem {
	desc := models.Text(p.Classification)
	if desc == "" {
		desc = "Solução Tecnológica"
	}
	return []ProposalItem{{ID: "1", Description: "Item 01 - " + desc, Quantity: 1, Unit: "UN"}}
}

type ProposalService struct {
	projects  *ProjectService
	advisor   *Advisor
	extractor core.DocumentExtractor
	markdown  goldmark.Markdown
	log       *logger.Logger
}

func NewProposalService(projects *ProjectService, advisor *Advisor, extractor core.DocumentExtractor, log *logger.Logger) *ProposalService {
	if log == nil {
		log = logger.Nop()
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &ProposalService{
		projects:  projects,
		advisor:   advisor,
		extractor: extractor,
		markdown:  md,
		log:       log.With("component", "proposals"),
	}
}

// Generate drafts the proposal for a project and archives it in the history.
// With no items the default line is used.
func (s *ProposalService) Generate(ctx context.Context, u models.User, projectID string, company CompanyInfo, items []ProposalItem) (models.AuditEntry, error) {
	p, err := s.projects.Get(u, projectID)
	if err != nil {
		return models.AuditEntry{}, err
	}
	if len(items) == 0 {
		items = DefaultItems(p)
	}
	template := p.ProposalTemplate
	if template == "" {
		template = DefaultProposalTemplate
	}

	content, err := s.advisor.GenerateProposalContent(ctx, p.FullText, FormatCompany(company), FormatItems(items), template)
	if err != nil {
		return models.AuditEntry{}, err
	}

	name := company.Name
	if name == "" {
		name = "Empresa"
	}
	_, entry, err := s.projects.AppendHistory(ctx, u, projectID, models.EntryProposal, "Proposta Final - "+name, content)
	if err != nil {
		return models.AuditEntry{}, err
	}
	s.log.Info("proposal generated", "project_id", projectID, "entry_id", entry.ID)
	return entry, nil
}

// GenerateDocument produces a free-form support document from prompt and archives it.
func (s *ProposalService) GenerateDocument(ctx context.Context, u models.User, projectID, prompt string) (models.AuditEntry, error) {
	if strings.TrimSpace(prompt) == "" {
		return models.AuditEntry{}, ErrEmptyPrompt
	}
	p, err := s.projects.Get(u, projectID)
	if err != nil {
		return models.AuditEntry{}, err
	}

	content, err := s.advisor.GenerateNewDocument(ctx, p.FullText, prompt)
	if err != nil {
		return models.AuditEntry{}, err
	}

	short, _ := Truncate(prompt, 30)
	_, entry, err := s.projects.AppendHistory(ctx, u, projectID, models.EntrySupportDocument, "Gerado: "+short+"...", content)
	if err != nil {
		return models.AuditEntry{}, err
	}
	return entry, nil
}

// SetTemplate stores a template typed by the user.
func (s *ProposalService) SetTemplate(ctx context.Context, u models.User, projectID, template string) (models.AnalysisProject, error) {
	return s.projects.SetProposalTemplate(ctx, u, projectID, template)
}

// ImportTemplate stores a template read from an uploaded markdown or PDF file.
func (s *ProposalService) ImportTemplate(ctx context.Context, u models.User, projectID, filename, contentType string, data []byte) (models.AnalysisProject, error) {
	if _, err := s.projects.Get(u, projectID); err != nil {
		return models.AnalysisProject{}, err
	}

	var template string
	switch ext := strings.ToLower(path.Ext(filename)); {
	case IsPDF(contentType) || ext == ".pdf":
		text, err := s.extractor.ExtractText(ctx, data, pdfContentType)
		if err != nil {
			s.log.Error("template extraction failed", "project_id", projectID, "file", filename, "error", err)
			return models.AnalysisProject{}, fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		template = text
	case ext == ".md" || ext == ".markdown" || ext == ".txt" || strings.HasPrefix(contentType, "text/"):
		template = string(data)
	default:
		return models.AnalysisProject{}, ErrUnsupportedTemplate
	}

	return s.projects.SetProposalTemplate(ctx, u, projectID, template)
}

// ExportWord renders markdown as an HTML document that word processors open as .doc.
func (s *ProposalService) ExportWord(markdown, companyName string) (string, []byte, error) {
	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &body); err != nil {
		return "", nil, fmt.Errorf("render proposal: %w", err)
	}

	var out bytes.Buffer
	out.Grow(len(utf8BOM) + len(wordHeader) + body.Len() + len(wordFooter))
	out.WriteString(utf8BOM)
	out.WriteString(wordHeader)
	out.Write(body.Bytes())
	out.WriteString(wordFooter)
	return WordFilename(companyName), out.Bytes(), nil
}

// WordFilename derives the download name from the bidder's name.
func WordFilename(companyName string) string {
	name := whitespaceRun.ReplaceAllString(companyName, "_")
	if name == "" {
		name = "Final"
	}
	return "Proposta_VSDATA_" + name + ".doc"
}
