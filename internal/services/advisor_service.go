package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

// Character budgets applied to the document context of each request.
const (
	AnalysisBudget = 30000
	ChatBudget     = 15000
	ProposalBudget = 10000
	DocumentBudget = 10000
)

const (
	chatFallbackReply = "Sem resposta do assistente."

	proposalInstruction = "Você é um gestor comercial sênior. Sua missão é criar propostas técnicas e comerciais irrefutáveis, com formatação impecável em Markdown."
	documentInstruction = "Gere documentos técnicos em Markdown baseados no edital fornecido."
)

var analysisSchema = []core.SchemaField{
	{Name: "classification", Type: core.SchemaString, Required: true},
	{Name: "summary", Type: core.SchemaString, Required: true},
	{Name: "keywords", Type: core.SchemaStringArray, Required: true},
	{Name: "requisitosTecnicos", Type: core.SchemaStringArray, Required: true},
	{Name: "tecnologiasSugeridas", Type: core.SchemaStringArray, Required: true},
	{Name: "slaExigido", Type: core.SchemaString, Required: true},
	{Name: "riscosContratuais", Type: core.SchemaString, Required: true},
	{Name: "fabricantesAderentes", Type: core.SchemaStringArray, Required: true},
	{Name: "atestadosExigidos", Type: core.SchemaStringArray, Required: true},
	{
		Name:        "pontosAtencaoEspecialista",
		Type:        core.SchemaString,
		Description: "Markdown detalhando a sugestão de solução e os principais pontos de atenção que podem desclassificar a proposta.",
		Required:    true,
	},
}

// Advisor builds the requests sent to the generative model and validates what
// comes back. It holds no per-call state.
type Advisor struct {
	llm         core.LLMProvider
	specialists *config.Specialists
	log         *logger.Logger
}

func NewAdvisor(llm core.LLMProvider, specialists *config.Specialists, log *logger.Logger) *Advisor {
	if log == nil {
		log = logger.Nop()
	}
	return &Advisor{llm: llm, specialists: specialists, log: log.With("component", "advisor")}
}

// Truncate keeps at most limit characters of s and reports whether anything was cut.
func Truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// AnalyzeDocument asks for the structured tender analysis. The boolean reports
// whether text exceeded the analysis budget.
func (a *Advisor) AnalyzeDocument(ctx context.Context, text, specialist string) (models.AnalysisResult, bool, error) {
	profile, err := a.profile(specialist)
	if err != nil {
		return models.AnalysisResult{}, false, err
	}

	body, truncated := Truncate(text, AnalysisBudget)
	if truncated {
		a.log.Warn("document text truncated for analysis", "chars", len([]rune(text)), "budget", AnalysisBudget)
	}

	raw, err := a.llm.Generate(ctx, core.GenerateRequest{
		Model:             profile.AnalysisModel,
		SystemInstruction: profile.AnalysisInstruction,
		Prompt:            "Analise o seguinte documento e forneça um relatório técnico detalhado:\n\nDOCUMENTO:\n" + body,
		ResponseSchema:    analysisSchema,
	})
	if err != nil {
		a.log.Error("analysis request failed", "specialist", specialist, "error", err)
		return models.AnalysisResult{}, truncated, fmt.Errorf("%w: %w", ErrAIService, err)
	}

	result, err := ParseAnalysis(raw)
	if err != nil {
		a.log.Error("analysis response rejected", "specialist", specialist, "error", err)
		return models.AnalysisResult{}, truncated, err
	}
	return result, truncated, nil
}

// ChatWithData answers message using the tender text as context and history
// as the prior conversation.
func (a *Advisor) ChatWithData(ctx context.Context, history []models.ChatMessage, message, docContext, specialist string) (string, error) {
	profile, err := a.profile(specialist)
	if err != nil {
		return "", err
	}

	body, _ := Truncate(docContext, ChatBudget)
	turns := make([]core.ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, core.ChatTurn{Role: string(m.Role), Content: m.Content})
	}

	instruction := "Você é o " + profile.DisplayName + ".\n" +
		"Use o contexto do edital abaixo para responder. Sempre use Markdown.\n\n" +
		"CONTEXTO:\n" + body

	reply, err := a.llm.Generate(ctx, core.GenerateRequest{
		Model:             profile.ChatModel,
		SystemInstruction: instruction,
		History:           turns,
		Prompt:            message,
	})
	if err != nil {
		a.log.Error("chat request failed", "specialist", specialist, "error", err)
		return "", fmt.Errorf("%w: %w", ErrAIService, err)
	}
	if strings.TrimSpace(reply) == "" {
		return chatFallbackReply, nil
	}
	return reply, nil
}

// GenerateProposalContent drafts a commercial proposal. A non-empty template
// must be followed verbatim by the model.
func (a *Advisor) GenerateProposalContent(ctx context.Context, docContext, companyData, itemsTable, customTemplate string) (string, error) {
	body, _ := Truncate(docContext, ProposalBudget)

	var b strings.Builder
	b.WriteString("Gere uma proposta comercial baseada nestes dados:\n")
	b.WriteString("EMPRESA: " + companyData + "\n")
	b.WriteString("ITENS: " + itemsTable + "\n")
	b.WriteString("EDITAL: " + body + "\n")
	if customTemplate != "" {
		b.WriteString("TEMPLATE CUSTOMIZADO: " + customTemplate + "\n")
	}
	b.WriteString("\nResponda em Markdown. Se houver um TEMPLATE CUSTOMIZADO, siga rigorosamente a estrutura dele, preenchendo as lacunas com os dados fornecidos.")

	out, err := a.llm.Generate(ctx, core.GenerateRequest{
		Model:             a.specialists.ProposalModel,
		SystemInstruction: proposalInstruction,
		Prompt:            b.String(),
	})
	if err != nil {
		a.log.Error("proposal request failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrAIService, err)
	}
	return out, nil
}

func (a *Advisor) GenerateNewDocument(ctx context.Context, docContext, prompt string) (string, error) {
	body, _ := Truncate(docContext, DocumentBudget)
	out, err := a.llm.Generate(ctx, core.GenerateRequest{
		Model:             a.specialists.DocumentModel,
		SystemInstruction: documentInstruction,
		Prompt:            "Contexto do Edital: " + body + "\n\nPedido: " + prompt,
	})
	if err != nil {
		a.log.Error("document request failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrAIService, err)
	}
	return out, nil
}

func (a *Advisor) profile(key string) (*config.Profile, error) {
	if key == "" {
		key = a.specialists.Default
	}
	p, ok := a.specialists.Profile(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecialist, key)
	}
	return p, nil
}

// ParseAnalysis validates a model response against the analysis shape.
// An empty body yields a result with every field absent. Strings given where a
// list is expected become one-element lists, lists given where a string is
// expected are joined by newlines, and anything else is dropped.
func ParseAnalysis(raw string) (models.AnalysisResult, error) {
	var out models.AnalysisResult

	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return out, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return out, fmt.Errorf("%w: %w", ErrMalformedAnalysis, err)
	}
	if fields == nil {
		return out, nil
	}

	out.Classification = asText(fields["classification"])
	out.Summary = asText(fields["summary"])
	out.Keywords = asList(fields["keywords"])
	out.RequisitosTecnicos = asList(fields["requisitosTecnicos"])
	out.TecnologiasSugeridas = asList(fields["tecnologiasSugeridas"])
	out.SlaExigido = asText(fields["slaExigido"])
	out.RiscosContratuais = asText(fields["riscosContratuais"])
	out.FabricantesAderentes = asList(fields["fabricantesAderentes"])
	out.AtestadosExigidos = asList(fields["atestadosExigidos"])
	out.PontosAtencaoEspecialista = asText(fields["pontosAtencaoEspecialista"])
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func asText(v any) *string {
	switch t := v.(type) {
	case string:
		return &t
	case []any:
		items := stringItems(t)
		if items == nil {
			return nil
		}
		s := strings.Join(items, "\n")
		return &s
	}
	return nil
}

func asList(v any) []string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []any:
		return stringItems(t)
	}
	return nil
}

// stringItems keeps the string elements of a JSON array. An array with no
// strings at all counts as absent; an empty array stays empty.
func stringItems(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(arr) > 0 {
		return nil
	}
	return out
}
