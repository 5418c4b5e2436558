package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/inovalupa/govtech-analyzer/internal/core"
)

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema([]core.SchemaField{
		{Name: "summary", Type: core.SchemaString, Required: true},
		{Name: "keywords", Type: core.SchemaStringArray, Required: true},
		{Name: "notes", Type: core.SchemaString, Description: "markdown"},
	})
	if s.Type != genai.TypeObject {
		t.Fatalf("type = %v", s.Type)
	}
	if got := s.Properties["keywords"]; got == nil || got.Type != genai.TypeArray || got.Items == nil || got.Items.Type != genai.TypeString {
		t.Errorf("keywords schema = %+v", got)
	}
	if got := s.Properties["notes"]; got == nil || got.Description != "markdown" {
		t.Errorf("notes schema = %+v", got)
	}
	if len(s.Required) != 2 || s.Required[0] != "summary" || s.Required[1] != "keywords" {
		t.Errorf("required = %v", s.Required)
	}
}

func TestToGenaiHistoryNormalizesRoles(t *testing.T) {
	h := toGenaiHistory([]core.ChatTurn{
		{Role: "user", Content: "q1"},
		{Role: "model", Content: "a1"},
		{Role: "assistant", Content: "odd"},
	})
	if len(h) != 3 {
		t.Fatalf("len = %d", len(h))
	}
	if h[0].Role != "user" || h[1].Role != "model" || h[2].Role != "user" {
		t.Errorf("roles = %s %s %s", h[0].Role, h[1].Role, h[2].Role)
	}
	if txt, ok := h[1].Parts[0].(genai.Text); !ok || string(txt) != "a1" {
		t.Errorf("part = %v", h[1].Parts[0])
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("nil response = %q", got)
	}
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Blob{MIMEType: "x"}, genai.Text("b")}},
		}},
	}
	if got := responseText(resp); got != "ab" {
		t.Errorf("text = %q", got)
	}
}

func TestNewGeminiLLMRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewGeminiLLM(context.Background(), ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
