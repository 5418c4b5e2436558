package core

import "context"

type SchemaType string

const (
	SchemaString      SchemaType = "string"
	SchemaStringArray SchemaType = "string_array"
)

// SchemaField is one property of a structured (JSON object) response.
type SchemaField struct {
	Name        string
	Type        SchemaType
	Description string
	Required    bool
}

// ChatTurn is a prior exchange replayed to seed a conversation. Role is "user" or "model".
type ChatTurn struct {
	Role    string
	Content string
}

// GenerateRequest is a single round trip to the generative model.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	History           []ChatTurn
	Prompt            string
	// ResponseSchema, when set, asks for a JSON object with these properties.
	ResponseSchema []SchemaField
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateFunc lets a plain function serve as an LLMProvider.
type GenerateFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
