package core

import "context"

// DocumentExtractor defines the interface for extracting plain text from uploaded documents.
// The contentType hint helps the extractor choose the right parsing strategy.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
