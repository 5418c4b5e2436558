package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
)

const PDFContentType = "application/pdf"

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv, with a
// pure-Go reader as fallback for PDFs docconv cannot handle (e.g. no pdftotext on the host).
type DocconvExtractor struct {
	useReadability bool
	log            *logger.Logger
}

func NewDocconvExtractor(useReadability bool, log *logger.Logger) *DocconvExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &DocconvExtractor{useReadability: useReadability, log: log}
}

// ExtractText returns the normalized plain text of data.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("extract: empty document")
	}

	text, convErr := e.convert(data, contentType)
	if convErr != nil {
		e.log.Warn("docconv extraction failed", "content_type", contentType, "error", convErr)
	}
	if text == "" && contentType == PDFContentType {
		var err error
		text, err = extractPDFPlain(data)
		if err != nil {
			if convErr != nil {
				return "", fmt.Errorf("extract pdf: %v; fallback: %w", convErr, err)
			}
			return "", fmt.Errorf("extract pdf: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text == "" {
		if convErr != nil {
			return "", fmt.Errorf("extract: %w", convErr)
		}
		return "", fmt.Errorf("extract: no text found in %s document", contentType)
	}
	return text, nil
}

func (e *DocconvExtractor) convert(data []byte, contentType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", err
	}
	return NormalizeText(res.Body), nil
}

// extractPDFPlain reads page by page and skips pages that fail to decode.
func extractPDFPlain(data []byte) (text string, err error) {
	defer func() {
		// the pdf package panics on some malformed streams
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content = NormalizeText(content); content != "" {
			pages = append(pages, content)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return strings.Join(pages, "\n\n"), nil
}

// NormalizeText trims every line and collapses runs of blank lines into one.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		out   []string
		blank bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
