// Package textract implements the extraction.TextExtractor port. Text
// extraction proper (OCR, PDF parsing) is an external capability; this
// implementation handles plain-text documents directly and is the seam where
// a full OCR collaborator plugs in. Classification is the part the pipeline
// depends on: malformed or unsupported input is permanent, never retried.
package textract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// pdfMagic is the leading signature of a PDF document.
var pdfMagic = []byte("%PDF-")

// Extractor extracts plain text from submitted documents.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractText implements extraction.TextExtractor.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", domain.ErrPermanentExtraction)
	}

	if bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf(
			"%w: PDF text extraction requires the OCR collaborator, which is not configured",
			domain.ErrPermanentExtraction)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: document is not valid UTF-8 text", domain.ErrPermanentExtraction)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: document contains no extractable text", domain.ErrPermanentExtraction)
	}

	return text, nil
}
