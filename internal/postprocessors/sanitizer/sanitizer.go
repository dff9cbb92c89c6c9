// Package sanitizer removes text the vector store cannot persist.
package sanitizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Sanitize strips NUL characters and invalid UTF-8 sequences, neither of
// which Postgres accepts in TEXT or JSONB columns. Text without them is
// returned unchanged, and Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	if strings.IndexByte(text, 0) < 0 && utf8.ValidString(text) {
		return text
	}
	return strings.ReplaceAll(strings.ToValidUTF8(text, ""), "\x00", "")
}

// SanitizeMetadata returns a copy of md with every key and value sanitized.
func SanitizeMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[Sanitize(k)] = Sanitize(v)
	}
	return out
}

// Processor is the pipeline stage that sanitizes a document before chunking.
type Processor struct{}

// New creates a sanitizer processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sanitizer"
}

// Process rewrites the document's text fields in place. Chunks already
// produced by earlier stages are sanitized too.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	doc.Content = Sanitize(doc.Content)
	doc.Title = Sanitize(doc.Title)
	doc.Metadata = SanitizeMetadata(doc.Metadata)

	for i := range chunks {
		chunks[i].Content = Sanitize(chunks[i].Content)
		chunks[i].Metadata = SanitizeMetadata(chunks[i].Metadata)
	}
	return chunks, nil
}
