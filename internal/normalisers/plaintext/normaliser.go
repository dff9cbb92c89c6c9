// Package plaintext normalises plain text and source files.
package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
// "text/*" makes it the fallback for any other text type.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/x-go",
		"text/x-python",
		"text/x-java",
		"text/x-shellscript",
		"text/x-sql",
		"text/yaml",
		"text/toml",
		"application/json",
		"application/xml",
		"text/*",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a raw document to a document. Windows line endings are
// folded to "\n" so the chunker sees paragraph breaks.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	doc := normalisers.NewDocument(raw, normalisers.TitleFromMetadataOrURI(raw), content, "")
	return &driven.NormaliseResult{Document: doc}, nil
}
