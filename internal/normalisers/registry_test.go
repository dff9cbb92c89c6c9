package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

type stubNormaliser struct {
	name     string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }

func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Document: NewDocument(raw, s.name, string(raw.Content), s.name)}, nil
}

func TestRegistry_Normalise(t *testing.T) {
	text := &stubNormaliser{name: "text", types: []string{"text/plain", "text/*"}, priority: 5}
	md := &stubNormaliser{name: "markdown", types: []string{"text/markdown"}, priority: 50}
	r := NewRegistry(text, md)

	tests := []struct {
		mimeType string
		want     string
	}{
		{"text/markdown", "markdown"},
		{"text/markdown; charset=utf-8", "markdown"},
		{"TEXT/PLAIN", "text"},
		{"text/csv", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			result, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "f", MIMEType: tt.mimeType})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Document.Title)
		})
	}
}

func TestRegistry_PriorityWins(t *testing.T) {
	low := &stubNormaliser{name: "low", types: []string{"text/html"}, priority: 1}
	high := &stubNormaliser{name: "high", types: []string{"text/html"}, priority: 90}
	r := NewRegistry(low, high)

	result, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/html"})
	require.NoError(t, err)
	assert.Equal(t, "high", result.Document.Title)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry(&stubNormaliser{types: []string{"text/plain"}})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "image/png"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.False(t, r.Supports("image/png"))
	assert.True(t, r.Supports("text/plain"))
}

func TestRegistry_Nil(t *testing.T) {
	_, err := NewRegistry().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	r := NewRegistry(
		&stubNormaliser{types: []string{"text/plain", "text/*"}},
		&stubNormaliser{types: []string{"application/pdf", "text/plain"}},
	)

	assert.Equal(t, []string{"application/pdf", "text/*", "text/plain"}, r.SupportedMIMETypes())
}

func TestTitleFromURI(t *testing.T) {
	assert.Equal(t, "user guide v2", TitleFromURI("/docs/user-guide_v2.md"))
	assert.Equal(t, "README", TitleFromURI("README"))
}

func TestNewDocument_KeepsLoaderSource(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/tmp/upload-123.pdf",
		MIMEType: "application/pdf",
		Metadata: map[string]string{domain.MetaSource: "manual.pdf"},
	}

	doc := NewDocument(raw, "Manual", "body", "pdf")

	assert.Equal(t, "manual.pdf", doc.Source())
	assert.Equal(t, "Manual", doc.Metadata[domain.MetaTitle])
	assert.Equal(t, "pdf", doc.Metadata["format"])
}
