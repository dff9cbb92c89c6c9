package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	content := "# Install Guide\n\nRun `make install` first.\n\n## Steps\n\n- Download the **binary**\n- See [the docs](https://example.com)\n"
	raw := &domain.RawDocument{URI: "docs/install.md", MIMEType: "text/markdown", Content: []byte(content)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Install Guide", doc.Title)
	assert.Equal(t, "markdown", doc.Metadata["format"])
	assert.Equal(t, "text/markdown", doc.Metadata[domain.MetaMIMEType])
	assert.Equal(t,
		"Install Guide\n\nRun make install first.\n\nSteps\n\nDownload the binary\nSee the docs",
		doc.Content)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_TitleFallsBackToFilename(t *testing.T) {
	raw := &domain.RawDocument{URI: "notes/release_notes.md", MIMEType: "text/markdown", Content: []byte("no heading here")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "release notes", result.Document.Title)
}

func TestNormalise_FrontMatter(t *testing.T) {
	content := "---\ntitle: \"Runbook\"\nowner: platform\n---\n# Ignored Heading\n\nBody text."
	raw := &domain.RawDocument{URI: "runbook.md", MIMEType: "text/markdown", Content: []byte(content)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Runbook", doc.Title)
	assert.Equal(t, "platform", doc.Metadata["owner"])
	assert.NotContains(t, doc.Content, "owner:")
	assert.Contains(t, doc.Content, "Body text.")
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"code fence keeps code", "```go\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"image keeps alt text", "![diagram](img.png)", "diagram"},
		{"blockquote", "> quoted line", "quoted line"},
		{"numbered list", "1. first\n2) second", "first\nsecond"},
		{"horizontal rule", "above\n\n---\n\nbelow", "above\n\nbelow"},
		{"collapses blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"inline html", "<b>bold</b> text", "bold text"},
		{"snake case survives", "use max_results here", "use max_results here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdown(tt.in))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
