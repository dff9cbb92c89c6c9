package plaintext

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	require.NotEmpty(t, mimeTypes)
	assert.Contains(t, mimeTypes, "text/plain")
	assert.Contains(t, mimeTypes, "application/json")
	assert.Contains(t, mimeTypes, "text/*")
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "docs/getting-started.txt",
		MIMEType: "text/plain",
		Content:  []byte("This is plain text content."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, result)

	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "getting started", doc.Title)
	assert.Equal(t, "This is plain text content.", doc.Content)
	assert.Equal(t, "text/plain", doc.Metadata[domain.MetaMIMEType])
	assert.Equal(t, "docs/getting-started.txt", doc.Metadata[domain.MetaSource])
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_EmptyContent(t *testing.T) {
	raw := &domain.RawDocument{URI: "empty.txt", MIMEType: "text/plain"}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, result.Document.Content)
}

func TestNormalise_LineEndingsAndBOM(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "win.txt",
		MIMEType: "text/plain",
		Content:  []byte("\ufeffFirst\r\n\r\nSecond\r\n"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "First\n\nSecond\n", result.Document.Content)
}

func TestNormalise_MetadataPreserved(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "docs/a.txt",
		MIMEType: "text/plain",
		Content:  []byte("x"),
		Metadata: map[string]string{"size": "1", domain.MetaTitle: "Release Notes", domain.MetaSource: "upload.txt"},
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	md := result.Document.Metadata
	assert.Equal(t, "1", md["size"])
	assert.Equal(t, "Release Notes", result.Document.Title)
	assert.Equal(t, "upload.txt", md[domain.MetaSource], "loader-provided source wins over URI")

	md["size"] = "changed"
	assert.Equal(t, "1", raw.Metadata["size"], "raw metadata must be copied")
}

func TestNormalise_NullBytesPassThrough(t *testing.T) {
	// Sanitisation is the pipeline's job; the normaliser keeps text as-is.
	raw := &domain.RawDocument{URI: "n.txt", MIMEType: "text/plain", Content: []byte("a\x00b")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "a\x00b", result.Document.Content)
}

func TestNormalise_LargeContent(t *testing.T) {
	content := strings.Repeat("Lorem ipsum dolor sit amet. ", 10000)
	raw := &domain.RawDocument{URI: "large.txt", MIMEType: "text/plain", Content: []byte(content)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, content, result.Document.Content)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
