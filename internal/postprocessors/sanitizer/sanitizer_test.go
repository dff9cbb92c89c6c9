package sanitizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"clean text unchanged", "Hello world.", "Hello world."},
		{"unicode unchanged", "Não há essa informação", "Não há essa informação"},
		{"single null", "Hello\x00world", "Helloworld"},
		{"leading and trailing nulls", "\x00abc\x00", "abc"},
		{"only nulls", "\x00\x00\x00", ""},
		{"invalid utf8", "ab\xffcd", "abcd"},
		{"null inside invalid utf8 run", "a\xff\x00\xfeb", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"Hello\x00 world.\x00",
		"mixed \xc3\x28 bytes \x00 here",
		strings.Repeat("a\x00", 1000),
		"\u0000\u0000text",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)

		assert.Equal(t, once, twice, "not idempotent for %q", in)
		assert.NotContains(t, once, "\x00")
	}
}

func TestSanitize_IdentityWithoutIllegalChars(t *testing.T) {
	in := "Paragraph one.\n\nParagraph two with ünïcödé and emoji 🚀."
	out := Sanitize(in)
	assert.Equal(t, in, out)
}

func TestSanitizeMetadata(t *testing.T) {
	assert.Nil(t, SanitizeMetadata(nil))

	md := map[string]string{"source": "docs/a\x00.txt", "k\x00": "v"}
	out := SanitizeMetadata(md)

	assert.Equal(t, map[string]string{"source": "docs/a.txt", "k": "v"}, out)
	assert.Equal(t, "docs/a\x00.txt", md["source"], "input must not be modified")
}

func TestProcessor(t *testing.T) {
	p := New()
	assert.Equal(t, "sanitizer", p.Name())

	doc := &domain.Document{
		ID:       "doc-1",
		Title:    "Re\x00port",
		Content:  "Line one\x00\nLine two",
		Metadata: map[string]string{"source": "up\x00load.pdf"},
	}
	chunks := []domain.Chunk{{ID: "c1", Content: "x\x00y"}}

	out, err := p.Process(context.Background(), doc, chunks)

	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two", doc.Content)
	assert.Equal(t, "Report", doc.Title)
	assert.Equal(t, "upload.pdf", doc.Metadata["source"])
	require.Len(t, out, 1)
	assert.Equal(t, "xy", out[0].Content)
}

func TestProcessor_NilChunks(t *testing.T) {
	doc := &domain.Document{Content: ""}

	out, err := New().Process(context.Background(), doc, nil)

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, "", doc.Content)
}
