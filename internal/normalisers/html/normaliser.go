package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts an HTML document to plain text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := string(raw.Content)
	title := extractTitle(content)
	if title == "" {
		title = normalisers.TitleFromMetadataOrURI(raw)
	}

	doc := normalisers.NewDocument(raw, title, stripHTML(content), "html")
	return &driven.NormaliseResult{Document: doc}, nil
}

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedBlocks = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)\b[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags     = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|ul|ol|blockquote|pre|table|section|article|header|footer|main|nav)(\s[^>]*)?>`)
	lineTags      = regexp.MustCompile(`(?i)<(li|tr|dt|dd)(\s[^>]*)?>|<br\s*/?>`)
	cellEnd       = regexp.MustCompile(`(?i)</t[dh]>`)
	hrTags        = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// extractTitle returns the decoded <title> text, or "".
func extractTitle(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// stripHTML returns the readable text of content. Paragraphs are separated
// by one blank line and list items or table rows by a newline.
func stripHTML(content string) string {
	content = droppedBlocks.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = hrTags.ReplaceAllString(content, "\n\n")
	content = blockTags.ReplaceAllString(content, "\n\n")
	content = lineTags.ReplaceAllString(content, "\n")
	content = cellEnd.ReplaceAllString(content, " ")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var b strings.Builder
	blank := true
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}
