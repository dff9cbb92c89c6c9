package normalisers

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// NewDocument builds a normalised document from raw input. Raw metadata is
// copied, and source, mime_type, format and title are filled in.
func NewDocument(raw *domain.RawDocument, title, content, format string) domain.Document {
	md := make(map[string]string, len(raw.Metadata)+4)
	for k, v := range raw.Metadata {
		md[k] = v
	}
	if md[domain.MetaSource] == "" {
		md[domain.MetaSource] = raw.URI
	}
	md[domain.MetaMIMEType] = raw.MIMEType
	md[domain.MetaTitle] = title
	if format != "" {
		md["format"] = format
	}

	return domain.Document{
		ID:       uuid.New().String(),
		URI:      raw.URI,
		Title:    title,
		Content:  content,
		Metadata: md,
	}
}

// TitleFromMetadataOrURI prefers a title set by the loader, then the file name.
func TitleFromMetadataOrURI(raw *domain.RawDocument) string {
	if t := raw.MetadataValue(domain.MetaTitle); t != "" {
		return t
	}
	return TitleFromURI(raw.URI)
}

// TitleFromURI derives a human-readable title from a path.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
