package domain

// RawDocument represents opaque bytes read by a document loader.
// It is the loader's output before normalisation.
type RawDocument struct {
	// URI is the original location (file path or upload name).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains loader-specific key-value pairs.
	Metadata map[string]string
}

// MetadataValue returns the metadata value for key, or "" when absent.
func (r *RawDocument) MetadataValue(key string) string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
