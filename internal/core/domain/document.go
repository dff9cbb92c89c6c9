package domain

import "strconv"

// Well-known metadata keys.
const (
	// MetaSource holds the file path or upload name a document came from.
	MetaSource = "source"

	// MetaMIMEType holds the detected content type.
	MetaMIMEType = "mime_type"

	// MetaTitle holds a human-readable title.
	MetaTitle = "title"

	// MetaIndex holds a chunk's position within its document.
	MetaIndex = "index"

	// MetaOffset holds a chunk's rune offset into the sanitized text.
	MetaOffset = "offset"

	// MetaDocumentID links a chunk back to its document.
	MetaDocumentID = "document_id"
)

// Document is a loaded document ready for chunking.
// Documents are transient and never persisted directly.
type Document struct {
	// ID is a unique identifier assigned at load time.
	ID string

	// URI is the original location (file path or upload name).
	URI string

	// Title is the human-readable name.
	Title string

	// Content is the extracted text. Sanitisation rewrites it in place.
	Content string

	// Metadata is inherited by every chunk derived from this document.
	Metadata map[string]string
}

// Source returns the document's source metadata, falling back to its URI.
func (d *Document) Source() string {
	if d.Metadata != nil {
		if s := d.Metadata[MetaSource]; s != "" {
			return s
		}
	}
	return d.URI
}

// Chunk is a searchable unit within a document.
// Chunks are the unit of embedding and storage.
type Chunk struct {
	// ID is a unique identifier.
	ID string

	// DocumentID links to the parent document.
	DocumentID string

	// Content is the chunk text.
	Content string

	// Position is the chunk's index within the document.
	Position int

	// Offset is the rune offset of the chunk start in the sanitized document text.
	Offset int

	// Metadata is the parent's metadata plus chunk-local fields.
	Metadata map[string]string
}

// NewChunkMetadata copies parent metadata and adds the chunk-local fields.
func NewChunkMetadata(parent map[string]string, documentID string, index, offset int) map[string]string {
	md := make(map[string]string, len(parent)+3)
	for k, v := range parent {
		md[k] = v
	}
	md[MetaDocumentID] = documentID
	md[MetaIndex] = strconv.Itoa(index)
	md[MetaOffset] = strconv.Itoa(offset)
	return md
}

// Embedding is a fixed-length vector produced by an embedding model.
type Embedding []float32

// Dim returns the number of components.
func (e Embedding) Dim() int {
	return len(e)
}

// VectorRecord is the atomic unit of vector-store persistence.
// Records are created by the ingestion pipeline and never mutated.
type VectorRecord struct {
	// ID uniquely identifies the record in the store.
	ID string

	// Embedding is the chunk's vector.
	Embedding Embedding

	// Chunk is the embedded text segment.
	Chunk Chunk
}
