// Package domain defines the core business entities for docchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Text loaded from a file or upload, plus metadata
//   - Chunk: A bounded slice of a document, the unit of embedding
//   - VectorRecord: An embedded chunk as persisted by the vector store
//   - RetrievedContext: Ranked chunks returned for one question
//   - IngestReport: Per-document outcome of an ingestion batch
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
