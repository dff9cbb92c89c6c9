// Package sqlite provides a local VectorStore backed by a single SQLite file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Embeddings are stored as little-endian float32 blobs and
// similarity search is a brute-force cosine scan, which suits the document
// sets of a single workstation.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. The store's dimension is recorded in store_info on
// first open; reopening with a different dimension fails with
// *domain.DimensionMismatchError.
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL mode
// with a busy timeout.
package sqlite
