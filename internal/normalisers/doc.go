// Package normalisers turns raw file bytes into documents with plain text.
//
// Each sub-package knows one family of formats. The Registry picks the
// highest-priority normaliser for a MIME type and falls back to a
// wildcard ("*/*" or "text/*") normaliser when no exact match exists.
package normalisers
