package postprocessors

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
	"github.com/custodia-labs/docchat/internal/postprocessors/sanitizer"
)

// Processor names.
const (
	NameSanitizer = "sanitizer"
	NameChunker   = "chunker"
)

// DefaultStages is the standard ingestion pipeline: sanitize, then chunk.
var DefaultStages = []string{NameSanitizer, NameChunker}

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(NameSanitizer, buildSanitizer)
	r.Register(NameChunker, buildChunker)
}

func buildSanitizer(_ map[string]any) (driven.PostProcessor, error) {
	return sanitizer.New(), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Runes per chunk (default: 300)
//   - overlap (int): Overlapping runes between chunks (default: 20)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...)
}

// getIntFromConfig extracts an int from a generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
