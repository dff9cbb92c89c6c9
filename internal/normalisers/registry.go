package normalisers

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw documents to the best normaliser for their MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry with the given normalisers.
func NewRegistry(ns ...driven.Normaliser) *Registry {
	r := &Registry{}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser. Normalisers are kept sorted by priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise picks a normaliser by MIME type: exact match first, then the
// "type/*" wildcard, then "*/*". Parameters such as charset are ignored.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

// Supports reports whether some normaliser handles mimeType.
func (r *Registry) Supports(mimeType string) bool {
	return r.lookup(mimeType) != nil
}

// SupportedMIMETypes returns all MIME types that can be normalised, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) lookup(mimeType string) driven.Normaliser {
	base := mimeType
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		base = mt
	}
	base = strings.ToLower(base)

	candidates := []string{base}
	if i := strings.IndexByte(base, '/'); i > 0 {
		candidates = append(candidates, base[:i]+"/*")
	}
	candidates = append(candidates, "*/*")

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, want := range candidates {
		for _, n := range r.normalisers {
			for _, t := range n.SupportedMIMETypes() {
				if t == want {
					return n
				}
			}
		}
	}
	return nil
}
