package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// DocumentLoader reads raw documents from local storage.
type DocumentLoader interface {
	// LoadDirectory reads every supported file under root.
	// Files that cannot be read are returned as *domain.LoadError values
	// alongside the documents that could; the error return is reserved for
	// failures that prevent the walk altogether.
	LoadDirectory(ctx context.Context, root string) ([]domain.RawDocument, []error, error)

	// LoadFile reads a single file. Failures are *domain.LoadError.
	LoadFile(ctx context.Context, path string) (*domain.RawDocument, error)
}
