package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Metadata keys set on every loaded document.
const (
	MetaFileName  = "file_name"
	MetaDirectory = "absolute_directory_path"
	MetaSize      = "size"
)

// DefaultMaxFileSize bounds how much of a single file is read.
const DefaultMaxFileSize int64 = 64 << 20

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader reads documents from the local filesystem.
type Loader struct {
	supports      func(mimeType string) bool
	maxFileSize   int64
	includeHidden bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithFilter restricts loading to MIME types for which supports returns true.
func WithFilter(supports func(mimeType string) bool) Option {
	return func(l *Loader) {
		l.supports = supports
	}
}

// WithMaxFileSize sets the largest file that will be read.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) {
		l.maxFileSize = n
	}
}

// WithHidden includes dot-files and dot-directories.
func WithHidden(include bool) Option {
	return func(l *Loader) {
		l.includeHidden = include
	}
}

// New creates a filesystem loader.
func New(opts ...Option) *Loader {
	l := &Loader{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDirectory reads every supported, non-hidden file under root.
func (l *Loader) LoadDirectory(ctx context.Context, root string) ([]domain.RawDocument, []error, error) {
	absRoot, err := checkRoot(root)
	if err != nil {
		return nil, nil, err
	}

	logger.Section("Loading " + absRoot)

	var (
		docs     []domain.RawDocument
		failures []error
	)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			failures = append(failures, &domain.LoadError{Source: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != absRoot && l.skip(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		mimeType := detectMIMEType(path)
		if l.supports != nil && !l.supports(mimeType) {
			logger.Debug("skipping %s: unsupported type %s", path, mimeType)
			return nil
		}

		doc, err := l.read(path, mimeType)
		if err != nil {
			failures = append(failures, err)
			return nil
		}
		logger.Debug("loaded %s (%s, %d bytes)", path, mimeType, len(doc.Content))
		docs = append(docs, *doc)
		return nil
	})
	if walkErr != nil {
		return docs, failures, walkErr
	}

	return docs, failures, nil
}

// LoadFile reads a single file regardless of the MIME filter.
func (l *Loader) LoadFile(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}
	return l.read(abs, detectMIMEType(abs))
}

func (l *Loader) read(path, mimeType string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.LoadError{Source: path, Err: fmt.Errorf("%w: is a directory", domain.ErrInvalidInput)}
	}
	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, &domain.LoadError{
			Source: path,
			Err:    fmt.Errorf("%w: file is %d bytes, limit is %d", domain.ErrInvalidInput, info.Size(), l.maxFileSize),
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}

	return &domain.RawDocument{
		URI:      path,
		MIMEType: mimeType,
		Content:  content,
		Metadata: map[string]string{
			domain.MetaSource: path,
			MetaFileName:      filepath.Base(path),
			MetaDirectory:     filepath.Dir(path),
			MetaSize:          strconv.FormatInt(info.Size(), 10),
		},
	}, nil
}

// checkRoot resolves root and confirms it is an existing directory.
func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &domain.LoadError{Source: root, Err: err}
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &domain.LoadError{Source: root, Err: fmt.Errorf("%w: root path does not exist", domain.ErrNotFound)}
	}
	if err != nil {
		return "", &domain.LoadError{Source: root, Err: err}
	}
	if !info.IsDir() {
		return "", &domain.LoadError{Source: root, Err: fmt.Errorf("%w: root path is not a directory", domain.ErrInvalidInput)}
	}
	return abs, nil
}

func (l *Loader) skip(name string) bool {
	return !l.includeHidden && isHidden(name)
}

// isHidden reports whether a file or directory name starts with a dot.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// extensionTypes covers formats the mime package does not know everywhere.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".java":     "text/x-java",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".pdf":      "application/pdf",
}

// detectMIMEType returns the MIME type for a path from its extension.
// Files without an extension are treated as plain text.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return "application/octet-stream"
}
