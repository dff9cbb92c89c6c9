package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestOptions tunes the ingestion pipeline.
type IngestOptions struct {
	// EmbedBatchSize caps the chunks sent per EmbedBatch call.
	// Zero embeds each document in a single call.
	EmbedBatchSize int

	// Concurrency is the number of documents processed at once.
	Concurrency int

	// EmptyTextPolicy decides what happens to documents without text.
	EmptyTextPolicy domain.EmptyTextPolicy

	// TempDir holds materialised uploads. Empty means os.TempDir().
	TempDir string
}

// IngestionService turns documents into vector records:
// sanitise and chunk, embed, then upsert.
type IngestionService struct {
	loader   driven.DocumentLoader
	registry driven.NormaliserRegistry
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	store    driven.VectorStore
	opts     IngestOptions
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	loader driven.DocumentLoader,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	opts IngestOptions,
) *IngestionService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if !opts.EmptyTextPolicy.IsValid() {
		opts.EmptyTextPolicy = domain.EmptyTextSkip
	}
	return &IngestionService{
		loader:   loader,
		registry: registry,
		pipeline: pipeline,
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// outcome is the result of processing one document.
type outcome struct {
	source  string
	chunks  int
	skipped bool
	err     error
}

// Ingest processes docs independently. Failures are reported per document;
// the error return is only used for fatal errors such as a dimension
// mismatch, which stop the batch.
func (s *IngestionService) Ingest(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	logger.Section("Ingestion")
	start := time.Now()

	outcomes := make([]outcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i := range docs {
		g.Go(func() error {
			doc := docs[i]
			out := outcome{source: doc.Source()}
			out.chunks, out.skipped, out.err = s.processDocument(gctx, &doc)
			outcomes[i] = out

			if domain.IsFatal(out.err) {
				return out.err
			}
			return nil
		})
	}
	fatal := g.Wait()

	report := &domain.IngestReport{Documents: len(docs)}
	for _, out := range outcomes {
		switch {
		case out.err != nil:
			logger.Warn("ingest %s failed: %v", out.source, out.err)
			report.Failures = append(report.Failures, domain.DocumentFailure{Source: out.source, Err: out.err})
		case out.skipped:
			report.Skipped = append(report.Skipped, out.source)
		default:
			report.Chunks += out.chunks
			report.Succeeded = append(report.Succeeded, out.source)
		}
	}
	report.Duration = time.Since(start)

	logger.Info("ingested %d/%d documents, %d chunks, %d skipped, %d failed in %s",
		len(report.Succeeded), report.Documents, report.Chunks,
		len(report.Skipped), len(report.Failures), report.Duration.Round(time.Millisecond))

	if fatal != nil {
		return report, fatal
	}
	return report, nil
}

// IngestOne processes a single document and returns its failure, if any.
func (s *IngestionService) IngestOne(ctx context.Context, doc domain.Document) error {
	report, err := s.Ingest(ctx, []domain.Document{doc})
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return report.Failures[0].Err
	}
	return nil
}

// IngestDirectory loads every supported file under path and ingests it.
// Files that cannot be read or normalised are reported as LoadErrors.
func (s *IngestionService) IngestDirectory(ctx context.Context, path string) (*domain.IngestReport, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("%w: no document loader configured", domain.ErrInvalidInput)
	}
	logger.Debug("ingesting directory %s", path)

	raws, loadFailures, err := s.loader.LoadDirectory(ctx, path)
	if err != nil {
		return nil, err
	}

	docs, failures := s.normalise(ctx, raws)
	for _, lf := range loadFailures {
		failures = append(failures, domain.DocumentFailure{Source: loadSource(lf), Err: lf})
	}

	report, err := s.Ingest(ctx, docs)
	if report != nil {
		report.Documents += len(failures)
		report.Failures = append(report.Failures, failures...)
	}
	return report, err
}

// IngestUpload writes r to a temporary file, ingests it under filename and
// removes the file whether or not ingestion succeeded.
func (s *IngestionService) IngestUpload(ctx context.Context, filename string, r io.Reader) (*domain.IngestReport, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: upload needs a file name", domain.ErrInvalidInput)
	}
	if s.loader == nil {
		return nil, fmt.Errorf("%w: no document loader configured", domain.ErrInvalidInput)
	}

	tmpPath, err := s.materialise(name, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("remove upload %s: %v", tmpPath, err)
		}
	}()

	raw, err := s.loader.LoadFile(ctx, tmpPath)
	if err != nil {
		return singleFailure(name, err), nil
	}
	if raw.Metadata == nil {
		raw.Metadata = make(map[string]string)
	}
	raw.Metadata[domain.MetaSource] = name
	if raw.Metadata[domain.MetaTitle] == "" {
		raw.Metadata[domain.MetaTitle] = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return s.ingestRaw(ctx, raw)
}

// IngestFile loads and ingests one file, such as a path reported by the
// directory watcher.
func (s *IngestionService) IngestFile(ctx context.Context, path string) (*domain.IngestReport, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("%w: no document loader configured", domain.ErrInvalidInput)
	}

	raw, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		return singleFailure(path, err), nil
	}
	return s.ingestRaw(ctx, raw)
}

func (s *IngestionService) ingestRaw(ctx context.Context, raw *domain.RawDocument) (*domain.IngestReport, error) {
	docs, failures := s.normalise(ctx, []domain.RawDocument{*raw})
	report, err := s.Ingest(ctx, docs)
	if report != nil {
		report.Documents += len(failures)
		report.Failures = append(report.Failures, failures...)
	}
	return report, err
}

func singleFailure(source string, err error) *domain.IngestReport {
	return &domain.IngestReport{
		Documents: 1,
		Failures:  []domain.DocumentFailure{{Source: source, Err: err}},
	}
}

// materialise copies r into a new temporary file that keeps name's extension.
func (s *IngestionService) materialise(name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.opts.TempDir, "docchat-upload-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// normalise converts raw documents, reporting each failure as a LoadError.
func (s *IngestionService) normalise(ctx context.Context, raws []domain.RawDocument) ([]domain.Document, []domain.DocumentFailure) {
	docs := make([]domain.Document, 0, len(raws))
	var failures []domain.DocumentFailure

	for i := range raws {
		raw := &raws[i]
		source := raw.MetadataValue(domain.MetaSource)
		if source == "" {
			source = raw.URI
		}

		result, err := s.registry.Normalise(ctx, raw)
		if err != nil {
			failures = append(failures, domain.DocumentFailure{
				Source: source,
				Err:    &domain.LoadError{Source: source, Err: err},
			})
			continue
		}
		docs = append(docs, result.Document)
	}
	return docs, failures
}

// processDocument runs one document through the pipeline. It returns the
// number of committed chunks, or skipped=true under the skip policy.
func (s *IngestionService) processDocument(ctx context.Context, doc *domain.Document) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	source := doc.Source()

	// 1. SANITISE + CHUNK
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return 0, false, &domain.LoadError{Source: source, Err: err}
	}

	// 2. EMPTY TEXT POLICY
	if strings.TrimSpace(doc.Content) == "" || len(chunks) == 0 {
		if s.opts.EmptyTextPolicy == domain.EmptyTextFail {
			return 0, false, &domain.LoadError{Source: source, Err: domain.ErrEmptyContent}
		}
		logger.Debug("skipping %s: no text", source)
		return 0, true, nil
	}

	// 3. EMBED
	embeddings, err := s.embed(ctx, chunks)
	if err != nil {
		return 0, false, err
	}

	// 4. STORE
	records := make([]domain.VectorRecord, len(chunks))
	for i := range chunks {
		chunks[i].ID = recordID(source, chunks[i])
		records[i] = domain.VectorRecord{ID: chunks[i].ID, Embedding: embeddings[i], Chunk: chunks[i]}
	}
	if err := s.store.UpsertAll(ctx, records); err != nil {
		return 0, false, err
	}

	logger.Debug("stored %s: %d chunks", source, len(records))
	return len(records), false, nil
}

// recordNamespace scopes the name-based record ids.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/custodia-labs/docchat/vector-record"))

// recordID derives a stable record id from the chunk's source, offset and
// text. Ingesting the same unchanged file again yields the same ids, so the
// store's upsert replaces records instead of appending duplicates.
func recordID(source string, c domain.Chunk) string {
	name := source + "\x00" + strconv.Itoa(c.Offset) + "\x00" + c.Content
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// embed embeds chunk texts in order, in batches of EmbedBatchSize.
func (s *IngestionService) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.Embedding, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	size := s.opts.EmbedBatchSize
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}

	out := make([]domain.Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, &domain.EmbeddingServiceError{
				Op:  "embed batch",
				Err: fmt.Errorf("got %d embeddings for %d texts", len(batch), end-start),
			}
		}
		out = append(out, batch...)
	}
	return out, nil
}

// loadSource extracts the file path from a loader failure.
func loadSource(err error) string {
	var le *domain.LoadError
	if errors.As(err, &le) {
		return le.Source
	}
	return err.Error()
}
