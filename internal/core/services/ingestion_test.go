package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/loader/filesystem"
	"github.com/custodia-labs/docchat/internal/normalisers"
	"github.com/custodia-labs/docchat/internal/normalisers/plaintext"
	"github.com/custodia-labs/docchat/internal/postprocessors"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
	"github.com/custodia-labs/docchat/internal/postprocessors/sanitizer"
)

const testDim = 8

type ingestFixture struct {
	embedder *mockEmbedder
	store    *mockStore
	svc      *IngestionService
	tempDir  string
}

func newIngestFixture(t *testing.T, opts IngestOptions, chunkOpts ...chunker.Option) *ingestFixture {
	t.Helper()
	if len(chunkOpts) == 0 {
		chunkOpts = []chunker.Option{chunker.WithChunkSize(300), chunker.WithOverlap(20)}
	}
	c, err := chunker.New(chunkOpts...)
	require.NoError(t, err)

	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}

	f := &ingestFixture{
		embedder: newMockEmbedder(testDim),
		store:    newMockStore(testDim),
		tempDir:  opts.TempDir,
	}
	registry := normalisers.NewRegistry(plaintext.New())
	loader := filesystem.New(filesystem.WithFilter(registry.Supports))
	pipeline := postprocessors.NewPipeline(sanitizer.New(), c)

	f.svc = NewIngestionService(loader, registry, pipeline, f.embedder, f.store, opts)
	return f
}

func doc(source, content string) domain.Document {
	return domain.Document{
		ID:       source,
		URI:      source,
		Content:  content,
		Metadata: map[string]string{domain.MetaSource: source},
	}
}

func TestIngest_ShortDocumentIsOneChunk(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	text := "Hello world. This is a test document to verify splitting."

	report, err := f.svc.Ingest(context.Background(), []domain.Document{doc("docs/test.txt", text)})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, []string{"docs/test.txt"}, report.Succeeded)

	require.Len(t, f.embedder.batches, 1, "one embed call")
	assert.Equal(t, []string{text}, f.embedder.batches[0])

	require.Len(t, f.store.upsertCalls, 1, "one upsert call")
	require.Len(t, f.store.upsertCalls[0], 1)
	record := f.store.upsertCalls[0][0]
	assert.Equal(t, text, record.Chunk.Content)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "docs/test.txt", record.Chunk.Metadata[domain.MetaSource])
	assert.Equal(t, testDim, record.Embedding.Dim())
}

func TestIngest_NullBytesNeverStored(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	_, err := f.svc.Ingest(context.Background(), []domain.Document{doc("n.txt", "before\x00after")})

	require.NoError(t, err)
	stored := f.store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "beforeafter", stored[0].Chunk.Content)
	assert.NotContains(t, stored[0].Chunk.Content, "\x00")
}

func TestIngest_FailureIsPerDocument(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{Concurrency: 3})
	f.embedder.failOn = "poison"

	docs := []domain.Document{
		doc("a.txt", "first document"),
		doc("b.txt", "poison document"),
		doc("c.txt", "third document"),
	}

	report, err := f.svc.Ingest(context.Background(), docs)

	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"a.txt", "c.txt"}, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b.txt", report.Failures[0].Source)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrEmbeddingService)

	var sources []string
	for _, r := range f.store.stored() {
		sources = append(sources, r.Chunk.Metadata[domain.MetaSource])
	}
	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, sources)
}

func TestIngest_DimensionMismatchIsFatal(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.store.dim = 768
	f.embedder.dim = 384

	report, err := f.svc.Ingest(context.Background(), []domain.Document{doc("a.txt", "some text")})

	var dimErr *domain.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 768, dimErr.Expected)
	assert.Equal(t, 384, dimErr.Actual)
	assert.Empty(t, f.store.stored(), "no row written")
	require.NotNil(t, report)
	assert.Len(t, report.Failures, 1)
}

func TestIngest_EmptyTextPolicy(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{EmptyTextPolicy: domain.EmptyTextSkip})

		report, err := f.svc.Ingest(context.Background(), []domain.Document{doc("empty.txt", " \n\x00 ")})

		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, []string{"empty.txt"}, report.Skipped)
		assert.Zero(t, f.embedder.batchCount())
	})

	t.Run("fail", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{EmptyTextPolicy: domain.EmptyTextFail})

		report, err := f.svc.Ingest(context.Background(), []domain.Document{doc("empty.txt", "")})

		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		assert.ErrorIs(t, report.Failures[0].Err, domain.ErrLoad)
		assert.ErrorIs(t, report.Failures[0].Err, domain.ErrEmptyContent)
	})
}

func TestIngest_EmbedBatchSize(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{EmbedBatchSize: 2},
		chunker.WithChunkSize(10), chunker.WithOverlap(0))

	report, err := f.svc.Ingest(context.Background(), []domain.Document{doc("a.txt", strings.Repeat("x", 45))})

	require.NoError(t, err)
	assert.Equal(t, 5, report.Chunks)
	assert.Equal(t, 3, f.embedder.batchCount())
	require.Len(t, f.store.upsertCalls, 1, "chunks of one document are stored together")

	var positions []int
	for _, r := range f.store.upsertCalls[0] {
		positions = append(positions, r.Chunk.Position)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, positions)
}

func TestIngest_VectorStoreFailureReported(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.store.upsertErr = func(records []domain.VectorRecord) error {
		if records[0].Chunk.Metadata[domain.MetaSource] != "bad.txt" {
			return nil
		}
		return &domain.VectorStoreError{
			Op:     "upsert",
			Failed: []string{records[0].ID},
			Err:    errors.New("connection reset"),
		}
	}

	report, err := f.svc.Ingest(context.Background(), []domain.Document{
		doc("good.txt", "fine"),
		doc("bad.txt", "broken"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"good.txt"}, report.Succeeded)
	require.Len(t, report.Failures, 1)

	var storeErr *domain.VectorStoreError
	require.True(t, errors.As(report.Failures[0].Err, &storeErr))
	assert.Len(t, storeErr.Failed, 1)
}

func TestIngestOne(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.embedder.failOn = "bad"

	require.NoError(t, f.svc.IngestOne(context.Background(), doc("ok.txt", "good text")))

	err := f.svc.IngestOne(context.Background(), doc("bad.txt", "bad text"))
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestIngestDirectory(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("first file"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.txt"), []byte("second file"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0644))

	report, err := f.svc.IngestDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Documents, "unsupported files are not counted")
	assert.Len(t, report.Succeeded, 2)
	assert.Len(t, f.store.stored(), 2)
}

func TestIngestDirectory_MissingPath(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	_, err := f.svc.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestFile(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("watched file body"), 0644))

	report, err := f.svc.IngestFile(context.Background(), path)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Documents)
	require.Len(t, f.store.stored(), 1)
	assert.Equal(t, "watched file body", f.store.stored()[0].Chunk.Content)

	report, err = f.svc.IngestFile(context.Background(), filepath.Join(dir, "gone.txt"))

	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrLoad)
}

func TestIngestFile_SameFileTwiceKeepsOneRecordSet(t *testing.T) {
	store, err := memory.New(testDim)
	require.NoError(t, err)
	c, err := chunker.New(chunker.WithChunkSize(40), chunker.WithOverlap(5))
	require.NoError(t, err)
	registry := normalisers.NewRegistry(plaintext.New())
	svc := NewIngestionService(
		filesystem.New(filesystem.WithFilter(registry.Supports)),
		registry,
		postprocessors.NewPipeline(sanitizer.New(), c),
		newMockEmbedder(testDim),
		store,
		IngestOptions{TempDir: t.TempDir()},
	)

	path := filepath.Join(t.TempDir(), "notes.txt")
	body := "First paragraph of notes.\n\nSecond paragraph with more words in it."
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	first, err := svc.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 1)

	second, err := svc.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, second.Chunks)

	assert.Equal(t, first.Chunks, store.Len(), "re-ingesting an unchanged file must not add records")
}

func TestRecordID(t *testing.T) {
	chunk := domain.Chunk{Content: "same text", Offset: 10}

	assert.Equal(t, recordID("a.txt", chunk), recordID("a.txt", chunk))
	assert.NotEqual(t, recordID("a.txt", chunk), recordID("b.txt", chunk))
	assert.NotEqual(t, recordID("a.txt", chunk), recordID("a.txt", domain.Chunk{Content: "same text", Offset: 11}))
	assert.NotEqual(t, recordID("a.txt", chunk), recordID("a.txt", domain.Chunk{Content: "other text", Offset: 10}))

	_, err := uuid.Parse(recordID("a.txt", chunk))
	assert.NoError(t, err)
}

func TestIngestUpload(t *testing.T) {
	t.Run("stores under the upload name and removes the temp file", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})

		report, err := f.svc.IngestUpload(context.Background(), "manual.txt", strings.NewReader("upload body"))

		require.NoError(t, err)
		assert.Equal(t, []string{"manual.txt"}, report.Succeeded)
		stored := f.store.stored()
		require.Len(t, stored, 1)
		assert.Equal(t, "manual.txt", stored[0].Chunk.Metadata[domain.MetaSource])

		entries, err := os.ReadDir(f.tempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("removes the temp file on failure", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})
		f.embedder.failOn = "body"

		report, err := f.svc.IngestUpload(context.Background(), "manual.txt", strings.NewReader("upload body"))

		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "manual.txt", report.Failures[0].Source)

		entries, err := os.ReadDir(f.tempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unsupported type is a load failure", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})

		report, err := f.svc.IngestUpload(context.Background(), "photo.png", strings.NewReader("png"))

		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		assert.ErrorIs(t, report.Failures[0].Err, domain.ErrLoad)
		assert.ErrorIs(t, report.Failures[0].Err, domain.ErrUnsupportedType)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})

		_, err := f.svc.IngestUpload(context.Background(), "  ", strings.NewReader("x"))

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("read failure", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})

		_, err := f.svc.IngestUpload(context.Background(), "a.txt", failingReader{})

		require.Error(t, err)
		entries, _ := os.ReadDir(f.tempDir)
		assert.Empty(t, entries)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }
