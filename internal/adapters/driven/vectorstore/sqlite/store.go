package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore/sqlite/migrations"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultBatchSize is the number of records written per transaction.
const DefaultBatchSize = 100

const dimensionKey = "dimension"

// Config holds configuration for the SQLite vector store.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Dimension is the fixed vector size.
	Dimension int

	// BatchSize is the number of records per transaction (default: 100).
	BatchSize int
}

// Store persists vector records in SQLite.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
	batchSize int
}

// NewStore opens or creates the database at cfg.Path.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite store path is required", domain.ErrInvalidInput)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, cfg.Dimension)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:        db,
		path:      cfg.Path,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.checkDimension(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_vectors.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// checkDimension records the dimension on first open and compares it after.
func (s *Store) checkDimension(ctx context.Context) error {
	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_info WHERE key = ?", dimensionKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx, "INSERT INTO store_info (key, value) VALUES (?, ?)",
			dimensionKey, strconv.Itoa(s.dimension))
		if err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimension: %w", err)
	}

	existing, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt stored dimension %q: %w", stored, err)
	}
	if existing != s.dimension {
		return &domain.DimensionMismatchError{Expected: existing, Actual: s.dimension}
	}
	return nil
}

// UpsertAll writes records in transactions of batchSize.
func (s *Store) UpsertAll(ctx context.Context, records []domain.VectorRecord) error {
	if err := vectorstore.CheckDimensions(records, s.dimension); err != nil {
		return err
	}

	committed := make([]string, 0, len(records))
	for start := 0; start < len(records); start += s.batchSize {
		batch := records[start:min(start+s.batchSize, len(records))]
		if err := s.writeBatch(ctx, batch); err != nil {
			failed := make([]string, 0, len(records)-start)
			for _, r := range records[start:] {
				failed = append(failed, r.ID)
			}
			return &domain.VectorStoreError{Op: "upsert", Committed: committed, Failed: failed, Err: err}
		}
		for _, r := range batch {
			committed = append(committed, r.ID)
		}
	}
	return nil
}

func (s *Store) writeBatch(ctx context.Context, batch []domain.VectorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, document_id, position, chunk_offset, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			chunk_offset = excluded.chunk_offset,
			content = excluded.content,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		metadataJSON, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Chunk.DocumentID, r.Chunk.Position, r.Chunk.Offset,
			r.Chunk.Content, float32SliceToBytes(r.Embedding), string(metadataJSON)); err != nil {
			return fmt.Errorf("saving record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SimilaritySearch scans every stored vector and ranks by cosine relevance.
func (s *Store) SimilaritySearch(
	ctx context.Context, query domain.Embedding, maxResults int, minScore float64,
) ([]domain.ScoredChunk, error) {
	if err := vectorstore.CheckQuery(query, s.dimension); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, chunk_offset, content, embedding, metadata
		FROM vectors
	`)
	if err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Err: fmt.Errorf("querying vectors: %w", err)}
	}
	defer rows.Close()

	var candidates []domain.ScoredChunk
	for rows.Next() {
		var (
			chunk        domain.Chunk
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Offset,
			&chunk.Content, &blob, &metadataJSON); err != nil {
			return nil, &domain.VectorStoreError{Op: "search", Err: fmt.Errorf("scanning vector: %w", err)}
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, &domain.VectorStoreError{Op: "search", Err: fmt.Errorf("decoding metadata: %w", err)}
		}

		embedding := bytesToFloat32Slice(blob)
		if len(embedding) != s.dimension {
			continue
		}
		score := vectorstore.Relevance(query, embedding)
		if score < minScore {
			continue
		}
		candidates = append(candidates, domain.ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Err: err}
	}

	return vectorstore.Rank(candidates, maxResults, minScore), nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Dimension returns the fixed vector size.
func (s *Store) Dimension() int {
	return s.dimension
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
