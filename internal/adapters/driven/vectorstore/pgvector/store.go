// Package pgvector provides a VectorStore backed by PostgreSQL with the
// pgvector extension.
//
// Records live in a single table:
//
//	embedding_id UUID PRIMARY KEY
//	embedding    vector(D)
//	text         TEXT
//	metadata     JSONB
//
// Similarity is cosine relevance computed in SQL as (2 - (a <=> b)) / 2.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultBatchSize    = 100
	DefaultQueryTimeout = 10 * time.Second
)

// Config holds connection and schema settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SSLMode is passed to libpq (default: disable).
	SSLMode string

	// Table must already be validated as a plain identifier.
	Table string

	// Dimension is the fixed vector size of the embedding column.
	Dimension int

	// BatchSize is the number of records per transaction (default: 100).
	BatchSize int

	// QueryTimeout bounds every statement (default: 10s).
	QueryTimeout time.Duration
}

// DSN returns the connection string for lib/pq.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return u.String()
}

// Store persists vector records in PostgreSQL.
type Store struct {
	db           *sql.DB
	table        string
	dimension    int
	batchSize    int
	queryTimeout time.Duration
}

// Open connects to PostgreSQL and prepares the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrVectorStoreUnavailable, err)
	}
	s, err := New(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New prepares the schema on an existing connection pool. It creates the
// vector extension and table when missing, then checks that the embedding
// column's declared dimension matches cfg.Dimension.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("%w: table name is required", domain.ErrInvalidInput)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, cfg.Dimension)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	s := &Store{
		db:           db,
		table:        pq.QuoteIdentifier(cfg.Table),
		dimension:    cfg.Dimension,
		batchSize:    cfg.BatchSize,
		queryTimeout: cfg.QueryTimeout,
	}

	logger.Section("pgvector")
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		embedding_id UUID PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		text TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb
	)`, s.table, s.dimension)
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}

	// pgvector stores the declared dimension as the column's typmod.
	var typmod int
	err := s.db.QueryRowContext(ctx, `
		SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = $1::regclass AND a.attname = 'embedding' AND NOT a.attisdropped`,
		s.table).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("reading dimension of %s: %w", s.table, err)
	}

	switch {
	case typmod <= 0:
		logger.Warn("pgvector: column %s.embedding has no declared dimension", s.table)
	case typmod != s.dimension:
		return &domain.DimensionMismatchError{Expected: typmod, Actual: s.dimension}
	}
	logger.Debug("pgvector: table %s ready (dimension %d)", s.table, s.dimension)
	return nil
}

// UpsertAll writes records in transactions of batchSize. On failure the
// returned *domain.VectorStoreError lists the committed and failed IDs.
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
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (embedding_id, embedding, text, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (embedding_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata`, s.table)

	for _, r := range batch {
		metadata, err := encodeMetadata(r.Chunk)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, r.ID, pgvector.NewVector(r.Embedding), r.Chunk.Content, metadata); err != nil {
			return fmt.Errorf("inserting %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SimilaritySearch returns the nearest chunks by cosine distance.
func (s *Store) SimilaritySearch(
	ctx context.Context, query domain.Embedding, maxResults int, minScore float64,
) ([]domain.ScoredChunk, error) {
	if err := vectorstore.CheckQuery(query, s.dimension); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT embedding_id, text, metadata, embedding <=> $1 AS distance
		FROM %s
		WHERE (2 - (embedding <=> $1)) / 2 >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.table)

	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(query), minScore, maxResults)
	if err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Err: err}
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var (
			id       string
			text     string
			metadata []byte
			distance float64
		)
		if err := rows.Scan(&id, &text, &metadata, &distance); err != nil {
			return nil, &domain.VectorStoreError{Op: "search", Err: fmt.Errorf("scanning row: %w", err)}
		}
		chunk, err := decodeChunk(id, text, metadata)
		if err != nil {
			return nil, &domain.VectorStoreError{Op: "search", Err: err}
		}
		results = append(results, domain.ScoredChunk{
			Chunk: chunk,
			Score: vectorstore.FromCosineDistance(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Err: err}
	}

	// Re-apply the bounds on the clamped scores.
	return vectorstore.Rank(results, maxResults, minScore), nil
}

// Dimension returns the fixed vector size.
func (s *Store) Dimension() int {
	return s.dimension
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeMetadata stores the chunk's metadata plus its structural fields.
func encodeMetadata(c domain.Chunk) ([]byte, error) {
	md := make(map[string]string, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		md[k] = v
	}
	md[domain.MetaDocumentID] = c.DocumentID
	md[domain.MetaIndex] = strconv.Itoa(c.Position)
	md[domain.MetaOffset] = strconv.Itoa(c.Offset)
	return json.Marshal(md)
}

func decodeChunk(id, text string, raw []byte) (domain.Chunk, error) {
	chunk := domain.Chunk{ID: id, Content: text}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &chunk.Metadata); err != nil {
			return chunk, fmt.Errorf("decoding metadata of %s: %w", id, err)
		}
	}
	if chunk.Metadata == nil {
		chunk.Metadata = map[string]string{}
	}
	chunk.DocumentID = chunk.Metadata[domain.MetaDocumentID]
	chunk.Position = atoi(chunk.Metadata[domain.MetaIndex])
	chunk.Offset = atoi(chunk.Metadata[domain.MetaOffset])
	return chunk, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
