package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// mockEmbedder returns deterministic vectors and records every batch.
type mockEmbedder struct {
	dim int

	// failOn makes any batch containing this substring fail.
	failOn string

	mu      sync.Mutex
	batches [][]string
	queries []string
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{dim: dim}
}

func (m *mockEmbedder) vector(text string) domain.Embedding {
	v := make(domain.Embedding, m.dim)
	for i := range v {
		v[i] = float32(len(text)%7+i) / 10
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.Embedding, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, &domain.EmbeddingServiceError{Op: "embed", Err: errors.New("connection refused")}
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([]domain.Embedding, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, &domain.EmbeddingServiceError{Op: "embed batch", Timeout: true, Err: context.DeadlineExceeded}
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockEmbedder) Dimensions() int              { return m.dim }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockStore keeps records in memory and checks dimensions like a real store.
type mockStore struct {
	dim int

	// upsertErr, when set, decides the failure for a batch.
	upsertErr func(records []domain.VectorRecord) error

	// results are returned by SimilaritySearch, filtered and truncated.
	results   []domain.ScoredChunk
	searchErr error

	mu          sync.Mutex
	records     []domain.VectorRecord
	upsertCalls [][]domain.VectorRecord
	searches    int
	lastLimit   int
	lastMin     float64
}

func newMockStore(dim int) *mockStore {
	return &mockStore{dim: dim}
}

func (m *mockStore) UpsertAll(_ context.Context, records []domain.VectorRecord) error {
	for _, r := range records {
		if r.Embedding.Dim() != m.dim {
			return &domain.DimensionMismatchError{Expected: m.dim, Actual: r.Embedding.Dim(), RecordID: r.ID}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls = append(m.upsertCalls, records)
	if m.upsertErr != nil {
		if err := m.upsertErr(records); err != nil {
			return err
		}
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockStore) SimilaritySearch(_ context.Context, _ domain.Embedding, maxResults int, minScore float64) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	m.lastLimit = maxResults
	m.lastMin = minScore
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var out []domain.ScoredChunk
	for _, r := range m.results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (m *mockStore) stored() []domain.VectorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.VectorRecord(nil), m.records...)
}

func (m *mockStore) Dimension() int               { return m.dim }
func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) Close() error                 { return nil }

// mockPrompts serves fixed templates.
type mockPrompts struct {
	err error
}

func (m *mockPrompts) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	switch name {
	case driven.PromptGroundedSystem:
		return "Answer strictly from the context. Otherwise reply only with: %s", nil
	case driven.PromptGroundedUser:
		return "Context:\n%s\n\nQuestion: %s", nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPrompts) Reload() {}

// mockLLM is a testify mock of the chat model.
type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockRetriever returns a fixed context.
type mockRetriever struct {
	context *domain.RetrievedContext
	err     error
	calls   int
}

func (m *mockRetriever) Retrieve(_ context.Context, query string) (*domain.RetrievedContext, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	rc := *m.context
	rc.Query = query
	return &rc, nil
}
