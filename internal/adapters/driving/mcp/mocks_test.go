package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	exchange *domain.ChatExchange
	err      error
	asked    string
}

func (m *mockChatService) Chat(ctx context.Context, question string) (string, error) {
	ex, err := m.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return ex.Answer, nil
}

func (m *mockChatService) Ask(_ context.Context, question string) (*domain.ChatExchange, error) {
	m.asked = question
	return m.exchange, m.err
}

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	result *domain.RetrievedContext
	err    error
}

func (m *mockRetriever) Retrieve(_ context.Context, query string) (*domain.RetrievedContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievedContext{Query: query}, nil
	}
	return m.result, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	report *domain.IngestReport
	err    error
	path   string
}

func (m *mockIngestionService) Ingest(context.Context, []domain.Document) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestionService) IngestOne(context.Context, domain.Document) error {
	return m.err
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, path string) (*domain.IngestReport, error) {
	m.path = path
	return m.report, m.err
}

func (m *mockIngestionService) IngestUpload(context.Context, string, io.Reader) (*domain.IngestReport, error) {
	return m.report, m.err
}

// mockJobs is a mock implementation of driving.IngestJobs.
type mockJobs struct {
	jobs    []domain.IngestJob
	started string
}

func (m *mockJobs) Start(path string) (*domain.IngestJob, error) {
	m.started = path
	job := domain.IngestJob{ID: "job-1", Path: path, State: domain.JobPending}
	m.jobs = append(m.jobs, job)
	return &job, nil
}

func (m *mockJobs) Get(id string) (*domain.IngestJob, error) {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			job := m.jobs[i]
			return &job, nil
		}
	}
	return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
}

func (m *mockJobs) List() []domain.IngestJob {
	return m.jobs
}
