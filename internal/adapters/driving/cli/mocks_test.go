package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

type mockIngestion struct {
	path   string
	report *domain.IngestReport
	err    error
}

func (m *mockIngestion) Ingest(context.Context, []domain.Document) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

func (m *mockIngestion) IngestOne(context.Context, domain.Document) error {
	return nil
}

func (m *mockIngestion) IngestDirectory(_ context.Context, path string) (*domain.IngestReport, error) {
	m.path = path
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.IngestReport{}, nil
	}
	return m.report, nil
}

func (m *mockIngestion) IngestUpload(context.Context, string, io.Reader) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

type mockChat struct {
	questions []string
	exchange  func(question string) *domain.ChatExchange
	err       error
}

func (m *mockChat) Chat(ctx context.Context, question string) (string, error) {
	ex, err := m.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return ex.Answer, nil
}

func (m *mockChat) Ask(_ context.Context, question string) (*domain.ChatExchange, error) {
	m.questions = append(m.questions, question)
	if m.err != nil {
		return nil, m.err
	}
	if m.exchange != nil {
		return m.exchange(question), nil
	}
	return &domain.ChatExchange{Question: question, Answer: "answer to " + question}, nil
}

// execute runs the root command with svc injected and returns what was
// written to stdout and stderr.
func execute(t *testing.T, svc *Services, stdin string, args ...string) (string, string, error) {
	t.Helper()

	SetServices(svc)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		SetServices(nil)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		ingestJSON = false
		chatSources = false
		cfgFile = ""
		verbose = false
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
