package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Answer  string         `json:"answer"`
	Refused bool           `json:"refused"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput names a document that contributed context.
type SourceOutput struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"text to find relevant passages for"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// IngestInput is the input schema for the ingest_directory tool.
type IngestInput struct {
	Path  string `json:"path" jsonschema:"directory to ingest recursively"`
	Async bool   `json:"async,omitempty" jsonschema:"start a background job instead of waiting"`
}

// IngestOutput is the output schema for the ingest_directory tool.
type IngestOutput struct {
	Message   string          `json:"message"`
	JobID     string          `json:"job_id,omitempty"`
	Documents int             `json:"documents"`
	Chunks    int             `json:"chunks"`
	Succeeded []string        `json:"succeeded,omitempty"`
	Skipped   []string        `json:"skipped,omitempty"`
	Failures  []FailureOutput `json:"failures,omitempty"`
}

// FailureOutput is a document that could not be ingested.
type FailureOutput struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// registerTools registers a tool for every configured port.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Answer a question strictly from the ingested documents",
	}, s.handleChat)

	if s.ports.Retriever != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "retrieve",
			Description: "Return the stored passages most relevant to a query",
		}, s.handleRetrieve)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_directory",
			Description: "Load, chunk, embed and store every supported file under a directory",
		}, s.handleIngest)
	}
}

func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, ChatOutput{}, errors.New("question is required")
	}

	exchange, err := s.ports.Chat.Ask(ctx, input.Question)
	if err != nil {
		return nil, ChatOutput{}, err
	}

	output := ChatOutput{
		Answer:  exchange.Answer,
		Refused: exchange.Refused,
		Sources: []SourceOutput{},
	}
	if exchange.Context != nil {
		for _, sc := range exchange.Context.Chunks {
			output.Sources = append(output.Sources, SourceOutput{
				Source: sc.Chunk.Metadata[domain.MetaSource],
				Score:  sc.Score,
			})
		}
	}
	return nil, output, nil
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RetrieveOutput{}, errors.New("query is required")
	}

	rc, err := s.ports.Retriever.Retrieve(ctx, input.Query)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Passages: make([]PassageOutput, len(rc.Chunks)),
		Count:    len(rc.Chunks),
	}
	for i, sc := range rc.Chunks {
		output.Passages[i] = PassageOutput{
			DocumentID: sc.Chunk.DocumentID,
			Source:     sc.Chunk.Metadata[domain.MetaSource],
			Position:   sc.Chunk.Position,
			Score:      sc.Score,
			Content:    sc.Chunk.Content,
		}
	}
	return nil, output, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, IngestOutput{}, errors.New("path is required")
	}
	message := "Ingestion started for directory: " + input.Path

	if input.Async {
		if s.ports.Jobs == nil {
			return nil, IngestOutput{}, errors.New("background ingestion is not enabled")
		}
		job, err := s.ports.Jobs.Start(input.Path)
		if err != nil {
			return nil, IngestOutput{}, err
		}
		return nil, IngestOutput{Message: message, JobID: job.ID}, nil
	}

	report, err := s.ports.Ingest.IngestDirectory(ctx, input.Path)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		Message:   message,
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Succeeded: report.Succeeded,
		Skipped:   report.Skipped,
	}
	for _, f := range report.Failures {
		output.Failures = append(output.Failures, FailureOutput{Source: f.Source, Error: f.Err.Error()})
	}
	return nil, output, nil
}
