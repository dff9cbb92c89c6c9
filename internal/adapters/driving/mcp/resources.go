package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

const uriScheme = "docchat://"

// registerResources exposes ingestion jobs when a job tracker is configured.
func (s *Server) registerResources() {
	if s.ports.Jobs == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "jobs",
		Name:        "ingest-jobs",
		Description: "Background ingestion jobs, newest first",
		MIMEType:    "application/json",
	}, s.handleJobsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}",
		Name:        "ingest-job",
		Description: "State and per-document report of one ingestion job",
		MIMEType:    "application/json",
	}, s.handleJobResource)
}

type jobInfo struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	State      domain.JobState `json:"state"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Documents  int             `json:"documents"`
	Chunks     int             `json:"chunks"`
	Failures   []FailureOutput `json:"failures,omitempty"`
}

func newJobInfo(j *domain.IngestJob) jobInfo {
	info := jobInfo{
		ID:        j.ID,
		Path:      j.Path,
		State:     j.State,
		Error:     j.Error,
		StartedAt: j.StartedAt,
	}
	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		info.FinishedAt = &finished
	}
	if j.Report != nil {
		info.Documents = j.Report.Documents
		info.Chunks = j.Report.Chunks
		for _, f := range j.Report.Failures {
			info.Failures = append(info.Failures, FailureOutput{Source: f.Source, Error: f.Err.Error()})
		}
	}
	return info
}

func (s *Server) handleJobsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobs := s.ports.Jobs.List()
	infos := make([]jobInfo, len(jobs))
	for i := range jobs {
		infos[i] = newJobInfo(&jobs[i])
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleJobResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := extractJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	job, err := s.ports.Jobs.Get(jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return jsonResource(req.Params.URI, newJobInfo(job))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractJobID extracts the job ID from a URI like docchat://jobs/{jobId}.
func extractJobID(uri string) string {
	const prefix = uriScheme + "jobs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
