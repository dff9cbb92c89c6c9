package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type failureResponse struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type reportResponse struct {
	Documents  int               `json:"documents"`
	Chunks     int               `json:"chunks"`
	Succeeded  []string          `json:"succeeded"`
	Skipped    []string          `json:"skipped"`
	Failures   []failureResponse `json:"failures"`
	DurationMS int64             `json:"duration_ms"`
}

type ingestResponse struct {
	Message string          `json:"message"`
	Report  *reportResponse `json:"report,omitempty"`
	Job     *jobResponse    `json:"job,omitempty"`
}

type jobResponse struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	State      domain.JobState `json:"state"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     *reportResponse `json:"report,omitempty"`
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type sourceResponse struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type chatResponse struct {
	Answer  string           `json:"answer"`
	Refused bool             `json:"refused"`
	Sources []sourceResponse `json:"sources"`
}

func newReportResponse(r *domain.IngestReport) *reportResponse {
	if r == nil {
		return nil
	}
	out := &reportResponse{
		Documents:  r.Documents,
		Chunks:     r.Chunks,
		Succeeded:  nonNil(r.Succeeded),
		Skipped:    nonNil(r.Skipped),
		Failures:   make([]failureResponse, 0, len(r.Failures)),
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureResponse{Source: f.Source, Error: f.Err.Error()})
	}
	return out
}

func newJobResponse(j *domain.IngestJob) *jobResponse {
	out := &jobResponse{
		ID:        j.ID,
		Path:      j.Path,
		State:     j.State,
		Error:     j.Error,
		StartedAt: j.StartedAt,
		Report:    newReportResponse(j.Report),
	}
	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

func newChatResponse(ex *domain.ChatExchange) chatResponse {
	out := chatResponse{Answer: ex.Answer, Refused: ex.Refused, Sources: []sourceResponse{}}
	if ex.Context != nil {
		for _, sc := range ex.Context.Chunks {
			out.Sources = append(out.Sources, sourceResponse{
				Source: sc.Chunk.Metadata[domain.MetaSource],
				Score:  sc.Score,
			})
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain error categories onto HTTP status codes.
func statusFor(err error) int {
	var (
		maxBytes *http.MaxBytesError
		embErr   *domain.EmbeddingServiceError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &embErr) && embErr.Timeout:
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbeddingService),
		errors.Is(err, domain.ErrGenerationService),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrVectorStore),
		errors.Is(err, domain.ErrVectorStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
