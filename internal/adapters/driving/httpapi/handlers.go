package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

// handleIngest ingests a directory synchronously, or starts a job when
// async=true.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = s.opts.DefaultPath
	}
	message := "Ingestion started for directory: " + path

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if s.jobs == nil {
			writeError(w, fmt.Errorf("%w: background ingestion is not enabled", domain.ErrInvalidInput))
			return
		}
		job, err := s.jobs.Start(path)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Location", "/api/ingest/jobs/"+job.ID)
		writeJSON(w, http.StatusAccepted, ingestResponse{Message: message, Job: newJobResponse(job)})
		return
	}

	report, err := s.ingest.IngestDirectory(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Message: message, Report: newReportResponse(report)})
}

// handleUpload ingests a single multipart file. The report is returned
// with 422 when the document could not be ingested.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			writeError(w, err)
			return
		}
		writeError(w, fmt.Errorf("%w: multipart field \"file\" is required: %v", domain.ErrInvalidInput, err))
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	report, err := s.ingest.IngestUpload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ingestResponse{
		Message: "File ingested: " + header.Filename,
		Report:  newReportResponse(report),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.jobs.List()
	out := make([]*jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, newJobResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput))
		return
	}

	exchange, err := s.chat.Ask(r.Context(), req.Prompt)
	if err != nil {
		logger.Warn("http: chat failed: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(exchange))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, detail := s.health(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, detail)
}
