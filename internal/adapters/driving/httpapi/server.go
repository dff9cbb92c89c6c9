package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// HealthFunc reports whether the service's dependencies are reachable.
// detail is rendered as the /healthz body.
type HealthFunc func(ctx context.Context) (healthy bool, detail any)

// Options configures the server.
type Options struct {
	// Addr is the listen address, e.g. ":8080". Port 0 picks a free port.
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes caps multipart upload bodies.
	MaxUploadBytes int64

	// DefaultPath is ingested when /api/ingest has no path parameter.
	DefaultPath string
}

// Server serves the REST API.
type Server struct {
	ingest  driving.IngestionService
	jobs    driving.IngestJobs
	chat    driving.ChatService
	health  HealthFunc
	metrics http.Handler
	opts    Options

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server. jobs, health and metrics may be nil; the
// matching endpoints then answer 404.
func NewServer(
	ingest driving.IngestionService,
	jobs driving.IngestJobs,
	chat driving.ChatService,
	health HealthFunc,
	metrics http.Handler,
	opts Options,
) *Server {
	if opts.DefaultPath == "" {
		opts.DefaultPath = "docs"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Server{
		ingest:  ingest,
		jobs:    jobs,
		chat:    chat,
		health:  health,
		metrics: metrics,
		opts:    opts,
	}
}

// Handler returns the routed handler wrapped with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/ingest/upload", s.handleUpload)
	mux.HandleFunc("POST /api/ingest/pdf", s.handleUpload)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	if s.jobs != nil {
		mux.HandleFunc("GET /api/ingest/jobs", s.handleListJobs)
		mux.HandleFunc("GET /api/ingest/jobs/{id}", s.handleGetJob)
	}
	if s.health != nil {
		mux.HandleFunc("GET /healthz", s.handleHealth)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return accessLog(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http: serve: %v", err)
		}
	}()

	logger.Info("http: listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		logger.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(started)),
		)
	})
}
