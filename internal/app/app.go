// Package app assembles docchat from its configuration. Every component is
// constructed here, explicitly and in dependency order, and released by
// Close in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/docchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driven/llm/instrumented"
	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore/pgvector"
	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/docchat/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/docchat/internal/adapters/driving/mcp"
	"github.com/custodia-labs/docchat/internal/config"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/loader/filesystem"
	"github.com/custodia-labs/docchat/internal/logger"
	"github.com/custodia-labs/docchat/internal/normalisers"
	"github.com/custodia-labs/docchat/internal/normalisers/html"
	"github.com/custodia-labs/docchat/internal/normalisers/markdown"
	"github.com/custodia-labs/docchat/internal/normalisers/pdf"
	"github.com/custodia-labs/docchat/internal/normalisers/plaintext"
	"github.com/custodia-labs/docchat/internal/postprocessors"
)

// App holds the assembled components.
type App struct {
	Config *config.Config

	Loader    *filesystem.Loader
	Embedder  driven.EmbeddingService
	LLM       driven.LLMService
	Store     driven.VectorStore
	Prompts   driven.PromptStore
	Ingestion *services.IngestionService
	Jobs      *services.IngestJobs
	Retriever *services.Retriever
	Chat      *services.ChatService

	// Registry collects the instrumentation metrics served on /metrics.
	Registry *prometheus.Registry

	cancelJobs context.CancelFunc
	cleanup    []func() error
}

// Option overrides a component, mainly for tests.
type Option func(*options)

type options struct {
	embedder      driven.EmbeddingService
	llm           driven.LLMService
	store         driven.VectorStore
	prompts       driven.PromptStore
	skipPing      bool
	skipDimension bool
}

// WithEmbeddingService uses svc instead of the configured provider.
func WithEmbeddingService(svc driven.EmbeddingService) Option {
	return func(o *options) { o.embedder = svc }
}

// WithLLMService uses svc, still wrapped with instrumentation, instead of
// the configured provider.
func WithLLMService(svc driven.LLMService) Option {
	return func(o *options) { o.llm = svc }
}

// WithVectorStore uses store instead of the configured one.
func WithVectorStore(store driven.VectorStore) Option {
	return func(o *options) { o.store = store }
}

// WithPromptStore uses prompts instead of the on-disk store.
func WithPromptStore(prompts driven.PromptStore) Option {
	return func(o *options) { o.prompts = prompts }
}

// WithoutConnectivityCheck skips pinging the model providers at startup.
func WithoutConnectivityCheck() Option {
	return func(o *options) { o.skipPing = true }
}

// WithoutDimensionCheck skips the startup embedding probe.
func WithoutDimensionCheck() Option {
	return func(o *options) { o.skipDimension = true }
}

// New builds the application from cfg. Any failure releases what was
// already opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("app: cleanup after failed start: %v", cerr)
			}
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := instrumented.NewMetrics(a.Registry)

	logger.Section("Assembling docchat")

	if a.Prompts = o.prompts; a.Prompts == nil {
		prompts, err := file.NewPromptStore(cfg.Prompts.Dir)
		if err != nil {
			return nil, fmt.Errorf("prompt store: %w", err)
		}
		a.Prompts = prompts
	}

	registry := normalisers.NewRegistry(plaintext.New(), markdown.New(), html.New(), pdf.New())
	a.Loader = filesystem.New(
		filesystem.WithFilter(registry.Supports),
		filesystem.WithHidden(cfg.Ingest.IncludeHidden),
	)

	pipeline, err := buildPipeline(cfg.Ingest)
	if err != nil {
		return nil, err
	}

	if a.Embedder, err = a.embeddingService(ctx, o); err != nil {
		return nil, err
	}
	a.onClose(a.Embedder.Close)

	if a.Store, err = a.vectorStore(ctx, o); err != nil {
		return nil, err
	}
	a.onClose(a.Store.Close)

	if a.LLM, err = a.llmService(ctx, o, metrics); err != nil {
		return nil, err
	}
	a.onClose(a.LLM.Close)

	if !o.skipDimension {
		if err := a.VerifyDimensions(ctx); err != nil {
			return nil, err
		}
	}

	a.Ingestion = services.NewIngestionService(a.Loader, registry, pipeline, a.Embedder, a.Store, services.IngestOptions{
		EmbedBatchSize:  cfg.Ingest.EmbedBatchSize,
		Concurrency:     cfg.Ingest.Concurrency,
		EmptyTextPolicy: cfg.EmptyTextPolicy(),
	})

	jobsCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelJobs = cancel
	a.Jobs = services.NewIngestJobs(jobsCtx, a.Ingestion, services.WithJobRetention(cfg.Server.JobRetention))

	a.Retriever = services.NewRetriever(a.Embedder, a.Store, cfg.Retrieval.MaxResults, cfg.Retrieval.MinScore)
	a.Chat = services.NewChatService(a.Retriever, a.LLM, a.Prompts, services.GenerationOptions{
		Refusal:    cfg.Generation.Refusal,
		MaxRetries: cfg.Generation.MaxRetries,
		RetryDelay: cfg.Generation.RetryDelay.Duration,
		Chat: driven.ChatOptions{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		},
	})

	logger.Info("docchat ready: embedding %s, llm %s, %s store (dimension %d)",
		a.Embedder.ModelName(), a.LLM.ModelName(), cfg.Store.Type, a.Store.Dimension())
	return a, nil
}

func buildPipeline(cfg config.IngestConfig) (*postprocessors.Pipeline, error) {
	reg := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(reg)
	pipeline, err := reg.BuildPipeline(postprocessors.DefaultStages, map[string]map[string]any{
		postprocessors.NameChunker: {
			"chunk_size": cfg.ChunkSize,
			"overlap":    cfg.ChunkOverlap,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion pipeline: %w", err)
	}
	logger.Debug("ingestion pipeline: %s", pipeline)
	return pipeline, nil
}

func (a *App) embeddingService(ctx context.Context, o options) (driven.EmbeddingService, error) {
	if o.embedder != nil {
		return o.embedder, nil
	}
	if o.skipPing {
		return ai.CreateEmbeddingService(a.Config.Embedding, a.Config.Store.Dimension)
	}
	return ai.CreateAndValidateEmbeddingService(ctx, a.Config.Embedding, a.Config.Store.Dimension)
}

func (a *App) llmService(ctx context.Context, o options, metrics *instrumented.Metrics) (driven.LLMService, error) {
	level := instrumented.WithLevel(a.Config.Log.LLMCallLevel())
	if o.llm != nil {
		return instrumented.New(o.llm, metrics, level), nil
	}
	if o.skipPing {
		return ai.CreateLLMService(a.Config.LLM, metrics, level)
	}
	return ai.CreateAndValidateLLMService(ctx, a.Config.LLM, metrics, level)
}

func (a *App) vectorStore(ctx context.Context, o options) (driven.VectorStore, error) {
	if o.store != nil {
		return o.store, nil
	}
	cfg := a.Config.Store

	switch cfg.Type {
	case config.StorePgvector:
		return pgvector.Open(ctx, pgvector.Config{
			Host:         cfg.Host,
			Port:         cfg.Port,
			Database:     cfg.Database,
			User:         cfg.User,
			Password:     cfg.Password,
			SSLMode:      cfg.SSLMode,
			Table:        cfg.Table,
			Dimension:    cfg.Dimension,
			BatchSize:    cfg.BatchSize,
			QueryTimeout: cfg.QueryTimeout.Duration,
		})
	case config.StoreSQLite:
		return sqlite.NewStore(ctx, sqlite.Config{
			Path:      cfg.Path,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
	case config.StoreMemory:
		return memory.New(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unsupported store type %q", domain.ErrInvalidInput, cfg.Type)
	}
}

// VerifyDimensions embeds a probe text and checks the vector length against
// the store, so a model/store mismatch fails at startup rather than on the
// first write.
func (a *App) VerifyDimensions(ctx context.Context) error {
	probe, err := a.Embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("dimension probe: %w", err)
	}
	if want := a.Store.Dimension(); probe.Dim() != want {
		return &domain.DimensionMismatchError{Expected: want, Actual: probe.Dim()}
	}
	logger.Debug("embedding dimension %d matches the store", probe.Dim())
	return nil
}

// Health pings the model providers and the store.
func (a *App) Health(ctx context.Context) (bool, any) {
	report := ai.CheckHealth(ctx, map[string]ai.Pinger{
		"embedding":    a.Embedder,
		"llm":          a.LLM,
		"vector_store": a.Store,
	})
	return report.Healthy, report
}

// MetricsHandler serves the instrumentation registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// HTTPServer returns the REST API server for the configured address.
func (a *App) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(a.Ingestion, a.Jobs, a.Chat, a.Health, a.MetricsHandler(), httpapi.Options{
		Addr:           a.Config.Server.Addr,
		ReadTimeout:    a.Config.Server.ReadTimeout.Duration,
		WriteTimeout:   a.Config.Server.WriteTimeout.Duration,
		MaxUploadBytes: a.Config.Server.MaxUploadBytes,
		DefaultPath:    a.Config.Ingest.DefaultPath,
	})
}

// MCPServer returns the MCP server over the same services.
func (a *App) MCPServer() (*mcp.Server, error) {
	return mcp.NewServer(&mcp.Ports{
		Chat:      a.Chat,
		Retriever: a.Retriever,
		Ingest:    a.Ingestion,
		Jobs:      a.Jobs,
	})
}

func (a *App) onClose(fn func() error) {
	a.cleanup = append(a.cleanup, fn)
}

// Close stops background jobs and releases every component in reverse
// order of construction.
func (a *App) Close() error {
	if a.cancelJobs != nil {
		a.cancelJobs()
		a.Jobs.Wait()
		a.cancelJobs = nil
	}

	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	logger.Sync()
	return errors.Join(errs...)
}
