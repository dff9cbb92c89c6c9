// Package config holds docchat's explicit configuration.
//
// Settings come from, in increasing precedence: built-in defaults, a TOML
// file, a .env file and DOCCHAT_* environment variables. Everything is
// validated once, at load time, so connection parameters and dimensions are
// never parsed or checked on the request path.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Vector store types.
const (
	StorePgvector = "pgvector"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "docchat.toml"

// Duration is a time.Duration that reads from TOML strings such as "60s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full application configuration.
type Config struct {
	Embedding  EmbeddingConfig  `toml:"embedding"`
	LLM        LLMConfig        `toml:"llm"`
	Store      StoreConfig      `toml:"store"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Ingest     IngestConfig     `toml:"ingest"`
	Generation GenerationConfig `toml:"generation"`
	Server     ServerConfig     `toml:"server"`
	Prompts    PromptsConfig    `toml:"prompts"`
	Log        LogConfig        `toml:"log"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	Provider          string   `toml:"provider" validate:"oneof=ollama openai"`
	BaseURL           string   `toml:"base_url" validate:"required,url"`
	Model             string   `toml:"model" validate:"required"`
	APIKey            string   `toml:"api_key" validate:"required_if=Provider openai"`
	Timeout           Duration `toml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64  `toml:"requests_per_second" validate:"gte=0"`
}

// LLMConfig selects and configures the chat model.
type LLMConfig struct {
	Provider    string   `toml:"provider" validate:"oneof=ollama openai"`
	BaseURL     string   `toml:"base_url" validate:"required,url"`
	Model       string   `toml:"model" validate:"required"`
	APIKey      string   `toml:"api_key" validate:"required_if=Provider openai"`
	Timeout     Duration `toml:"timeout" validate:"gt=0"`
	Temperature float64  `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int      `toml:"max_tokens" validate:"gte=0"`
}

// StoreConfig addresses the vector store.
type StoreConfig struct {
	Type string `toml:"type" validate:"oneof=pgvector sqlite memory"`

	// URL may carry host, port and database as postgres://host:port/db or
	// jdbc:postgresql://host:port/db. It is split into the fields below at load.
	URL string `toml:"url"`

	Host         string   `toml:"host" validate:"required_if=Type pgvector"`
	Port         int      `toml:"port" validate:"min=1,max=65535"`
	Database     string   `toml:"database" validate:"required_if=Type pgvector"`
	User         string   `toml:"user" validate:"required_if=Type pgvector"`
	Password     string   `toml:"password"`
	SSLMode      string   `toml:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
	Table        string   `toml:"table" validate:"required,sqlident"`
	Dimension    int      `toml:"dimension" validate:"gt=0,lte=16000"`
	BatchSize    int      `toml:"batch_size" validate:"gt=0"`
	QueryTimeout Duration `toml:"query_timeout" validate:"gt=0"`

	// Path is the database file for the sqlite store.
	Path string `toml:"path" validate:"required_if=Type sqlite"`
}

// RetrievalConfig bounds the retrieved context.
type RetrievalConfig struct {
	MaxResults int     `toml:"max_results" validate:"gt=0,lte=100"`
	MinScore   float64 `toml:"min_score" validate:"gte=0,lte=1"`
}

// IngestConfig controls chunking and the ingestion pipeline.
type IngestConfig struct {
	ChunkSize       int    `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap    int    `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	EmbedBatchSize  int    `toml:"embed_batch_size" validate:"gte=0"`
	Concurrency     int    `toml:"concurrency" validate:"gt=0,lte=64"`
	EmptyTextPolicy string `toml:"empty_text_policy" validate:"oneof=skip fail"`
	DefaultPath     string `toml:"default_path" validate:"required"`
	IncludeHidden   bool   `toml:"include_hidden"`
}

// GenerationConfig controls grounded answering.
type GenerationConfig struct {
	Refusal    string   `toml:"refusal" validate:"required"`
	MaxRetries int      `toml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay Duration `toml:"retry_delay" validate:"gt=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `toml:"addr" validate:"required,hostname_port"`
	ReadTimeout    Duration `toml:"read_timeout" validate:"gt=0"`
	WriteTimeout   Duration `toml:"write_timeout" validate:"gt=0"`
	MaxUploadBytes int64    `toml:"max_upload_bytes" validate:"gt=0"`
	JobRetention   int      `toml:"job_retention" validate:"gte=0"`
}

// PromptsConfig locates user-editable prompt files.
type PromptsConfig struct {
	// Dir defaults to ~/.docchat/prompts when empty.
	Dir string `toml:"dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Verbose bool `toml:"verbose"`

	// LLMCalls is the level of the per-call model request and response
	// records. Use "warn" to keep them when not verbose.
	LLMCalls string `toml:"llm_calls" validate:"omitempty,oneof=debug info warn error"`
}

// LLMCallLevel returns LLMCalls as a zap level, info when unset.
func (c LogConfig) LLMCallLevel() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LLMCalls)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
			Timeout:  Duration{60 * time.Second},
		},
		LLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.2",
			Timeout:  Duration{120 * time.Second},
		},
		Store: StoreConfig{
			Type:         StorePgvector,
			Host:         "localhost",
			Port:         5432,
			Database:     "vector_db",
			User:         "postgres",
			SSLMode:      "disable",
			Table:        "embeddings",
			Dimension:    768,
			BatchSize:    100,
			QueryTimeout: Duration{10 * time.Second},
		},
		Retrieval: RetrievalConfig{
			MaxResults: 5,
			MinScore:   0.6,
		},
		Ingest: IngestConfig{
			ChunkSize:       300,
			ChunkOverlap:    20,
			Concurrency:     4,
			EmptyTextPolicy: string(domain.EmptyTextSkip),
			DefaultPath:     "docs",
		},
		Generation: GenerationConfig{
			Refusal:    "There is no such information in the provided context.",
			RetryDelay: Duration{time.Second},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    Duration{30 * time.Second},
			WriteTimeout:   Duration{5 * time.Minute},
			MaxUploadBytes: 32 << 20,
			JobRetention:   100,
		},
		Log: LogConfig{LLMCalls: "info"},
	}
}

// Load builds the configuration from defaults, the TOML file at path (or the
// default search locations when path is empty), .env and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	file, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		if err := cfg.readFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.resolveStoreURL(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the config file to read, or "" if none exists.
// An explicit path that doesn't exist is an error.
func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	if p := os.Getenv("DOCCHAT_CONFIG"); p != "" {
		return resolvePath(p)
	}

	candidates := []string{DefaultFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".docchat", "config.toml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays DOCCHAT_* variables. A value that does not parse is an
// error rather than being ignored.
func (c *Config) applyEnv() error {
	var env envReader

	c.Embedding.Provider = getEnv("DOCCHAT_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = getEnv("DOCCHAT_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnv("DOCCHAT_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.APIKey = getEnv("DOCCHAT_EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", c.Embedding.APIKey))
	c.Embedding.Timeout.Duration = env.durationVal("DOCCHAT_EMBEDDING_TIMEOUT", c.Embedding.Timeout.Duration)

	c.LLM.Provider = getEnv("DOCCHAT_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("DOCCHAT_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("DOCCHAT_LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("DOCCHAT_LLM_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.Timeout.Duration = env.durationVal("DOCCHAT_LLM_TIMEOUT", c.LLM.Timeout.Duration)

	c.Store.Type = getEnv("DOCCHAT_STORE_TYPE", c.Store.Type)
	c.Store.URL = getEnv("DOCCHAT_STORE_URL", c.Store.URL)
	c.Store.Host = getEnv("DOCCHAT_STORE_HOST", c.Store.Host)
	c.Store.Port = env.intVal("DOCCHAT_STORE_PORT", c.Store.Port)
	c.Store.Database = getEnv("DOCCHAT_STORE_DATABASE", c.Store.Database)
	c.Store.User = getEnv("DOCCHAT_STORE_USER", c.Store.User)
	c.Store.Password = getEnv("DOCCHAT_STORE_PASSWORD", c.Store.Password)
	c.Store.Table = getEnv("DOCCHAT_STORE_TABLE", c.Store.Table)
	c.Store.Dimension = env.intVal("DOCCHAT_STORE_DIMENSION", c.Store.Dimension)
	c.Store.Path = getEnv("DOCCHAT_STORE_PATH", c.Store.Path)

	c.Retrieval.MaxResults = env.intVal("DOCCHAT_MAX_RESULTS", c.Retrieval.MaxResults)
	c.Retrieval.MinScore = env.floatVal("DOCCHAT_MIN_SCORE", c.Retrieval.MinScore)

	c.Ingest.ChunkSize = env.intVal("DOCCHAT_CHUNK_SIZE", c.Ingest.ChunkSize)
	c.Ingest.ChunkOverlap = env.intVal("DOCCHAT_CHUNK_OVERLAP", c.Ingest.ChunkOverlap)
	c.Ingest.EmptyTextPolicy = getEnv("DOCCHAT_EMPTY_TEXT_POLICY", c.Ingest.EmptyTextPolicy)

	c.Generation.Refusal = getEnv("DOCCHAT_REFUSAL", c.Generation.Refusal)
	c.Generation.MaxRetries = env.intVal("DOCCHAT_LLM_MAX_RETRIES", c.Generation.MaxRetries)

	c.Server.Addr = getEnv("DOCCHAT_ADDR", c.Server.Addr)
	c.Log.Verbose = env.boolVal("DOCCHAT_VERBOSE", c.Log.Verbose)
	c.Log.LLMCalls = getEnv("DOCCHAT_LOG_LLM_CALLS", c.Log.LLMCalls)

	if len(env.errs) > 0 {
		return fmt.Errorf("%w: environment: %w", domain.ErrInvalidInput, errors.Join(env.errs...))
	}
	return nil
}

// resolveStoreURL splits Store.URL into host, port and database.
func (c *Config) resolveStoreURL() error {
	if c.Store.URL == "" {
		return nil
	}
	raw := strings.TrimPrefix(c.Store.URL, "jdbc:")
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: store.url: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: store.url: unsupported scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: store.url: missing host", domain.ErrInvalidInput)
	}
	c.Store.Host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: store.url: invalid port %q", domain.ErrInvalidInput, p)
		}
		c.Store.Port = port
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		c.Store.Database = db
	}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			c.Store.User = name
		}
		if pw, ok := u.User.Password(); ok {
			c.Store.Password = pw
		}
	}
	return nil
}

// EmptyTextPolicy returns the ingest policy as a domain value.
func (c *Config) EmptyTextPolicy() domain.EmptyTextPolicy {
	return domain.EmptyTextPolicy(c.Ingest.EmptyTextPolicy)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envReader parses typed DOCCHAT_* values and collects parse failures.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
}

func (e *envReader) boolVal(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return defaultVal
	}
	return b
}

func (e *envReader) intVal(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return defaultVal
	}
	return i
}

func (e *envReader) floatVal(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return defaultVal
	}
	return f
}

func (e *envReader) durationVal(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return defaultVal
	}
	return d
}
