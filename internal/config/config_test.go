package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 300, cfg.Ingest.ChunkSize)
	assert.Equal(t, 20, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 768, cfg.Store.Dimension)
	assert.Equal(t, domain.EmptyTextSkip, cfg.EmptyTextPolicy())
	assert.Equal(t, 0, cfg.Generation.MaxRetries)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{
			name:   "port out of range",
			modify: func(c *Config) { c.Store.Port = 70000 },
			want:   "store.port must be at most 65535",
		},
		{
			name:   "zero port",
			modify: func(c *Config) { c.Store.Port = 0 },
			want:   "store.port must be at least 1",
		},
		{
			name:   "non-positive dimension",
			modify: func(c *Config) { c.Store.Dimension = 0 },
			want:   "store.dimension must be greater than 0",
		},
		{
			name:   "overlap not below chunk size",
			modify: func(c *Config) { c.Ingest.ChunkOverlap = 300 },
			want:   "ingest.chunk_overlap must be less than",
		},
		{
			name:   "unsafe table name",
			modify: func(c *Config) { c.Store.Table = "embeddings; DROP TABLE x" },
			want:   "is not a valid table name",
		},
		{
			name:   "unknown llm call level",
			modify: func(c *Config) { c.Log.LLMCalls = "loud" },
			want:   "llm_calls must be one of",
		},
		{
			name:   "unknown provider",
			modify: func(c *Config) { c.Embedding.Provider = "cohere" },
			want:   "embedding.provider must be one of",
		},
		{
			name:   "openai without key",
			modify: func(c *Config) { c.LLM.Provider = ProviderOpenAI },
			want:   "llm.api_key is required",
		},
		{
			name:   "min score above one",
			modify: func(c *Config) { c.Retrieval.MinScore = 1.5 },
			want:   "retrieval.min_score must be at most 1",
		},
		{
			name:   "bad empty text policy",
			modify: func(c *Config) { c.Ingest.EmptyTextPolicy = "ignore" },
			want:   "ingest.empty_text_policy must be one of",
		},
		{
			name:   "zero timeout",
			modify: func(c *Config) { c.Embedding.Timeout = Duration{} },
			want:   "embedding.timeout must be greater than 0",
		},
		{
			name:   "sqlite without path",
			modify: func(c *Config) { c.Store.Type = StoreSQLite },
			want:   "store.path is required",
		},
		{
			name:   "bad base url",
			modify: func(c *Config) { c.Embedding.BaseURL = "not a url" },
			want:   "embedding.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docchat.toml")
	content := `
[embedding]
model = "mxbai-embed-large"
timeout = "15s"

[store]
table = "manual_chunks"
dimension = 1024

[retrieval]
max_results = 3
min_score = 0.75

[ingest]
empty_text_policy = "fail"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, 15*time.Second, cfg.Embedding.Timeout.Duration)
	assert.Equal(t, "manual_chunks", cfg.Store.Table)
	assert.Equal(t, 1024, cfg.Store.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.MaxResults)
	assert.InDelta(t, 0.75, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, domain.EmptyTextFail, cfg.EmptyTextPolicy())
	// Untouched values keep their defaults.
	assert.Equal(t, 300, cfg.Ingest.ChunkSize)
}

func TestLoad_InvalidFileFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\nport = 99999\n"), 0600))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.port")
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\ntimeout = \"soon\"\n"), 0600))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_STORE_DIMENSION", "384")
	t.Setenv("DOCCHAT_MIN_SCORE", "0.9")
	t.Setenv("DOCCHAT_EMBEDDING_TIMEOUT", "5s")
	t.Setenv("DOCCHAT_REFUSAL", "Not in the documents.")

	path := filepath.Join(t.TempDir(), "docchat.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\ndimension = 768\n"), 0600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Store.Dimension)
	assert.InDelta(t, 0.9, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout.Duration)
	assert.Equal(t, "Not in the documents.", cfg.Generation.Refusal)
}

func TestLogConfig_LLMCallLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, Default().Log.LLMCallLevel())
	assert.Equal(t, zapcore.InfoLevel, LogConfig{}.LLMCallLevel())
	assert.Equal(t, zapcore.WarnLevel, LogConfig{LLMCalls: "warn"}.LLMCallLevel())

	t.Setenv("DOCCHAT_LOG_LLM_CALLS", "warn")
	path := filepath.Join(t.TempDir(), "docchat.toml")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, cfg.Log.LLMCallLevel())
}

func TestLoad_MalformedEnvFailsFast(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "DOCCHAT_STORE_PORT", "54x2"},
		{"dimension", "DOCCHAT_STORE_DIMENSION", "-"},
		{"min score", "DOCCHAT_MIN_SCORE", "high"},
		{"timeout", "DOCCHAT_LLM_TIMEOUT", "30"},
		{"verbose", "DOCCHAT_VERBOSE", "yes please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			path := filepath.Join(t.TempDir(), "docchat.toml")
			require.NoError(t, os.WriteFile(path, []byte("[store]\nport = 5432\n"), 0600))

			cfg, err := Load(path)

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_MalformedEnvReportsEveryKey(t *testing.T) {
	t.Setenv("DOCCHAT_STORE_PORT", "54x2")
	t.Setenv("DOCCHAT_STORE_DIMENSION", "-")
	path := filepath.Join(t.TempDir(), "docchat.toml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCCHAT_STORE_PORT")
	assert.Contains(t, err.Error(), "DOCCHAT_STORE_DIMENSION")
}

func TestResolveStoreURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		host     string
		port     int
		database string
		user     string
	}{
		{"jdbc", "jdbc:postgresql://db.internal:5433/vector_db", "db.internal", 5433, "vector_db", "postgres"},
		{"postgres with user", "postgres://rag:secret@pg:5432/rag", "pg", 5432, "rag", "rag"},
		{"no port", "postgresql://pg/rag", "pg", 5432, "rag", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Store.URL = tt.url

			require.NoError(t, cfg.resolveStoreURL())

			assert.Equal(t, tt.host, cfg.Store.Host)
			assert.Equal(t, tt.port, cfg.Store.Port)
			assert.Equal(t, tt.database, cfg.Store.Database)
			assert.Equal(t, tt.user, cfg.Store.User)
		})
	}
}

func TestResolveStoreURL_Invalid(t *testing.T) {
	for _, raw := range []string{"mysql://h:1/db", "jdbc:postgresql://:5432/db", "postgres://h:port/db"} {
		cfg := Default()
		cfg.Store.URL = raw
		err := cfg.resolveStoreURL()
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}
