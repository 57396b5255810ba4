package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docchat/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY",
		"OLLAMA_BASE_URL",
		"DATABASE_URL",
		"DOCCHAT_STORE_URL",
		"QDRANT_API_KEY",
		"DOCCHAT_COLLECTION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedding:
  provider: "ollama"
  model: "nomic-embed-text"
  base_url: "http://localhost:11434"
  batch_size: 16

generation:
  provider: "openai"
  model: "gpt-4o"
  api_key: "sk-test"
  temperature: 0.5
  max_tokens: 1000

store:
  url: "qdrant://localhost:6334"
  collection: "cypressdocs"

splitter:
  chunk_size: 500
  chunk_overlap: 100
  separators: ["\n\n", "\n", " "]

loader:
  root: "cypress-documentation/docs"
  jsonl_html: false

query:
  top_k: 6
  show_sources: true
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "ollama", config.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", config.Embedding.Model)
	assert.Equal(t, 16, config.Embedding.BatchSize)
	assert.Equal(t, "gpt-4o", config.Generation.Model)
	assert.Equal(t, 0.5, config.Generation.Temperature)
	assert.Equal(t, "qdrant://localhost:6334", config.Store.URL)
	assert.Equal(t, "cypressdocs", config.Store.Collection)
	assert.Equal(t, 500, config.Splitter.ChunkSize)
	assert.Equal(t, 100, config.Overlap())
	assert.Equal(t, []string{"\n\n", "\n", " "}, config.Splitter.Separators)
	assert.Equal(t, "cypress-documentation/docs", config.Loader.Root)
	assert.False(t, config.JSONLHTMLEnabled())
	assert.Equal(t, 6, config.Query.TopK)
	assert.True(t, config.Query.ShowSources)

	// Defaults fill what the file leaves out
	assert.Equal(t, "/texts", config.Loader.JSONPointer)
	assert.Equal(t, "text", config.Loader.CSVColumn)
	assert.Equal(t, 4, config.Ingest.Concurrency)

	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", config.Embedding.Model)
	assert.Equal(t, "gpt-4o", config.Generation.Model)
	assert.Equal(t, 1000, config.Splitter.ChunkSize)
	assert.Equal(t, 200, config.Overlap())
	assert.Equal(t, "docs", config.Store.Collection)
	assert.True(t, config.JSONLHTMLEnabled())
}

func TestSmallChunkSizeDerivesOverlap(t *testing.T) {
	config := &Config{}
	config.Splitter.ChunkSize = 100
	applyDefaults(config)

	assert.Equal(t, 20, config.Overlap())
}

func TestLoadConfigZeroOverlap(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name     string
		splitter string
		overlap  int
	}{
		{"explicit zero", "splitter:\n  chunk_size: 500\n  chunk_overlap: 0\n", 0},
		{"absent key", "splitter:\n  chunk_size: 500\n", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.splitter), 0644))

			config, err := LoadConfig(configPath)
			require.NoError(t, err)
			require.NotNil(t, config.Splitter.ChunkOverlap)
			assert.Equal(t, tt.overlap, config.Overlap())
			assert.Equal(t, tt.overlap, *config.Splitter.ChunkOverlap)

			for _, e := range config.Validate() {
				assert.NotEqual(t, "splitter.chunk_overlap", e.Field)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	valid := func() *Config {
		config, err := getDefaultConfig()
		require.NoError(t, err)
		config.Embedding.APIKey = "sk-test"
		config.Generation.APIKey = "sk-test"
		return config
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing credentials",
			mutate: func(c *Config) {
				c.Embedding.APIKey = ""
				c.Generation.APIKey = ""
			},
			errorMessages: []string{
				"embedding.api_key: API key is required",
				"generation.api_key: API key is required",
			},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.Generation.Temperature = 3.0
				c.Store.Collection = "bad-name"
				overlap := c.Splitter.ChunkSize
				c.Splitter.ChunkOverlap = &overlap
				c.Query.TopK = 0
			},
			errorMessages: []string{
				"generation.temperature: temperature must be between 0 and 2",
				"store.collection",
				"splitter.chunk_overlap",
				"query.top_k: top_k must be positive",
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Embedding.Provider = "bogus"
			},
			errorMessages: []string{
				`embedding.provider: unknown provider "bogus"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				if i < len(errors) {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}

			err := config.Check()
			if len(tt.errorMessages) == 0 {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, types.ErrConfiguration)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DOCCHAT_STORE_URL", "memory://")
	t.Setenv("DOCCHAT_COLLECTION", "envdocs")

	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)

	assert.Equal(t, "sk-env", config.Embedding.APIKey)
	assert.Equal(t, "sk-env", config.Generation.APIKey)
	assert.Equal(t, "memory://", config.Store.URL)
	assert.Equal(t, "envdocs", config.Store.Collection)
}

func TestOllamaEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")

	config := &Config{}
	config.Embedding.Provider = "ollama"
	config.Generation.Provider = "ollama"
	applyDefaults(config)
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.Embedding.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Generation.BaseURL)
	assert.Equal(t, "mistral", config.Generation.Model)
	assert.Empty(t, config.Validate())
}
