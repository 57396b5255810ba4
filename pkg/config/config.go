package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		Provider   string  `yaml:"provider"`
		Model      string  `yaml:"model"`
		BaseURL    string  `yaml:"base_url"`
		APIKey     string  `yaml:"api_key"`
		BatchSize  int     `yaml:"batch_size"`
		RateLimit  float64 `yaml:"rate_limit"`
		MaxRetries int     `yaml:"max_retries"`
		Timeout    int     `yaml:"timeout_secs"`
	} `yaml:"embedding"`

	Generation struct {
		Provider       string  `yaml:"provider"`
		Model          string  `yaml:"model"`
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		Temperature    float64 `yaml:"temperature"`
		MaxTokens      int     `yaml:"max_tokens"`
		Timeout        int     `yaml:"timeout_secs"`
		SystemPrompt   string  `yaml:"system_prompt"`
		PromptTemplate string  `yaml:"prompt_template"`
	} `yaml:"generation"`

	Store struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
		APIKey     string `yaml:"api_key"`
		Timeout    int    `yaml:"timeout_secs"`
	} `yaml:"store"`

	Splitter struct {
		ChunkSize    int      `yaml:"chunk_size"`
		ChunkOverlap *int     `yaml:"chunk_overlap"`
		Separators   []string `yaml:"separators"`
	} `yaml:"splitter"`

	Loader struct {
		Root         string `yaml:"root"`
		JSONPointer  string `yaml:"json_pointer"`
		JSONLPointer string `yaml:"jsonl_pointer"`
		JSONLHTML    *bool  `yaml:"jsonl_html"`
		CSVColumn    string `yaml:"csv_column"`
	} `yaml:"loader"`

	Ingest struct {
		Concurrency int    `yaml:"concurrency"`
		StatePath   string `yaml:"state_path"`
	} `yaml:"ingest"`

	Query struct {
		TopK        int  `yaml:"top_k"`
		ShowSources bool `yaml:"show_sources"`
	} `yaml:"query"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"docchat.yaml",
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docchat/config.yaml"),
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(&config)
	mergeWithEnv(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

// JSONLHTMLEnabled reports whether jsonl records are treated as HTML.
func (c *Config) JSONLHTMLEnabled() bool {
	return c.Loader.JSONLHTML == nil || *c.Loader.JSONLHTML
}

// Overlap returns the configured chunk overlap, or chunk_size/5 when unset.
func (c *Config) Overlap() int {
	if c.Splitter.ChunkOverlap == nil {
		return c.Splitter.ChunkSize / 5
	}
	return *c.Splitter.ChunkOverlap
}

func applyDefaults(config *Config) {
	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "openai"
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "ollama" {
			config.Embedding.Model = "nomic-embed-text:latest"
		} else {
			config.Embedding.Model = "text-embedding-3-large"
		}
	}
	if config.Embedding.Provider == "ollama" && config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 64
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 5
	}
	if config.Embedding.MaxRetries == 0 {
		config.Embedding.MaxRetries = 3
	}
	if config.Embedding.Timeout == 0 {
		config.Embedding.Timeout = 30
	}

	if config.Generation.Provider == "" {
		config.Generation.Provider = config.Embedding.Provider
	}
	if config.Generation.Model == "" {
		if config.Generation.Provider == "ollama" {
			config.Generation.Model = "mistral"
		} else {
			config.Generation.Model = "gpt-4o"
		}
	}
	if config.Generation.Provider == "ollama" && config.Generation.BaseURL == "" {
		config.Generation.BaseURL = "http://localhost:11434"
	}
	if config.Generation.MaxTokens == 0 {
		config.Generation.MaxTokens = 2000
	}
	if config.Generation.Timeout == 0 {
		config.Generation.Timeout = 120
	}

	if config.Store.URL == "" {
		config.Store.URL = "postgres://localhost:5432/docchat"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "docs"
	}
	if config.Store.Timeout == 0 {
		config.Store.Timeout = 30
	}

	if config.Splitter.ChunkSize == 0 {
		config.Splitter.ChunkSize = 1000
	}
	// Only an absent key gets the default; an explicit 0 disables overlap.
	if config.Splitter.ChunkOverlap == nil {
		overlap := config.Splitter.ChunkSize / 5
		config.Splitter.ChunkOverlap = &overlap
	}

	if config.Loader.Root == "" {
		config.Loader.Root = "docs"
	}
	if config.Loader.JSONPointer == "" {
		config.Loader.JSONPointer = "/texts"
	}
	if config.Loader.JSONLPointer == "" {
		config.Loader.JSONLPointer = "/html"
	}
	if config.Loader.CSVColumn == "" {
		config.Loader.CSVColumn = "text"
	}

	if config.Ingest.Concurrency == 0 {
		config.Ingest.Concurrency = 4
	}

	if config.Query.TopK == 0 {
		config.Query.TopK = 4
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
		if config.Generation.APIKey == "" {
			config.Generation.APIKey = key
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
		if config.Generation.Provider == "ollama" {
			config.Generation.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if storeURL := os.Getenv("DOCCHAT_STORE_URL"); storeURL != "" {
		config.Store.URL = storeURL
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		config.Store.APIKey = key
	}
	if collection := os.Getenv("DOCCHAT_COLLECTION"); collection != "" {
		config.Store.Collection = collection
	}
}
