package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/docchat/internal/types"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider   string // "openai" or "ollama"
	Model      string
	BaseURL    string
	APIKey     string
	BatchSize  int
	RateLimit  float64 // requests per second
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// Embedder turns text into vectors through an external embedding API.
type Embedder struct {
	Config   EmbedderConfig
	embedder *embeddings.EmbedderImpl
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	var client embeddings.EmbedderClient

	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, types.Wrap(types.ErrConfiguration, "ollama embedder", err)
		}
		client = llm
	case "openai", "":
		if config.Model == "" {
			config.Model = "text-embedding-3-large"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, types.Wrap(types.ErrConfiguration, "openai embedder", err)
		}
		client = llm
	default:
		return nil, types.Wrap(types.ErrConfiguration, "embedder", fmt.Errorf("unknown provider %q", config.Provider))
	}

	return NewEmbedderWithClient(client, config)
}

// NewEmbedderWithClient wraps any langchaingo embedding client with rate
// limiting, per-call timeouts and retries.
func NewEmbedderWithClient(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}
	if config.BaseDelay == 0 {
		config.BaseDelay = 200 * time.Millisecond
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	emb, err := embeddings.NewEmbedder(&resilientClient{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		maxRetries: config.MaxRetries,
		baseDelay:  config.BaseDelay,
		timeout:    config.Timeout,
	},
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		Config:   config,
		embedder: emb,
	}, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, "embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, types.Wrap(types.ErrEmbedding, "embed documents",
			fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, "embed query", err)
	}
	if len(vector) == 0 {
		return nil, types.Wrap(types.ErrEmbedding, "embed query", fmt.Errorf("empty embedding"))
	}
	return vector, nil
}

type resilientClient struct {
	client     embeddings.EmbedderClient
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
}

func (c *resilientClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.create(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		// Don't wait after the last attempt
		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *resilientClient) create(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// backoff is baseDelay * 2^attempt with up to 25% jitter either way.
func (c *resilientClient) backoff(attempt int) time.Duration {
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	jitter := delay * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(delay + jitter)
}
