package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/xhad/docchat/internal/types"
)

var collectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedding config
	errors = append(errors, validateProvider("embedding", c.Embedding.Provider, c.Embedding.APIKey, c.Embedding.BaseURL)...)

	if c.Embedding.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Embedding.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_retries",
			Message: "max_retries cannot be negative",
		})
	}

	// Validate generation config
	errors = append(errors, validateProvider("generation", c.Generation.Provider, c.Generation.APIKey, c.Generation.BaseURL)...)

	if c.Generation.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "generation.model",
			Message: "generation model is required",
		})
	}

	if c.Generation.MaxTokens < 1 || c.Generation.MaxTokens > 16384 {
		errors = append(errors, ValidationError{
			Field:   "generation.max_tokens",
			Message: "max_tokens must be between 1 and 16384",
		})
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generation.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate store config
	if c.Store.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "store.url",
			Message: "store URL is required",
		})
	} else if u, err := url.Parse(c.Store.URL); err != nil || u.Scheme == "" {
		errors = append(errors, ValidationError{
			Field:   "store.url",
			Message: "invalid store URL",
		})
	}

	if !collectionPattern.MatchString(c.Store.Collection) {
		errors = append(errors, ValidationError{
			Field:   "store.collection",
			Message: "collection must be a letter or underscore followed by letters, digits or underscores",
		})
	}

	// Validate splitter config
	if c.Splitter.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if overlap := c.Overlap(); overlap < 0 || overlap >= c.Splitter.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	for _, sep := range c.Splitter.Separators {
		if sep == "" {
			errors = append(errors, ValidationError{
				Field:   "splitter.separators",
				Message: "separators cannot be empty strings",
			})
			break
		}
	}

	if c.Ingest.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Query.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "query.top_k",
			Message: "top_k must be positive",
		})
	}

	return errors
}

// Check returns the validation failures as a single configuration error.
func (c *Config) Check() error {
	verrs := c.Validate()
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return types.Wrap(types.ErrConfiguration, "config", errors.Join(errs...))
}

func validateProvider(section, provider, apiKey, baseURL string) []ValidationError {
	var errors []ValidationError

	switch provider {
	case "openai":
		if apiKey == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".api_key",
				Message: "API key is required for the openai provider (set OPENAI_API_KEY)",
			})
		}
	case "ollama":
		if baseURL == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "Ollama base URL is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   section + ".provider",
			Message: fmt.Sprintf("unknown provider %q", provider),
		})
	}

	if baseURL != "" {
		if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "invalid base URL",
			})
		}
	}

	return errors
}
