package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/docchat/internal/types"
	cfgPkg "github.com/xhad/docchat/pkg/config"
	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/loader"
	"github.com/xhad/docchat/pkg/processor"
	"github.com/xhad/docchat/pkg/store"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newEmbedder(cfg *cfgPkg.Config) (*llm.Embedder, error) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		BatchSize:  cfg.Embedding.BatchSize,
		RateLimit:  cfg.Embedding.RateLimit,
		MaxRetries: cfg.Embedding.MaxRetries,
		Timeout:    seconds(cfg.Embedding.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}

func newChatEngine(cfg *cfgPkg.Config) (*llm.ChatEngine, error) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:       cfg.Generation.Provider,
		Model:          cfg.Generation.Model,
		BaseURL:        cfg.Generation.BaseURL,
		APIKey:         cfg.Generation.APIKey,
		Temperature:    cfg.Generation.Temperature,
		MaxTokens:      cfg.Generation.MaxTokens,
		SystemTemplate: cfg.Generation.SystemPrompt,
		PromptTemplate: cfg.Generation.PromptTemplate,
		Timeout:        seconds(cfg.Generation.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	return engine, nil
}

func newProcessor(cfg *cfgPkg.Config) (*processor.Processor, error) {
	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Overlap(),
		Separators:   cfg.Splitter.Separators,
	})
	if err != nil {
		return nil, types.Wrap(types.ErrConfiguration, "splitter", err)
	}
	return proc, nil
}

func newLoader(cfg *cfgPkg.Config, root string) *loader.Loader {
	if root == "" {
		root = cfg.Loader.Root
	}
	strategies := loader.DefaultStrategies(loader.StrategyConfig{
		JSONPointer:  cfg.Loader.JSONPointer,
		JSONLPointer: cfg.Loader.JSONLPointer,
		JSONLHTML:    cfg.JSONLHTMLEnabled(),
		CSVColumn:    cfg.Loader.CSVColumn,
	})
	return loader.New(loader.LoaderConfig{Root: root}, strategies, logger.Named("loader"))
}

func openStore(ctx context.Context, cfg *cfgPkg.Config) (types.VectorStore, error) {
	ctx, cancel := context.WithTimeout(ctx, seconds(cfg.Store.Timeout))
	defer cancel()

	vs, err := store.Open(ctx, store.StoreConfig{URL: cfg.Store.URL, APIKey: cfg.Store.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	return vs, nil
}

func sessionConfig(cfg *cfgPkg.Config) chat.SessionConfig {
	// Embedding the question and querying the store share one deadline.
	return chat.SessionConfig{
		Collection:       cfg.Store.Collection,
		TopK:             cfg.Query.TopK,
		Timeout:          seconds(cfg.Generation.Timeout),
		RetrievalTimeout: seconds(cfg.Embedding.Timeout + cfg.Store.Timeout),
		ShowSources:      cfg.Query.ShowSources,
	}
}
