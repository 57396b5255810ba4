// Package indexer splits, embeds and stores documents, one document at a
// time per worker.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/manifest"
	"github.com/xhad/docchat/pkg/processor"
)

type IndexerConfig struct {
	Collection  string
	Concurrency int
	// Fingerprint is mixed into each document's manifest hash, typically the
	// embedding model, so switching models re-indexes everything.
	Fingerprint string
	// OnDocument is called once per document or loader error, from worker
	// goroutines.
	OnDocument func(DocumentResult)
}

type Indexer struct {
	config    IndexerConfig
	processor *processor.Processor
	embedder  types.Embedder
	store     types.VectorStore
	tracker   types.Tracker
	logger    *zap.Logger
}

// New builds an Indexer. tracker may be nil, in which case every document
// is indexed.
func New(config IndexerConfig, proc *processor.Processor, embedder types.Embedder, store types.VectorStore, tracker types.Tracker, logger *zap.Logger) (*Indexer, error) {
	if config.Collection == "" {
		return nil, types.Wrap(types.ErrConfiguration, "indexer", fmt.Errorf("collection is required"))
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if proc == nil || embedder == nil || store == nil {
		return nil, types.Wrap(types.ErrConfiguration, "indexer", fmt.Errorf("processor, embedder and store are required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Indexer{
		config:    config,
		processor: proc,
		embedder:  embedder,
		store:     store,
		tracker:   tracker,
		logger:    logger,
	}, nil
}

// Index consumes docs and indexes each document concurrently. A failing
// document is recorded in the report and never stops the others; only
// cancellation of ctx ends the run early.
func (ix *Indexer) Index(ctx context.Context, docs iter.Seq2[models.Document, error]) (*Report, error) {
	report := newReport()

	var g errgroup.Group
	g.SetLimit(ix.config.Concurrency)

	for doc, err := range docs {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			ix.recordLoadError(report, err)
			continue
		}
		report.loaded(doc.Extension)

		g.Go(func() error {
			ix.indexDocument(ctx, doc, report)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (ix *Indexer) recordLoadError(report *Report, err error) {
	result := DocumentResult{Outcome: OutcomeFailed, Err: err}
	var typed *types.Error
	if errors.As(err, &typed) {
		result.SourcePath = typed.Path
		result.DocumentID = typed.Path
		result.Extension = models.ExtensionOf(typed.Path)
	}

	ix.logger.Warn("failed to load file", zap.String("path", result.SourcePath), zap.Error(err))
	ix.finish(report, result)
}

func (ix *Indexer) indexDocument(ctx context.Context, doc models.Document, report *Report) {
	result := DocumentResult{
		DocumentID: doc.ID,
		SourcePath: doc.SourcePath,
		Extension:  doc.Extension,
	}
	defer func() { ix.finish(report, result) }()

	pc := ix.processor.Config()
	hash := manifest.Hash(doc.Text, pc.ChunkSize, pc.ChunkOverlap, pc.Separators, ix.config.Fingerprint)

	if ix.tracker != nil {
		indexed, err := ix.tracker.Indexed(ix.config.Collection, doc.ID, hash)
		if err != nil {
			ix.logger.Warn("manifest lookup failed", zap.String("document", doc.ID), zap.Error(err))
		} else if indexed {
			result.Outcome = OutcomeSkipped
			return
		}
	}

	chunks := ix.processor.Process(doc)
	if len(chunks) == 0 {
		ix.logger.Debug("document has no text", zap.String("document", doc.ID))
		result.Outcome = OutcomeSkipped
		return
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err == nil && len(vectors) != len(chunks) {
		err = types.Wrap(types.ErrEmbedding, "embed documents",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		ix.logger.Error("failed to embed document", zap.String("document", doc.ID), zap.Error(err))
		return
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = models.IndexEntry{Chunk: c, Vector: vectors[i], Collection: ix.config.Collection}
	}

	if err := ix.store.Upsert(ctx, ix.config.Collection, entries); err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		ix.logger.Error("failed to store document", zap.String("document", doc.ID), zap.Error(err))
		return
	}

	result.Outcome = OutcomeIndexed
	result.Chunks = len(chunks)
	ix.logger.Debug("indexed document",
		zap.String("document", doc.ID),
		zap.Int("chunks", len(chunks)))

	if ix.tracker != nil {
		if err := ix.tracker.MarkIndexed(ix.config.Collection, doc.ID, hash); err != nil {
			ix.logger.Warn("failed to update manifest", zap.String("document", doc.ID), zap.Error(err))
		}
	}
}

func (ix *Indexer) finish(report *Report, result DocumentResult) {
	report.record(result)
	if ix.config.OnDocument != nil {
		ix.config.OnDocument(result)
	}
}
