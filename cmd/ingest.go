package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/indexer"
	"github.com/xhad/docchat/pkg/manifest"
)

var (
	ingestState string
	ingestReset bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [root]",
	Short: "Load, split and index a documentation directory",
	Long: `Walks the documentation root, turns every .json, .jsonl, .txt, .mdx and .csv
file into documents, splits them into overlapping chunks and stores their
embeddings in the configured collection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := config.Check(); err != nil {
			return err
		}

		vs, err := openStore(ctx, config)
		if err != nil {
			return err
		}
		defer vs.Close()

		var root string
		if len(args) > 0 {
			root = args[0]
		}
		_, err = runIngest(ctx, root, vs)
		return err
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestState, "state", "", "Manifest file used to skip unchanged documents (overrides ingest.state_path)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Forget previously indexed documents before ingesting")
}

func runIngest(ctx context.Context, root string, vs types.VectorStore) (*indexer.Report, error) {
	proc, err := newProcessor(config)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	var tracker types.Tracker
	statePath := config.Ingest.StatePath
	if ingestState != "" {
		statePath = ingestState
	}
	if statePath != "" {
		m, err := manifest.Open(statePath)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		if ingestReset {
			if err := m.Reset(config.Store.Collection); err != nil {
				return nil, fmt.Errorf("failed to reset manifest: %w", err)
			}
		}
		tracker = m
	}

	l := newLoader(config, root)
	color.Blue("\nStarting documentation pipeline for %s\n", l.Root())

	bar := getProgressBar(-1, "🔄 Indexing documents...")
	ix, err := indexer.New(indexer.IndexerConfig{
		Collection:  config.Store.Collection,
		Concurrency: config.Ingest.Concurrency,
		Fingerprint: config.Embedding.Provider + "/" + config.Embedding.Model,
		OnDocument: func(indexer.DocumentResult) {
			bar.Add(1)
		},
	}, proc, emb, vs, tracker, logger.Named("indexer"))
	if err != nil {
		return nil, err
	}

	report, err := ix.Index(ctx, l.Load(ctx))
	bar.Finish()
	if err != nil {
		return report, err
	}

	fmt.Println()
	fmt.Println(report.Summary())
	color.Green("\n✓ Indexed %d documents into %d chunks (%d unchanged)\n",
		indexer.Total(report.Indexed), report.Chunks, indexer.Total(report.Skipped))

	if len(report.Errors) > 0 {
		color.Red("✗ %d documents failed:\n", len(report.Errors))
		for _, e := range report.Errors {
			color.Red("  %v\n", e)
		}
	}
	logger.Info("ingest finished",
		zap.Int("indexed", indexer.Total(report.Indexed)),
		zap.Int("failed", indexer.Total(report.Failed)),
		zap.Int("chunks", report.Chunks))

	return report, nil
}
