package main

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docchat/pkg/scraper"
)

var (
	fetchDepth     int
	fetchRateLimit float64
	fetchOut       string
	fetchIgnore    []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Mirror a documentation website into the documentation root",
	Long: `Crawls same-host links from the given URL and writes the main text of each
page as a .txt file under the documentation root, ready for 'docchat ingest'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := config.Loader.Root
		if fetchOut != "" {
			out = fetchOut
		}

		var processedCount int32
		bar := getProgressBar(-1, "📄 Scraping documentation...")
		s, err := scraper.NewWithConfig(scraper.ScraperConfig{
			BaseURL:        args[0],
			MaxDepth:       fetchDepth,
			RateLimit:      fetchRateLimit,
			IgnorePatterns: fetchIgnore,
			OnProgress: func(url string) {
				atomic.AddInt32(&processedCount, 1)
				bar.Add(1)
			},
		}, logger.Named("scraper"))
		if err != nil {
			return err
		}

		color.Blue("\nStarting documentation pipeline for %s\n", args[0])
		result, err := s.Mirror(ctx, out)
		bar.Finish()
		if err != nil {
			return err
		}

		color.Green("\n✓ Scraped %d pages, wrote %d documents to %s\n",
			atomic.LoadInt32(&processedCount), result.Written, out)
		for _, e := range result.Errors {
			color.Red("  %v\n", e)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDepth, "max-depth", 3, "Maximum link depth to follow")
	fetchCmd.Flags().Float64Var(&fetchRateLimit, "rate-limit", 2.0, "Requests per second")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Output directory (defaults to loader.root)")
	fetchCmd.Flags().StringSliceVar(&fetchIgnore, "ignore", nil, "Skip URLs containing any of these substrings")
}
