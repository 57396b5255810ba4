package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/docchat/pkg/chat"
)

var chatIngest bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about the indexed documentation",
	Long: `Starts an interactive prompt. Each question is answered from the chunks most
similar to it in the configured collection. Type 'exit' to quit.`,
	Args: cobra.NoArgs,
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

		if chatIngest {
			if _, err := runIngest(ctx, "", vs); err != nil {
				return err
			}
		}

		emb, err := newEmbedder(config)
		if err != nil {
			return err
		}
		engine, err := newChatEngine(config)
		if err != nil {
			return err
		}

		sc := sessionConfig(config)
		var spinner *progressbar.ProgressBar
		sc.OnStateChange = func(state chat.State) {
			if spinner != nil {
				spinner.Finish()
				spinner = nil
			}
			switch state {
			case chat.Retrieving:
				spinner = getSpinner("🔍 Searching documentation...")
			case chat.Generating:
				spinner = getSpinner("🤖 Generating response...")
			}
		}

		session, err := chat.NewSession(sc, emb, vs, engine, logger.Named("chat"))
		if err != nil {
			return err
		}

		if err := session.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("chat loop: %w", err)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatIngest, "ingest", false, "Ingest the documentation root before chatting")
}
