package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over a websocket",
	Long: `Starts an HTTP server with a /ws websocket endpoint. Every connection gets its
own chat session and history. Send {"type":"question","content":"..."}.`,
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

		emb, err := newEmbedder(config)
		if err != nil {
			return err
		}
		engine, err := newChatEngine(config)
		if err != nil {
			return err
		}

		factory := func() (*chat.Session, error) {
			return chat.NewSession(sessionConfig(config), emb, vs, engine, logger.Named("session"))
		}

		addr := config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		color.Cyan("\nServer running on %s (websocket at /ws)", addr)
		color.Cyan("Press Ctrl+C to stop")
		return server.New(factory, logger.Named("server")).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
