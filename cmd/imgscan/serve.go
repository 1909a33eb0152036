package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imgscan/internal/backend"
	"imgscan/pkg/logger"
)

var listenAddr string

// serveCmd runs the extraction backend service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction backend service",
	Long: `Run the HTTP extraction backend the scan commands talk to.

Exposes the request/response extraction endpoint, the streaming progress
endpoint, Prometheus metrics and a health check.`,
	Example: `  # Run the backend on the default address
  imgscan serve

  # Custom listen address
  imgscan serve --addr :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()

		addr := cfg.Backend.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		extractor := backend.NewExtractor(cfg.Backend.RequestTimeout, cfg.Backend.UserAgent, log)
		server := backend.NewServer(extractor, log)
		return server.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
