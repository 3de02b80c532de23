package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/server"
)

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the period, weight and aggregation API over HTTP",
	Long: `Start the HTTP API used by the dashboard.

Routes:
  GET  /periods                  - last N period keys (type, count, at)
  GET  /periods/range            - date range of a key (type, key)
  POST /weights/normalize        - normalize a weight set
  POST /weights/clamp            - clamp one weight and renormalize
  POST /contributions/aggregate  - fold contribution rows
  GET  /leaderboard              - backend leaderboard of a period
  GET  /healthz                  - liveness
  GET  /metrics                  - Prometheus metrics

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  tally serve --listen :9090 --log-mode prod`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(appLog, server.Config{
			Addr:   cfg.ListenAddr,
			Client: backendClient,
		})
		return srv.Run(ctx)
	},
}
