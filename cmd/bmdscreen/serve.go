package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bmdscreen/internal/app"
)

var serveFlags struct {
	addr  string
	debug bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored screening results over HTTP",
	Long: `Starts the read-only results API on server.addr:

  GET /api/v1/runs
  GET /api/v1/runs/{id}
  GET /api/v1/runs/{id}/units
  GET /api/v1/runs/{id}/units/{chemical}/{endpoint}
  GET /healthz
  GET /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveFlags.addr != "" {
			cfg.Server.Addr = serveFlags.addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg, logger, app.Options{Debug: serveFlags.debug})
		if err != nil {
			return err
		}
		return application.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address; overrides server.addr")
	serveCmd.Flags().BoolVar(&serveFlags.debug, "debug", false, "include stack traces in error responses")
}
