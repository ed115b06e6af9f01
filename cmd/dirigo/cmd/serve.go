package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/logger"
	"github.com/dirigovotes/dirigo/internal/server"
	"github.com/spf13/cobra"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flush := logger.Init(cfg.Logging())
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx, cfg)
		},
	}
}
