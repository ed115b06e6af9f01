// Command server runs the Dirigo API on its own, without the CLI.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/logger"
	"github.com/dirigovotes/dirigo/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	flush := logger.Init(cfg.Logging())
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := server.Run(ctx, cfg)
	if err != nil {
		slog.Error("server stopped", "error", err)
		return 1
	}
	return 0
}
