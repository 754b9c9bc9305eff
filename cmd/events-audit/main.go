package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/user-points/internal/app/audit"
	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.NewLogger(cfg.Env, os.Stdout)

	logger.Info("starting events audit worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := audit.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize audit app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("audit app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("audit app stopped gracefully")
}
