package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vecdb/internal/app"
	"vecdb/internal/config"
	"vecdb/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	a, err := app.New(ctx, cfg, deps.DB, deps.Weaviate, deps.NSQProducer, log)
	if err != nil {
		return err
	}
	defer a.Consumers.Stop()

	if !cfg.EnableAPI {
		slog.Info("api disabled, running consumers only")
		<-ctx.Done()
		return nil
	}
	return a.Run(ctx)
}
