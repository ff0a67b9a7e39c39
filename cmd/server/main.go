package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))

	var (
		app     *App
		cleanup func()
	)
	switch cfg.Storage {
	case config.StorageMemory:
		app, cleanup, err = InitializeMemoryApp(cfg)
	default:
		app, cleanup, err = InitializePostgresApp(cfg)
	}
	if err != nil {
		slog.Error("failed to initialize app", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("chat server starting", "storage", cfg.Storage, "port", cfg.Port, "grpc_port", cfg.GRPCPort)
	if err := app.Run(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		cleanup()
		os.Exit(1)
	}
	slog.Info("chat server stopped")
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
