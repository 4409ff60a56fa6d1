package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/steadiczech/games-devkit/internal/app"
	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devserver start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("devserver starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	devServer, err := app.NewDevServer(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize devserver", "error", err.Error())
		return err
	}

	if err := devServer.Run(ctx); err != nil {
		return fmt.Errorf("devserver run: %w", err)
	}

	return nil
}
