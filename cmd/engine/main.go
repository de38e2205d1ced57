package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/bot"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/config"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.DebugLogging, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting arbitrage engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := bot.NewRunner(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize runner", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		logger.Fatal("Engine execution error", zap.Error(err))
	}
}
