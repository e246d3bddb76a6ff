package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trender/internal/config"
	"trender/internal/loader"
	"trender/internal/logging"
)

var (
	configPath = flag.String("config", "config.toml", "Path to configuration file")
	runOnce    = flag.Bool("once", false, "Run every topic once and exit")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v\n", sig)
		fmt.Println("Shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *runOnce {
		cfg.Engine.RunOnce = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Loaded configuration", "path", *configPath, "topics", len(cfg.Topics))

	st, err := loader.NewLoader(cfg, logger).Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	bot := st.Bot

	logger.Info("Starting bot", "name", bot.Name())

	errChan := make(chan error, 1)
	go func() {
		if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
		close(errChan)
	}()

	shutdown := func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return bot.Stop(shutdownCtx)
	}

	select {
	case err, ok := <-errChan:
		stopErr := shutdown()
		if ok && err != nil {
			return err
		}
		if stopErr != nil {
			return fmt.Errorf("shutdown error: %w", stopErr)
		}
	case <-ctx.Done():
		logger.Info("Initiating shutdown")
		if err := shutdown(); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("Bot stopped successfully")
	return nil
}
