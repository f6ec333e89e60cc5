package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jusunglee/railboard/internal/export"
	"github.com/jusunglee/railboard/pkg/railboard"
)

func main() {
	if err := railboard.LoadDotEnv("."); err != nil {
		slog.Error("Failed to load env files", "error", err)
		os.Exit(1)
	}

	config := export.DefaultConfig()
	var (
		baseURL     = flag.String("base-url", "", "Server serving /render/{railway}")
		outputDir   = flag.String("output-dir", "", "Directory for exported images")
		railways    = flag.String("railways", strings.Join(config.Railways, ","), "Comma-separated short railway ids")
		interval    = flag.Duration("interval", config.Interval, "Export interval")
		timestamped = flag.Bool("timestamped", false, "Keep a timestamped copy of every export")
		once        = flag.Bool("once", false, "Export once and exit")
	)
	flag.Parse()

	// Fall back to environment variables for flags that were not provided
	if *baseURL == "" {
		*baseURL = os.Getenv("BASE_URL")
	}
	if *baseURL != "" {
		config.BaseURL = *baseURL
	}
	if *outputDir == "" {
		*outputDir = os.Getenv("OUTPUT_DIR")
	}
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	config.Railways = nil
	for _, id := range strings.Split(*railways, ",") {
		if id = strings.TrimSpace(id); id != "" {
			config.Railways = append(config.Railways, id)
		}
	}
	config.Interval = *interval
	config.Timestamped = *timestamped

	logger := railboard.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))

	exporter, err := export.New(config, logger)
	if err != nil {
		logger.Error("Failed to create exporter", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if report := exporter.RunOnce(ctx); len(report.Failed) > 0 {
			os.Exit(1)
		}
		return
	}

	logger.Info("Exporter started", "output", config.OutputDir, "interval", config.Interval)
	exporter.Run(ctx)
	logger.Info("Exporter stopped")
}
