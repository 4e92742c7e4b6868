package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/logging"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"github.com/rpkwiecinski/giftcard-engine/pkg/output"
	"github.com/rpkwiecinski/giftcard-engine/pkg/validation"
	"go.uber.org/zap"
)

func main() {
	configLocation := flag.String("config", "", "path to configuration file (defaults when empty)")
	cataloguePath := flag.String("catalogue", "", "path to the catalogue (.json, .yaml, .yml or .csv)")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	workers := flag.Int("workers", 0, "workers per day (0 uses the configured schedule)")
	dailyLimit := flag.Int("daily-limit", 0, "items per worker per day (0 uses the configured schedule)")
	iterations := flag.Int("iterations", 0, "selector iterations override")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}
	if *cataloguePath == "" {
		logger.Fatal("a catalogue is required, pass -catalogue", zap.String("op", "main"))
	}
	if *iterations > 0 {
		conf.Selector.Iterations = *iterations
	}

	items, err := catalogue.Load(*cataloguePath, conf.Engine.ExtraBuyLimitFraction)
	if err != nil {
		logger.Fatal("failed to load catalogue",
			zap.String("op", "main"),
			zap.String("catalogue", *cataloguePath),
			zap.Error(err),
		)
	}

	stats := store.NewStatsStore(logger, conf.Storage)
	defer func() {
		_ = store.CloseStatsStore(logger, stats)
	}()
	sessions := store.NewSessionWriter(conf.Storage.HistoryDir, conf.Storage.Compress)
	pipeline, err := engine.NewPipeline(logger, conf, stats, sessions)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.String("op", "main"), zap.Error(err))
	}

	// Interrupting the run still prints the best result found so far.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, items, *workers, *dailyLimit)
	if err != nil {
		logger.Fatal("pipeline failed", zap.String("op", "main"), zap.Error(err))
	}

	if err := output.Write(os.Stdout, outputFormat, res); err != nil {
		logger.Fatal("failed to write output", zap.String("op", "main"), zap.Error(err))
	}
}
