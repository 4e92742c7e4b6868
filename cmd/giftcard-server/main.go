package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/jobs"
	"github.com/rpkwiecinski/giftcard-engine/internal/logging"
	"github.com/rpkwiecinski/giftcard-engine/internal/server"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"github.com/rpkwiecinski/giftcard-engine/internal/trainer"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	serverConfigPath := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	srvConf, err := server.LoadConfig(*serverConfigPath)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(srvConf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	conf, err := config.LoadConfiguration(srvConf.EngineConfig)
	if err != nil {
		logger.Fatal("failed to load engine configuration",
			zap.String("op", "main"),
			zap.String("path", srvConf.EngineConfig),
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

	catalogues := jobs.NewCatalogueCache(constants.DefaultCatalogueCacheMinutes*time.Minute, conf.Engine.ExtraBuyLimitFraction)
	results := store.NewResultRepository(logger, conf.Storage.ResultHistory, filepath.Join(conf.Storage.HistoryDir, "results"), conf.Storage.Compress)
	scheduler, err := jobs.NewScheduler(logger, pipeline, catalogues, results)
	if err != nil {
		logger.Fatal("failed to build job scheduler", zap.String("op", "main"), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)

	var source server.TrainerSource
	if conf.Trainer.CataloguePath != "" {
		holder := &trainer.Holder{}
		tr, err := trainer.New(logger, pipeline, catalogues, conf.Trainer.CataloguePath, conf.Trainer.Interval, holder)
		if err != nil {
			logger.Fatal("failed to build trainer", zap.String("op", "main"), zap.Error(err))
		}
		go tr.Run(ctx)
		source = holder
		logger.Info("continuous trainer started",
			zap.String("op", "main"),
			zap.String("catalogue", conf.Trainer.CataloguePath),
			zap.Duration("interval", conf.Trainer.Interval),
		)
	}

	limiter := rate.NewLimiter(rate.Limit(srvConf.RateLimit), srvConf.RateBurst)
	httpServer := &http.Server{
		Addr:              srvConf.Address,
		Handler:           server.NewHandler(logger, scheduler, source, limiter, srvConf.UploadSizeBytes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.String("op", "main"), zap.Error(err))
		}
	}()

	logger.Info("starting giftcard engine server",
		zap.String("op", "main"),
		zap.String("address", srvConf.Address),
		zap.Int64("maxUploadSize", srvConf.UploadSizeBytes()),
		zap.Float64("rateLimit", srvConf.RateLimit),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.String("op", "main"), zap.Error(err))
	}
}
