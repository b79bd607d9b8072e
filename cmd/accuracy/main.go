package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/gridatlas/facility-accuracy/internal/adapter/http"
	kafkaadapter "github.com/gridatlas/facility-accuracy/internal/adapter/kafka"
	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/config"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
	"github.com/gridatlas/facility-accuracy/internal/observability"
	"github.com/gridatlas/facility-accuracy/internal/pipeline"
	"github.com/gridatlas/facility-accuracy/internal/report"
	"github.com/gridatlas/facility-accuracy/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	canonical, err := store.LoadCanonical(cfg.CanonicalPath)
	if err != nil {
		logger.Error("failed to load canonical facilities", "path", cfg.CanonicalPath, "error", err)
		os.Exit(1)
	}
	logger.Info("canonical facilities loaded", "path", cfg.CanonicalPath, "count", len(canonical))

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	m := matcher.New(matcher.Config{
		RadiusM:    cfg.SearchRadiusM,
		Confidence: cfg.Confidence(),
		Workers:    cfg.MatchWorkers,
	}, logger)
	c := comparator.New(cfg.Variance(), cfg.OutlierKeys)
	builder := report.NewBuilder(m, c, cfg.Comparisons, cfg.SearchRadiusM, logger)

	candidates := store.NewCandidateStore()
	p := pipeline.New(reader, builder, writer, canonical, candidates, logger, metrics, pipeline.Options{
		BatchSize:         cfg.BatchSize,
		RecomputeInterval: cfg.RecomputeInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start accuracy pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
