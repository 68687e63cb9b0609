package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/internal/async"
	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/extract"
	"github.com/ledgerline/receipt-recon/internal/ingest"
	"github.com/ledgerline/receipt-recon/internal/pipeline"
	"github.com/ledgerline/receipt-recon/internal/reconcile"
	"github.com/ledgerline/receipt-recon/internal/repository"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	profileID, err := uuid.Parse(cfg.Ingest.ProfileID)
	if err != nil {
		logger.Error("INGEST_PROFILE_ID must be a valid UUID", "error", err)
		os.Exit(2)
	}
	if len(cfg.Ingest.WatchDirs) == 0 {
		logger.Error("INGEST_WATCH_DIRS is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrating store", "error", err)
		os.Exit(1)
	}
	if err := store.HealthCheck(ctx, 3*time.Second); err != nil {
		logger.Error("store health check failed", "error", err)
		os.Exit(1)
	}

	ocr, err := extract.NewFromConfig(cfg.OCR, logger)
	if err != nil {
		logger.Error("configuring ocr provider", "error", err)
		os.Exit(2)
	}

	docs := repository.NewDocumentRepository(store, logger)
	txns := repository.NewTransactionRepository(store, logger)
	ledger := repository.NewCorrectionLedger(docs, logger)
	categorizer := classify.NewCategorizer(ledger, nil, logger)
	matcher := reconcile.NewMatcher(txns, reconcile.Config{
		CandidateLimit:  cfg.Reconcile.CandidateLimit,
		AmountTolerance: cfg.Reconcile.AmountTolerance,
		DateWindowDays:  cfg.Reconcile.DateWindowDays,
	}, logger)
	processor := pipeline.NewProcessor(logger, pipeline.Config{
		ExcerptLimit: cfg.Extract.ExcerptLimit,
	}, ocr, docs, categorizer)
	processor.EnableDraftCreation(matcher)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	ingestor := ingest.NewFSIngestor(docs, queue, logger)

	paths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.WatchDirs,
		InitialScan: true,
		Debounce:    cfg.Ingest.Debounce,
	}, logger)
	if err != nil {
		logger.Error("starting watcher", "error", err)
		os.Exit(1)
	}

	logger.Info("recond started",
		"watch_dirs", cfg.Ingest.WatchDirs,
		"profile_id", profileID,
		"workers", cfg.Queue.Workers,
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err, ok := <-watchErrs:
			if ok {
				logger.Warn("watcher error", "error", err)
			}
		case path, ok := <-paths:
			if !ok {
				break loop
			}
			if _, err := ingestor.IngestPath(ctx, profileID, path); err != nil {
				logger.Error("ingest failed", "path", path, "error", err)
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
