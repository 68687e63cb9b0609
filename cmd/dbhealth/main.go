package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, 3*time.Second); err != nil {
		logger.Error("store health check failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("store health OK", "driver", cfg.Database.Driver)
}
