package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/export"
	"github.com/ledgerline/receipt-recon/internal/repository"
)

func main() {
	var (
		profileArg = flag.String("profile", "", "profile UUID (required)")
		fromArg    = flag.String("from", "", "start date YYYY-MM-DD (optional)")
		toArg      = flag.String("to", "", "end date YYYY-MM-DD (optional)")
		outArg     = flag.String("out", "expenses.xlsx", "output file")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	profileID, err := uuid.Parse(*profileArg)
	if err != nil {
		logger.Error("-profile must be a valid UUID", "error", err)
		os.Exit(2)
	}
	from, err := parseDateArg(*fromArg)
	if err != nil {
		logger.Error("invalid -from date", "error", err)
		os.Exit(2)
	}
	to, err := parseDateArg(*toArg)
	if err != nil {
		logger.Error("invalid -to date", "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx := context.Background()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	docs := repository.NewDocumentRepository(store, logger)
	svc := export.NewService(docs, logger)

	data, err := svc.ExportExpensesXLSX(ctx, profileID, from, to)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outArg, data, 0o644); err != nil {
		logger.Error("writing output", "path", *outArg, "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "path", *outArg, "bytes", len(data))
}

func parseDateArg(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
