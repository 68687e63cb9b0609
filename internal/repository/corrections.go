package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/entity"
)

// correctionLedger backs classify.CorrectionLedger with the documents table:
// corrected reviews are the ledger, there is no separate corrections store.
type correctionLedger struct {
	docs   DocumentRepository
	logger *slog.Logger
}

func NewCorrectionLedger(docs DocumentRepository, logger *slog.Logger) classify.CorrectionLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &correctionLedger{docs: docs, logger: logger}
}

func (l *correctionLedger) LatestCorrectionFor(ctx context.Context, profileID uuid.UUID, vendor string) (*entity.CorrectionRecord, error) {
	records, err := l.docs.ListCorrections(ctx, profileID)
	if err != nil {
		return nil, err
	}
	rec := classify.SelectCorrection(records, vendor)
	if rec != nil {
		l.logger.Debug("correction found",
			"profile_id", profileID, "vendor", vendor, "effective_at", rec.EffectiveAt)
	}
	return rec, nil
}
