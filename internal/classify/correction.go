package classify

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/internal/entity"
)

// CorrectionLedger is the read-side query over historical human corrections.
// Implementations are scoped per owner; lookups never cross profiles.
// Implementations may bound their scan to a recent window of corrected
// documents, so a vendor whose only correction is very old can stop carrying
// an override and fall back to the rules.
type CorrectionLedger interface {
	// LatestCorrectionFor returns the most recent usable correction whose
	// vendor matches the given vendor, or nil when none exists within the
	// implementation's window.
	LatestCorrectionFor(ctx context.Context, profileID uuid.UUID, vendor string) (*entity.CorrectionRecord, error)
}

// SelectCorrection picks the correction that should override rule-based
// categorization for the given vendor: among vendor-key matches carrying at
// least one taxonomy field, the one with the latest EffectiveAt (the
// originating document's upload time, not the review time). Pure so ledger
// backends stay thin row feeders.
func SelectCorrection(records []entity.CorrectionRecord, vendor string) *entity.CorrectionRecord {
	key := NormalizeVendorKey(vendor)
	if key == "" {
		return nil
	}

	var best *entity.CorrectionRecord
	for i := range records {
		rec := &records[i]
		if !usableCorrection(rec) {
			continue
		}
		if !VendorKeysMatch(NormalizeVendorKey(rec.VendorKey), key) {
			continue
		}
		if best == nil || rec.EffectiveAt.After(best.EffectiveAt) {
			best = rec
		}
	}
	return best
}

// usableCorrection requires at least one taxonomy field; a correction that
// only fixed an amount or date must not feed future categorization.
func usableCorrection(rec *entity.CorrectionRecord) bool {
	return rec.SuggestedCategory != nil || rec.ExpenseArticle != nil || rec.Deductible != nil
}
