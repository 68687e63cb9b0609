// Package reconcile turns extracted receipts into draft ledger transactions
// and links them to their bank-reported counterparts.
package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/repository"
)

// DraftProviderPrefix marks transactions synthesized from documents, as
// opposed to rows imported from a bank feed.
const DraftProviderPrefix = "receipt-"

// Config holds candidate-matching thresholds and bounds.
type Config struct {
	CandidateLimit  int     // max candidates surfaced per draft
	AmountTolerance float64 // max absolute amount difference
	DateWindowDays  int     // max days between draft and candidate dates
}

type Matcher struct {
	txRepo repository.TransactionRepository
	cfg    Config
	logger *slog.Logger
}

func NewMatcher(txRepo repository.TransactionRepository, cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 5
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = 0.5
	}
	if cfg.DateWindowDays <= 0 {
		cfg.DateWindowDays = 7
	}
	return &Matcher{txRepo: txRepo, cfg: cfg, logger: logger}
}

// DraftProviderTxID derives the deterministic dedup key for a receipt draft:
// a fixed prefix plus a stable digest of (owner, document). Reprocessing the
// same document always lands on the same key.
func DraftProviderTxID(profileID, documentID uuid.UUID) string {
	sum := sha256.Sum256([]byte(profileID.String() + "|" + documentID.String()))
	return DraftProviderPrefix + hex.EncodeToString(sum[:16])
}

// CreateReceiptDraft builds an expense draft from extracted fields and
// inserts it unless one already exists for this document. duplicated = true
// means a prior submission already created the row and nothing was written;
// that is a normal idempotent outcome, not an error.
func (m *Matcher) CreateReceiptDraft(ctx context.Context, profileID, documentID uuid.UUID, fields *entity.ExtractedFields) (*entity.Transaction, bool, error) {
	if fields == nil {
		return nil, false, fmt.Errorf("no extracted fields for document %s", documentID)
	}

	vendor := "unknown"
	if fields.VendorName != nil && *fields.VendorName != "" {
		vendor = *fields.VendorName
	}
	amount := 0.0
	if fields.TotalAmount != nil {
		amount = -math.Abs(*fields.TotalAmount) // expense sign convention
	}
	date := time.Now().UTC()
	if fields.TxDate != nil {
		date = *fields.TxDate
	}

	draft := &entity.Transaction{
		ID:                   uuid.New(),
		ProfileID:            profileID,
		ProviderTxID:         DraftProviderTxID(profileID, documentID),
		Amount:               amount,
		Date:                 date,
		Description:          "Receipt draft: " + vendor,
		Category:             fields.SuggestedCategory,
		ReconciliationStatus: constants.ReconUnreconciled,
	}

	stored, duplicated, err := m.txRepo.InsertIfAbsent(ctx, draft)
	if err != nil {
		return nil, false, err
	}
	m.logger.Info("receipt draft resolved",
		"profile_id", profileID,
		"document_id", documentID,
		"transaction_id", stored.ID,
		"duplicated", duplicated,
	)
	return stored, duplicated, nil
}

// ListCandidates surfaces real unreconciled transactions close to the draft
// in amount and date, ranked nearest first, previously dismissed candidates
// excluded.
func (m *Matcher) ListCandidates(ctx context.Context, profileID, draftID uuid.UUID) ([]*entity.Transaction, error) {
	draft, err := m.txRepo.GetByID(ctx, profileID, draftID)
	if err != nil {
		return nil, err
	}

	exclude := append([]string{draft.ID.String()}, draft.IgnoredCandidateIDs...)
	candidates, err := m.txRepo.ListUnreconciled(ctx, profileID, exclude, DraftProviderPrefix)
	if err != nil {
		return nil, err
	}

	type scored struct {
		tx         *entity.Transaction
		amountDiff float64
		dayDiff    int
	}
	var kept []scored
	for _, cand := range candidates {
		amountDiff := math.Abs(cand.Amount - draft.Amount)
		dayDiff := daysApart(cand.Date, draft.Date)
		if amountDiff > m.cfg.AmountTolerance || dayDiff > m.cfg.DateWindowDays {
			continue
		}
		kept = append(kept, scored{tx: cand, amountDiff: amountDiff, dayDiff: dayDiff})
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].amountDiff != kept[j].amountDiff {
			return kept[i].amountDiff < kept[j].amountDiff
		}
		if kept[i].dayDiff != kept[j].dayDiff {
			return kept[i].dayDiff < kept[j].dayDiff
		}
		return kept[i].tx.ID.String() < kept[j].tx.ID.String()
	})

	if len(kept) > m.cfg.CandidateLimit {
		kept = kept[:m.cfg.CandidateLimit]
	}
	out := make([]*entity.Transaction, len(kept))
	for i, s := range kept {
		out[i] = s.tx
	}
	return out, nil
}

// IgnoreCandidate dismisses a candidate for this draft; later candidate
// queries will not surface it again. Dismissing twice is a no-op.
func (m *Matcher) IgnoreCandidate(ctx context.Context, profileID, draftID, candidateID uuid.UUID) error {
	draft, err := m.txRepo.GetByID(ctx, profileID, draftID)
	if err != nil {
		return err
	}
	if draft.IsIgnoredCandidate(candidateID.String()) {
		return nil
	}
	ignored := append(draft.IgnoredCandidateIDs, candidateID.String())
	if err := m.txRepo.SetIgnoredCandidates(ctx, profileID, draftID, ignored); err != nil {
		return err
	}
	m.logger.Info("candidate dismissed",
		"profile_id", profileID, "draft_id", draftID, "candidate_id", candidateID)
	return nil
}

// AcceptCandidate links the draft to its bank counterpart; matched is a
// terminal state for the pair.
func (m *Matcher) AcceptCandidate(ctx context.Context, profileID, draftID, candidateID uuid.UUID) error {
	return m.txRepo.MarkMatchedPair(ctx, profileID, draftID, candidateID)
}

func daysApart(a, b time.Time) int {
	d := a.Truncate(24 * time.Hour).Sub(b.Truncate(24 * time.Hour))
	days := int(d.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
