package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
)

// Transaction represents a ledger transaction for data transfer between
// layers. Rows are created either by the bank-feed importer or as receipt
// drafts by the reconciliation matcher; (ProfileID, ProviderTxID) is unique
// at the store boundary and is the dedup key for repeated submissions.
type Transaction struct {
	ID                   uuid.UUID                      `json:"id"`
	ProfileID            uuid.UUID                      `json:"profile_id"`
	ProviderTxID         string                         `json:"provider_transaction_id"`
	Amount               float64                        `json:"amount"` // signed; negative = expense
	Date                 time.Time                      `json:"date"`
	Description          string                         `json:"description"`
	Category             *string                        `json:"category,omitempty"`
	ReconciliationStatus constants.ReconciliationStatus `json:"reconciliation_status"`
	IgnoredCandidateIDs  []string                       `json:"ignored_candidate_ids,omitempty"`
	CreatedAt            time.Time                      `json:"created_at"`
	UpdatedAt            time.Time                      `json:"updated_at"`
}

// IsIgnoredCandidate reports whether candidateID was previously dismissed
// for this draft.
func (t *Transaction) IsIgnoredCandidate(candidateID string) bool {
	for _, id := range t.IgnoredCandidateIDs {
		if id == candidateID {
			return true
		}
	}
	return false
}
