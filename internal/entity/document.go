package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
)

// Document represents an uploaded receipt or invoice for data transfer
// between layers. Fields is nil until a processing pass completes.
// ContentHash is the sha256 of the document bytes; (ProfileID, ContentHash)
// is unique at the store boundary and is the dedup key for resubmissions.
type Document struct {
	ID          uuid.UUID                `json:"id"`
	ProfileID   uuid.UUID                `json:"profile_id"`
	Filename    string                   `json:"filename"`
	ContentHash string                   `json:"content_hash,omitempty"`
	Status      constants.DocumentStatus `json:"status"`
	UploadedAt  time.Time                `json:"uploaded_at"`
	Fields      *ExtractedFields         `json:"fields,omitempty"`
}

// ExtractedFields is the structured record parsed from a document's OCR text.
// Every extraction field is optional: a nil value means the heuristics were
// inconclusive and the record needs human review.
type ExtractedFields struct {
	VendorName        *string                `json:"vendor_name,omitempty"`
	TotalAmount       *float64               `json:"total_amount,omitempty"`
	TxDate            *time.Time             `json:"transaction_date,omitempty"`
	TextExcerpt       *string                `json:"text_excerpt,omitempty"`
	SuggestedCategory *string                `json:"suggested_category,omitempty"`
	ExpenseArticle    *string                `json:"expense_article,omitempty"`
	Deductible        *bool                  `json:"is_potentially_deductible,omitempty"`
	ReviewStatus      constants.ReviewStatus `json:"review_status"`
	ReviewChanges     []FieldChange          `json:"review_changes,omitempty"`
}

// FieldChange records one reviewed field edit in canonical string form.
// ReviewChanges is non-empty only when ReviewStatus is corrected.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}
