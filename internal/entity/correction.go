package entity

import "time"

// CorrectionRecord is a read model derived from documents whose review ended
// in a correction. It is never stored as its own row; the ledger assembles it
// from the corrected document on demand.
type CorrectionRecord struct {
	VendorKey         string    `json:"vendor_key"`
	SuggestedCategory *string   `json:"suggested_category,omitempty"`
	ExpenseArticle    *string   `json:"expense_article,omitempty"`
	Deductible        *bool     `json:"is_potentially_deductible,omitempty"`
	Source            string    `json:"source"`
	EffectiveAt       time.Time `json:"effective_at"` // originating document upload time
}

// CategoryResult is the categorizer's answer for one vendor/description pair.
// All fields nil means neither a correction nor a keyword rule applied.
type CategoryResult struct {
	Category   *string `json:"category,omitempty"`
	Article    *string `json:"expense_article,omitempty"`
	Deductible *bool   `json:"is_potentially_deductible,omitempty"`
}
