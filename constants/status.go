package constants

// DocumentStatus is the canonical lifecycle status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentUploaded   DocumentStatus = "uploaded"   // created by the upload collaborator
	DocumentProcessing DocumentStatus = "processing" // extraction in progress
	DocumentCompleted  DocumentStatus = "completed"  // fields extracted and stored
	DocumentFailed     DocumentStatus = "failed"     // terminal extraction failure
)

// ReviewStatus tracks the human-review state of extracted fields.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewCorrected ReviewStatus = "corrected"
)

// ReconciliationStatus tracks whether a transaction has been linked
// to its bank counterpart.
type ReconciliationStatus string

const (
	ReconUnreconciled ReconciliationStatus = "unreconciled"
	ReconMatched      ReconciliationStatus = "matched"
	ReconIgnored      ReconciliationStatus = "ignored"
)

// CorrectionSourceManualReview identifies corrections derived from human review.
const CorrectionSourceManualReview = "manual_review"
