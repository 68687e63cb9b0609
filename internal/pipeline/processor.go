// Package pipeline coordinates a document's processing pass: OCR, field
// extraction, categorization, persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/extract"
	"github.com/ledgerline/receipt-recon/internal/parse"
	"github.com/ledgerline/receipt-recon/internal/repository"
	"github.com/ledgerline/receipt-recon/internal/review"
)

// Config holds behavior settings for the processing pass.
type Config struct {
	ExcerptLimit int // default 500
}

// DraftCreator turns a completed extraction into a draft ledger transaction.
// Implemented by reconcile.Matcher.
type DraftCreator interface {
	CreateReceiptDraft(ctx context.Context, profileID, documentID uuid.UUID, fields *entity.ExtractedFields) (*entity.Transaction, bool, error)
}

type Processor struct {
	logger      *slog.Logger
	cfg         Config
	ocr         extract.TextExtractor
	docs        repository.DocumentRepository
	categorizer *classify.Categorizer
	drafts      DraftCreator // optional
}

func NewProcessor(
	logger *slog.Logger,
	cfg Config,
	ocr extract.TextExtractor,
	docs repository.DocumentRepository,
	categorizer *classify.Categorizer,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = 500
	}
	return &Processor{
		logger:      logger,
		cfg:         cfg,
		ocr:         ocr,
		docs:        docs,
		categorizer: categorizer,
	}
}

// EnableDraftCreation makes every completed pass also upsert a draft
// transaction for the document. Safe to leave unset; extraction then stops
// at the stored fields.
func (p *Processor) EnableDraftCreation(d DraftCreator) {
	p.drafts = d
}

// Process runs one extraction pass over the document's bytes and persists
// the structured result. A provider failure transitions the document to
// failed and is returned to the caller; retry means resubmission. Empty or
// unreadable text is not a failure: the remaining stages degrade to nil
// fields and the record waits for human review.
func (p *Processor) Process(ctx context.Context, profileID, documentID uuid.UUID, data []byte, filename string) (*entity.ExtractedFields, error) {
	logger := p.logger
	if reqID := common.RequestIDFromContext(ctx); reqID != "" {
		logger = logger.With("req_id", reqID)
	}

	if err := p.docs.SetStatus(ctx, profileID, documentID, constants.DocumentProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	res, err := p.ocr.Extract(ctx, data, filename)
	if err != nil {
		logger.Error("processor.ocr.failed", "document_id", documentID, "error", err)
		if stErr := p.docs.SetStatus(ctx, profileID, documentID, constants.DocumentFailed); stErr != nil {
			logger.Error("failed to mark document failed", "document_id", documentID, "error", stErr)
		}
		return nil, err
	}
	logger.Debug("processor ocr success",
		"document_id", documentID,
		"provider", res.Provider,
		"text_bytes", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	fields := p.extractFields(ctx, profileID, res.Text, filename)

	if err := p.docs.SaveFields(ctx, profileID, documentID, fields, constants.DocumentCompleted); err != nil {
		return nil, fmt.Errorf("save fields: %w", err)
	}

	logger.Info("document processed",
		"document_id", documentID,
		"vendor", strOrEmpty(fields.VendorName),
		"total", floatOrZero(fields.TotalAmount),
		"category", strOrEmpty(fields.SuggestedCategory),
	)

	if p.drafts != nil {
		// draft creation is idempotent on the document, so a failure here is
		// recoverable by resubmitting; the extracted fields are already saved
		if _, _, err := p.drafts.CreateReceiptDraft(ctx, profileID, documentID, fields); err != nil {
			logger.Warn("draft transaction not created", "document_id", documentID, "error", err)
		}
	}
	return fields, nil
}

// extractFields runs the pure heuristics and the categorizer over raw text.
func (p *Processor) extractFields(ctx context.Context, profileID uuid.UUID, text, filename string) *entity.ExtractedFields {
	fields := &entity.ExtractedFields{
		VendorName:   parse.InferVendorName(text, filename),
		TotalAmount:  parse.ExtractTotalAmount(text),
		TxDate:       parse.ExtractTransactionDate(text),
		TextExcerpt:  parse.BuildTextExcerpt(text, p.cfg.ExcerptLimit),
		ReviewStatus: constants.ReviewPending,
	}

	vendor := strOrEmpty(fields.VendorName)
	description := strOrEmpty(fields.TextExcerpt)

	result, err := p.categorizer.Categorize(ctx, profileID, vendor, description)
	if err != nil {
		// a ledger read failure must not sink the whole pass; fall back to
		// the static rules and leave the correction for the next document
		p.logger.Warn("correction lookup failed, using rules", "profile_id", profileID, "error", err)
		result = classify.SuggestFromRules(constants.DefaultCategoryRules, vendor+" "+description)
	}
	fields.SuggestedCategory = result.Category
	fields.ExpenseArticle = result.Article
	fields.Deductible = result.Deductible
	return fields
}

// ApplyReview validates a human edit, computes the normalized change-set
// against the stored record, and persists the review outcome. An edit whose
// normalized values all match the stored record confirms the extraction;
// otherwise the record is marked corrected and carries the change-set.
func (p *Processor) ApplyReview(ctx context.Context, profileID, documentID uuid.UUID, payload []byte) (*entity.ExtractedFields, error) {
	doc, err := p.docs.GetByID(ctx, profileID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != constants.DocumentCompleted || doc.Fields == nil {
		return nil, fmt.Errorf("document %s not reviewable in status %s", documentID, doc.Status)
	}

	edit, err := review.DecodeEdit(payload)
	if err != nil {
		return nil, err
	}

	changes := review.Diff(review.Snapshot(doc.Fields), edit)

	updated := review.ToFields(edit)
	if len(changes) == 0 {
		updated.ReviewStatus = constants.ReviewConfirmed
		updated.ReviewChanges = nil
	} else {
		updated.ReviewStatus = constants.ReviewCorrected
		updated.ReviewChanges = changes
	}

	if err := p.docs.SaveReview(ctx, profileID, documentID, updated); err != nil {
		return nil, err
	}

	p.logger.Info("review applied",
		"document_id", documentID,
		"review_status", updated.ReviewStatus,
		"changed_fields", len(changes),
		"feeds_ledger", review.HasTaxonomyChange(changes),
	)
	return updated, nil
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
