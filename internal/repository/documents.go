package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/review"
)

// correctionScanLimit bounds how many corrected documents the ledger reads
// per lookup. Newest first, so older corrections beyond the window cannot
// shadow a recent one; a vendor whose only correction has aged past the
// window falls back to the rule table (see ListCorrections).
const correctionScanLimit = 200

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// CreateIfAbsent atomically inserts the document unless one with the
	// same (profile_id, content_hash) already exists, in which case the
	// existing document is returned with duplicated = true and nothing is
	// written. The document must carry a non-empty ContentHash.
	CreateIfAbsent(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error)
	GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Document, error)
	SetStatus(ctx context.Context, profileID, id uuid.UUID, status constants.DocumentStatus) error
	// SaveFields stores a processing result and moves the document to the
	// given terminal status in one statement.
	SaveFields(ctx context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields, status constants.DocumentStatus) error
	// SaveReview persists the outcome of a human review pass.
	SaveReview(ctx context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields) error
	// ListCorrections assembles the correction read model from corrected
	// documents, newest upload first. The scan is bounded to the most
	// recently uploaded corrected documents (correctionScanLimit); vendors
	// corrected only outside that window carry no override.
	ListCorrections(ctx context.Context, profileID uuid.UUID) ([]entity.CorrectionRecord, error)
	// ListCompleted returns completed documents for the profile, optionally
	// bounded by transaction date, ordered by transaction date.
	ListCompleted(ctx context.Context, profileID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Document, error)
}

type documentRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewDocumentRepository(store *Store, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{store: store, logger: logger}
}

var documentColumns = []string{
	"id", "profile_id", "filename", "content_hash", "status", "uploaded_at",
	"vendor_name", "total_amount", "tx_date", "text_excerpt",
	"suggested_category", "expense_article", "deductible",
	"review_status", "review_changes",
}

func (r *documentRepository) Create(ctx context.Context, doc *entity.Document) error {
	reviewStatus := constants.ReviewPending
	if doc.Fields != nil && doc.Fields.ReviewStatus != "" {
		reviewStatus = doc.Fields.ReviewStatus
	}
	q := r.store.stmt().Insert("documents").
		Columns("id", "profile_id", "filename", "content_hash", "status", "uploaded_at", "review_status").
		Values(
			doc.ID.String(),
			doc.ProfileID.String(),
			doc.Filename,
			doc.ContentHash,
			string(doc.Status),
			doc.UploadedAt.UTC().Format(timeLayout),
			string(reviewStatus),
		)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := r.store.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		r.logger.Error("failed to create document", "document_id", doc.ID, "error", err)
		return common.WrapError(err, "create document")
	}
	return nil
}

func (r *documentRepository) CreateIfAbsent(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error) {
	if doc.ContentHash == "" {
		return nil, false, fmt.Errorf("document content hash is required: %w", common.ErrInvalidInput)
	}
	reviewStatus := constants.ReviewPending
	if doc.Fields != nil && doc.Fields.ReviewStatus != "" {
		reviewStatus = doc.Fields.ReviewStatus
	}
	q := r.store.stmt().Insert("documents").
		Columns("id", "profile_id", "filename", "content_hash", "status", "uploaded_at", "review_status").
		Values(
			doc.ID.String(),
			doc.ProfileID.String(),
			doc.Filename,
			doc.ContentHash,
			string(doc.Status),
			doc.UploadedAt.UTC().Format(timeLayout),
			string(reviewStatus),
		).
		Suffix("ON CONFLICT (profile_id, content_hash) WHERE content_hash <> '' DO NOTHING")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, false, err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to create document", "document_id", doc.ID, "error", err)
		return nil, false, common.WrapError(err, "create document")
	}

	// Either way a row with this hash now exists; re-read it so racing
	// callers and post-restart resubmissions converge to one document.
	stored, err := r.getByContentHash(ctx, doc.ProfileID, doc.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return stored, false, nil
	}
	return stored, true, nil
}

func (r *documentRepository) getByContentHash(ctx context.Context, profileID uuid.UUID, contentHash string) (*entity.Document, error) {
	q := r.store.stmt().Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"profile_id": profileID.String(), "content_hash": contentHash})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(r.store.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return doc, err
}

func (r *documentRepository) GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Document, error) {
	q := r.store.stmt().Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(r.store.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return doc, err
}

func (r *documentRepository) SetStatus(ctx context.Context, profileID, id uuid.UUID, status constants.DocumentStatus) error {
	q := r.store.stmt().Update("documents").
		Set("status", string(status)).
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to set document status", "document_id", id, "status", status, "error", err)
		return common.WrapError(err, "set document status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *documentRepository) SaveFields(ctx context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields, status constants.DocumentStatus) error {
	q := r.store.stmt().Update("documents").
		Set("status", string(status)).
		Set("vendor_name", fields.VendorName).
		Set("total_amount", fields.TotalAmount).
		Set("tx_date", formatDatePtr(fields.TxDate)).
		Set("text_excerpt", fields.TextExcerpt).
		Set("suggested_category", fields.SuggestedCategory).
		Set("expense_article", fields.ExpenseArticle).
		Set("deductible", fields.Deductible).
		Set("review_status", string(fields.ReviewStatus)).
		// a fresh pass resets any earlier review outcome; a stale change-set
		// must not survive alongside a pending status
		Set("review_changes", nil).
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to save extracted fields", "document_id", id, "error", err)
		return common.WrapError(err, "save extracted fields")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *documentRepository) SaveReview(ctx context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields) error {
	var changesJSON *string
	if len(fields.ReviewChanges) > 0 {
		b, err := json.Marshal(fields.ReviewChanges)
		if err != nil {
			return common.WrapError(err, "encode review changes")
		}
		s := string(b)
		changesJSON = &s
	}
	q := r.store.stmt().Update("documents").
		Set("vendor_name", fields.VendorName).
		Set("total_amount", fields.TotalAmount).
		Set("tx_date", formatDatePtr(fields.TxDate)).
		Set("text_excerpt", fields.TextExcerpt).
		Set("suggested_category", fields.SuggestedCategory).
		Set("expense_article", fields.ExpenseArticle).
		Set("deductible", fields.Deductible).
		Set("review_status", string(fields.ReviewStatus)).
		Set("review_changes", changesJSON).
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to save review", "document_id", id, "error", err)
		return common.WrapError(err, "save review")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *documentRepository) ListCorrections(ctx context.Context, profileID uuid.UUID) ([]entity.CorrectionRecord, error) {
	q := r.store.stmt().
		Select("vendor_name", "suggested_category", "expense_article", "deductible", "uploaded_at", "review_changes").
		From("documents").
		Where(squirrel.Eq{
			"profile_id":    profileID.String(),
			"review_status": string(constants.ReviewCorrected),
		}).
		OrderBy("uploaded_at DESC").
		Limit(correctionScanLimit)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.store.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to list corrections", "profile_id", profileID, "error", err)
		return nil, common.WrapError(err, "list corrections")
	}
	defer rows.Close()

	var records []entity.CorrectionRecord
	for rows.Next() {
		var (
			vendor, category, article, changesJSON *string
			deductible                             *bool
			uploadedAt                             string
		)
		if err := rows.Scan(&vendor, &category, &article, &deductible, &uploadedAt, &changesJSON); err != nil {
			return nil, err
		}
		if vendor == nil || *vendor == "" || changesJSON == nil {
			continue
		}
		var changes []entity.FieldChange
		if err := json.Unmarshal([]byte(*changesJSON), &changes); err != nil || len(changes) == 0 {
			// malformed correction rows yield no usable correction, never an error
			continue
		}
		if !review.HasTaxonomyChange(changes) {
			continue
		}
		effectiveAt, err := time.Parse(timeLayout, uploadedAt)
		if err != nil {
			continue
		}
		records = append(records, entity.CorrectionRecord{
			VendorKey:         classify.NormalizeVendorKey(*vendor),
			SuggestedCategory: category,
			ExpenseArticle:    article,
			Deductible:        deductible,
			Source:            constants.CorrectionSourceManualReview,
			EffectiveAt:       effectiveAt,
		})
	}
	return records, rows.Err()
}

func (r *documentRepository) ListCompleted(ctx context.Context, profileID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Document, error) {
	q := r.store.stmt().Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{
			"profile_id": profileID.String(),
			"status":     string(constants.DocumentCompleted),
		})
	// tx_date is stored as ISO text, so lexicographic comparison is date order
	if fromDate != nil {
		q = q.Where(squirrel.GtOrEq{"tx_date": fromDate.UTC().Format(dateLayout)})
	}
	if toDate != nil {
		q = q.Where(squirrel.LtOrEq{"tx_date": toDate.UTC().Format(dateLayout)})
	}
	q = q.OrderBy("tx_date")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.store.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "profile_id", profileID, "error", err)
		return nil, common.WrapError(err, "list completed documents")
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		idStr, profileStr, filename, contentHash   string
		status, uploadedAt                         string
		vendor, txDate, excerpt, category, article *string
		amount                                     *float64
		deductible                                 *bool
		reviewStatus                               string
		changesJSON                                *string
	)
	if err := row.Scan(
		&idStr, &profileStr, &filename, &contentHash, &status, &uploadedAt,
		&vendor, &amount, &txDate, &excerpt,
		&category, &article, &deductible,
		&reviewStatus, &changesJSON,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	profileID, err := uuid.Parse(profileStr)
	if err != nil {
		return nil, err
	}
	uploaded, err := time.Parse(timeLayout, uploadedAt)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		ID:          id,
		ProfileID:   profileID,
		Filename:    filename,
		ContentHash: contentHash,
		Status:      constants.DocumentStatus(status),
		UploadedAt:  uploaded,
	}

	hasFields := doc.Status == constants.DocumentCompleted ||
		vendor != nil || amount != nil || txDate != nil || excerpt != nil ||
		category != nil || article != nil || deductible != nil ||
		constants.ReviewStatus(reviewStatus) != constants.ReviewPending
	if hasFields {
		fields := &entity.ExtractedFields{
			VendorName:        vendor,
			TotalAmount:       amount,
			TextExcerpt:       excerpt,
			SuggestedCategory: category,
			ExpenseArticle:    article,
			Deductible:        deductible,
			ReviewStatus:      constants.ReviewStatus(reviewStatus),
		}
		if txDate != nil {
			if d, err := time.Parse(dateLayout, *txDate); err == nil {
				fields.TxDate = &d
			}
		}
		if changesJSON != nil {
			_ = json.Unmarshal([]byte(*changesJSON), &fields.ReviewChanges)
		}
		doc.Fields = fields
	}
	return doc, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}
