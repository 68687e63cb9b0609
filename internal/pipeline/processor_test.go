package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/extract"
	"github.com/ledgerline/receipt-recon/internal/review"
)

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Extract(context.Context, []byte, string) (extract.TextExtractionResult, error) {
	if f.err != nil {
		return extract.TextExtractionResult{}, f.err
	}
	return extract.TextExtractionResult{Provider: "fake", Text: f.text}, nil
}

type fakeDocRepo struct {
	docs map[uuid.UUID]*entity.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[uuid.UUID]*entity.Document{}}
}

func (f *fakeDocRepo) Create(_ context.Context, doc *entity.Document) error {
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocRepo) CreateIfAbsent(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error) {
	for _, existing := range f.docs {
		if existing.ProfileID == doc.ProfileID && existing.ContentHash == doc.ContentHash {
			return existing, true, nil
		}
	}
	if err := f.Create(ctx, doc); err != nil {
		return nil, false, err
	}
	return f.docs[doc.ID], false, nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, profileID, id uuid.UUID) (*entity.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.ProfileID != profileID {
		return nil, common.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocRepo) SetStatus(_ context.Context, profileID, id uuid.UUID, status constants.DocumentStatus) error {
	doc, ok := f.docs[id]
	if !ok || doc.ProfileID != profileID {
		return common.ErrNotFound
	}
	doc.Status = status
	return nil
}

func (f *fakeDocRepo) SaveFields(_ context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields, status constants.DocumentStatus) error {
	doc, ok := f.docs[id]
	if !ok || doc.ProfileID != profileID {
		return common.ErrNotFound
	}
	doc.Fields = fields
	doc.Status = status
	return nil
}

func (f *fakeDocRepo) SaveReview(_ context.Context, profileID, id uuid.UUID, fields *entity.ExtractedFields) error {
	doc, ok := f.docs[id]
	if !ok || doc.ProfileID != profileID {
		return common.ErrNotFound
	}
	doc.Fields = fields
	return nil
}

func (f *fakeDocRepo) ListCorrections(context.Context, uuid.UUID) ([]entity.CorrectionRecord, error) {
	return nil, nil
}

func (f *fakeDocRepo) ListCompleted(context.Context, uuid.UUID, *time.Time, *time.Time) ([]*entity.Document, error) {
	return nil, nil
}

func seedDoc(repo *fakeDocRepo, profileID uuid.UUID) uuid.UUID {
	id := uuid.New()
	repo.docs[id] = &entity.Document{
		ID:         id,
		ProfileID:  profileID,
		Filename:   "tesco-receipt.pdf",
		Status:     constants.DocumentUploaded,
		UploadedAt: time.Now().UTC(),
	}
	return id
}

const receiptText = "Tesco Stores Ltd\nDate: 13/02/2026\nMilk 1.20\nBread 1.10\nTOTAL 14.40\nThank you"

func TestProcess(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDocRepo()
	profileID := uuid.New()
	docID := seedDoc(repo, profileID)

	p := NewProcessor(nil, Config{}, &fakeOCR{text: receiptText}, repo, classify.NewCategorizer(nil, nil, nil))

	fields, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "tesco-receipt.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if fields.VendorName == nil || *fields.VendorName != "Tesco Stores Ltd" {
		t.Errorf("VendorName = %v", fields.VendorName)
	}
	if fields.TotalAmount == nil || *fields.TotalAmount != 14.40 {
		t.Errorf("TotalAmount = %v", fields.TotalAmount)
	}
	wantDate := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	if fields.TxDate == nil || !fields.TxDate.Equal(wantDate) {
		t.Errorf("TxDate = %v, want %v", fields.TxDate, wantDate)
	}
	if fields.SuggestedCategory == nil || *fields.SuggestedCategory != constants.Groceries {
		t.Errorf("SuggestedCategory = %v", fields.SuggestedCategory)
	}
	if fields.ReviewStatus != constants.ReviewPending {
		t.Errorf("ReviewStatus = %v", fields.ReviewStatus)
	}

	stored := repo.docs[docID]
	if stored.Status != constants.DocumentCompleted {
		t.Errorf("stored status = %v, want completed", stored.Status)
	}
	if stored.Fields != fields {
		t.Error("stored fields do not match the returned record")
	}
}

func TestProcess_OCRFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDocRepo()
	profileID := uuid.New()
	docID := seedDoc(repo, profileID)

	ocrErr := &extract.ExtractionError{Provider: "fake", Message: "endpoint unreachable"}
	p := NewProcessor(nil, Config{}, &fakeOCR{err: ocrErr}, repo, classify.NewCategorizer(nil, nil, nil))

	_, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "r.pdf")
	var extErr *extract.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Process() error = %v, want the provider error", err)
	}
	if repo.docs[docID].Status != constants.DocumentFailed {
		t.Errorf("stored status = %v, want failed", repo.docs[docID].Status)
	}
}

func TestProcess_EmptyTextDegradesToNilFields(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDocRepo()
	profileID := uuid.New()
	docID := seedDoc(repo, profileID)

	p := NewProcessor(nil, Config{}, &fakeOCR{text: ""}, repo, classify.NewCategorizer(nil, nil, nil))

	fields, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "uber_business_receipt_scan.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if repo.docs[docID].Status != constants.DocumentCompleted {
		t.Errorf("status = %v, want completed (empty text is not a failure)", repo.docs[docID].Status)
	}
	if fields.VendorName == nil || *fields.VendorName != "Uber Business" {
		t.Errorf("VendorName = %v, want the filename-derived vendor", fields.VendorName)
	}
	if fields.TotalAmount != nil || fields.TxDate != nil || fields.TextExcerpt != nil {
		t.Errorf("empty text should leave amount/date/excerpt nil: %+v", fields)
	}
}

type fakeDraftCreator struct {
	calls int
	err   error
}

func (f *fakeDraftCreator) CreateReceiptDraft(context.Context, uuid.UUID, uuid.UUID, *entity.ExtractedFields) (*entity.Transaction, bool, error) {
	f.calls++
	return &entity.Transaction{}, false, f.err
}

func TestProcess_DraftCreation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDocRepo()
	profileID := uuid.New()
	docID := seedDoc(repo, profileID)

	drafts := &fakeDraftCreator{}
	p := NewProcessor(nil, Config{}, &fakeOCR{text: receiptText}, repo, classify.NewCategorizer(nil, nil, nil))
	p.EnableDraftCreation(drafts)

	if _, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "r.pdf"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if drafts.calls != 1 {
		t.Errorf("draft creator called %d times, want 1", drafts.calls)
	}

	t.Run("draft failure does not fail the pass", func(t *testing.T) {
		docID := seedDoc(repo, profileID)
		p := NewProcessor(nil, Config{}, &fakeOCR{text: receiptText}, repo, classify.NewCategorizer(nil, nil, nil))
		p.EnableDraftCreation(&fakeDraftCreator{err: errors.New("store down")})

		if _, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "r.pdf"); err != nil {
			t.Fatalf("Process() error = %v, draft failure must not propagate", err)
		}
		if repo.docs[docID].Status != constants.DocumentCompleted {
			t.Error("document not completed after draft failure")
		}
	})
}

func TestApplyReview(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDocRepo()
	profileID := uuid.New()
	docID := seedDoc(repo, profileID)

	p := NewProcessor(nil, Config{}, &fakeOCR{text: receiptText}, repo, classify.NewCategorizer(nil, nil, nil))
	if _, err := p.Process(ctx, profileID, docID, []byte("pdfbytes"), "tesco-receipt.pdf"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	t.Run("equivalent edit confirms", func(t *testing.T) {
		stored := repo.docs[docID].Fields
		payload := []byte(`{
			"vendor_name": "Tesco Stores Ltd",
			"total_amount": "14.40",
			"transaction_date": "2026-02-13T00:00:00Z",
			"text_excerpt": ` + quoteJSON(*stored.TextExcerpt) + `,
			"suggested_category": "groceries",
			"expense_article": "household_supplies",
			"is_potentially_deductible": false
		}`)
		updated, err := p.ApplyReview(ctx, profileID, docID, payload)
		if err != nil {
			t.Fatalf("ApplyReview() error = %v", err)
		}
		if updated.ReviewStatus != constants.ReviewConfirmed {
			t.Errorf("ReviewStatus = %v, want confirmed", updated.ReviewStatus)
		}
		if len(updated.ReviewChanges) != 0 {
			t.Errorf("ReviewChanges = %+v, want none", updated.ReviewChanges)
		}
	})

	t.Run("category edit corrects and records the change", func(t *testing.T) {
		stored := repo.docs[docID].Fields
		payload := []byte(`{
			"vendor_name": "Tesco Stores Ltd",
			"total_amount": 14.40,
			"transaction_date": "2026-02-13",
			"text_excerpt": ` + quoteJSON(*stored.TextExcerpt) + `,
			"suggested_category": "household",
			"expense_article": "household_supplies",
			"is_potentially_deductible": false
		}`)
		updated, err := p.ApplyReview(ctx, profileID, docID, payload)
		if err != nil {
			t.Fatalf("ApplyReview() error = %v", err)
		}
		if updated.ReviewStatus != constants.ReviewCorrected {
			t.Errorf("ReviewStatus = %v, want corrected", updated.ReviewStatus)
		}
		if len(updated.ReviewChanges) != 1 || updated.ReviewChanges[0].Field != review.FieldSuggestedCategory {
			t.Fatalf("ReviewChanges = %+v, want one category change", updated.ReviewChanges)
		}
		if !review.HasTaxonomyChange(updated.ReviewChanges) {
			t.Error("category change must feed the correction ledger")
		}
	})

	t.Run("invalid payload rejected", func(t *testing.T) {
		if _, err := p.ApplyReview(ctx, profileID, docID, []byte(`{"surprise": 1}`)); err == nil {
			t.Fatal("ApplyReview() accepted an unknown field")
		}
	})

	t.Run("unprocessed document not reviewable", func(t *testing.T) {
		freshID := seedDoc(repo, profileID)
		if _, err := p.ApplyReview(ctx, profileID, freshID, []byte(`{}`)); err == nil {
			t.Fatal("ApplyReview() accepted an uploaded document")
		}
	})
}

func quoteJSON(s string) string {
	return `"` + s + `"`
}
