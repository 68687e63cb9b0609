package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/classify"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/review"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(context.Background(), common.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    ":memory:",
	}, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	docs := NewDocumentRepository(store, nil)
	profileID := uuid.New()

	doc := &entity.Document{
		ID:         uuid.New(),
		ProfileID:  profileID,
		Filename:   "tesco-receipt.pdf",
		Status:     constants.DocumentUploaded,
		UploadedAt: time.Now().UTC(),
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := docs.GetByID(ctx, profileID, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != constants.DocumentUploaded {
		t.Errorf("Status = %v", got.Status)
	}
	if got.Fields != nil {
		t.Errorf("fresh document has Fields = %+v, want nil", got.Fields)
	}

	if err := docs.SetStatus(ctx, profileID, doc.ID, constants.DocumentProcessing); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	vendor := "Tesco Stores Ltd"
	amount := 14.40
	txDate := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	cat := constants.Groceries
	fields := &entity.ExtractedFields{
		VendorName:        &vendor,
		TotalAmount:       &amount,
		TxDate:            &txDate,
		SuggestedCategory: &cat,
		ReviewStatus:      constants.ReviewPending,
	}
	if err := docs.SaveFields(ctx, profileID, doc.ID, fields, constants.DocumentCompleted); err != nil {
		t.Fatalf("SaveFields() error = %v", err)
	}

	got, err = docs.GetByID(ctx, profileID, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() after save error = %v", err)
	}
	if got.Status != constants.DocumentCompleted {
		t.Errorf("Status = %v, want completed", got.Status)
	}
	if got.Fields == nil {
		t.Fatal("completed document has nil Fields")
	}
	if got.Fields.VendorName == nil || *got.Fields.VendorName != vendor {
		t.Errorf("VendorName = %v", got.Fields.VendorName)
	}
	if got.Fields.TotalAmount == nil || *got.Fields.TotalAmount != amount {
		t.Errorf("TotalAmount = %v", got.Fields.TotalAmount)
	}
	if got.Fields.TxDate == nil || !got.Fields.TxDate.Equal(txDate) {
		t.Errorf("TxDate = %v, want %v", got.Fields.TxDate, txDate)
	}

	t.Run("wrong profile is not found", func(t *testing.T) {
		if _, err := docs.GetByID(ctx, uuid.New(), doc.ID); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("GetByID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing document status update is not found", func(t *testing.T) {
		err := docs.SetStatus(ctx, profileID, uuid.New(), constants.DocumentFailed)
		if !errors.Is(err, common.ErrNotFound) {
			t.Errorf("SetStatus() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDocumentCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	docs := NewDocumentRepository(store, nil)
	profileID := uuid.New()

	doc := &entity.Document{
		ID:          uuid.New(),
		ProfileID:   profileID,
		Filename:    "tesco-receipt.pdf",
		ContentHash: "aabbccdd00112233",
		Status:      constants.DocumentUploaded,
		UploadedAt:  time.Now().UTC(),
	}
	first, dup, err := docs.CreateIfAbsent(ctx, doc)
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if dup {
		t.Error("first insert reported duplicated = true")
	}
	if first.ID != doc.ID {
		t.Errorf("stored ID = %s, want %s", first.ID, doc.ID)
	}
	if first.ContentHash != doc.ContentHash {
		t.Errorf("ContentHash = %q", first.ContentHash)
	}

	replay := *doc
	replay.ID = uuid.New() // same content, resubmitted under a new id
	replay.Filename = "tesco-receipt-copy.pdf"
	second, dup, err := docs.CreateIfAbsent(ctx, &replay)
	if err != nil {
		t.Fatalf("replay CreateIfAbsent() error = %v", err)
	}
	if !dup {
		t.Error("replay reported duplicated = false")
	}
	if second.ID != doc.ID {
		t.Errorf("replay returned row %s, want the original %s", second.ID, doc.ID)
	}
	if second.Filename != "tesco-receipt.pdf" {
		t.Errorf("replay Filename = %q, want the original's", second.Filename)
	}

	t.Run("same content under another profile inserts", func(t *testing.T) {
		other := *doc
		other.ID = uuid.New()
		other.ProfileID = uuid.New()
		_, dup, err := docs.CreateIfAbsent(ctx, &other)
		if err != nil {
			t.Fatalf("CreateIfAbsent() error = %v", err)
		}
		if dup {
			t.Error("another profile's insert reported duplicated = true")
		}
	})

	t.Run("empty content hash rejected", func(t *testing.T) {
		bad := &entity.Document{
			ID:         uuid.New(),
			ProfileID:  profileID,
			Filename:   "nohash.pdf",
			Status:     constants.DocumentUploaded,
			UploadedAt: time.Now().UTC(),
		}
		if _, _, err := docs.CreateIfAbsent(ctx, bad); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("CreateIfAbsent() error = %v, want ErrInvalidInput", err)
		}
	})
}

// Reprocessing a document that was already reviewed must reset the review
// outcome as a whole: a pending status may not keep the old change-set.
func TestSaveFieldsResetsReviewChanges(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	docs := NewDocumentRepository(store, nil)
	profileID := uuid.New()

	doc := &entity.Document{
		ID:         uuid.New(),
		ProfileID:  profileID,
		Filename:   "tesco-receipt.pdf",
		Status:     constants.DocumentUploaded,
		UploadedAt: time.Now().UTC(),
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}

	vendor := "Tesco Stores Ltd"
	cat := "office_supplies"
	corrected := &entity.ExtractedFields{
		VendorName:        &vendor,
		SuggestedCategory: &cat,
		ReviewStatus:      constants.ReviewCorrected,
		ReviewChanges: []entity.FieldChange{
			{Field: review.FieldSuggestedCategory, Before: "food_and_drink", After: cat},
		},
	}
	if err := docs.SaveFields(ctx, profileID, doc.ID, corrected, constants.DocumentCompleted); err != nil {
		t.Fatal(err)
	}
	if err := docs.SaveReview(ctx, profileID, doc.ID, corrected); err != nil {
		t.Fatal(err)
	}

	// fresh extraction pass over the same document
	reprocessed := &entity.ExtractedFields{
		VendorName:   &vendor,
		ReviewStatus: constants.ReviewPending,
	}
	if err := docs.SaveFields(ctx, profileID, doc.ID, reprocessed, constants.DocumentCompleted); err != nil {
		t.Fatalf("SaveFields() after review error = %v", err)
	}

	got, err := docs.GetByID(ctx, profileID, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields == nil {
		t.Fatal("reprocessed document has nil Fields")
	}
	if got.Fields.ReviewStatus != constants.ReviewPending {
		t.Errorf("ReviewStatus = %v, want pending", got.Fields.ReviewStatus)
	}
	if len(got.Fields.ReviewChanges) != 0 {
		t.Errorf("ReviewChanges = %+v, want empty after reprocessing", got.Fields.ReviewChanges)
	}

	records, err := docs.ListCorrections(ctx, profileID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("reprocessed document still feeds the correction ledger: %+v", records)
	}
}

func TestListCorrections(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	docs := NewDocumentRepository(store, nil)
	profileID := uuid.New()

	save := func(t *testing.T, filename, vendor string, category *string, changes []entity.FieldChange, uploadedAt time.Time) {
		t.Helper()
		doc := &entity.Document{
			ID:         uuid.New(),
			ProfileID:  profileID,
			Filename:   filename,
			Status:     constants.DocumentUploaded,
			UploadedAt: uploadedAt,
		}
		if err := docs.Create(ctx, doc); err != nil {
			t.Fatal(err)
		}
		v := vendor
		fields := &entity.ExtractedFields{
			VendorName:        &v,
			SuggestedCategory: category,
			ReviewStatus:      constants.ReviewCorrected,
			ReviewChanges:     changes,
		}
		if err := docs.SaveFields(ctx, profileID, doc.ID, fields, constants.DocumentCompleted); err != nil {
			t.Fatal(err)
		}
		if err := docs.SaveReview(ctx, profileID, doc.ID, fields); err != nil {
			t.Fatal(err)
		}
	}

	// a category the keyword rules would never produce, so the ledger
	// override is distinguishable from the rule fallback
	cat := "office_supplies"
	taxonomyChange := []entity.FieldChange{
		{Field: review.FieldSuggestedCategory, Before: "food_and_drink", After: cat},
	}
	amountChange := []entity.FieldChange{
		{Field: review.FieldTotalAmount, Before: "1.00", After: "2.00"},
	}

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	save(t, "a.pdf", "TESCO  Stores UK", &cat, taxonomyChange, base)
	save(t, "b.pdf", "Costa Coffee", &cat, amountChange, base.Add(time.Hour))

	records, err := docs.ListCorrections(ctx, profileID)
	if err != nil {
		t.Fatalf("ListCorrections() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (amount-only review excluded): %+v", len(records), records)
	}
	rec := records[0]
	if rec.VendorKey != "tesco stores uk" {
		t.Errorf("VendorKey = %q, want normalized key", rec.VendorKey)
	}
	if rec.SuggestedCategory == nil || *rec.SuggestedCategory != cat {
		t.Errorf("SuggestedCategory = %v", rec.SuggestedCategory)
	}
	if rec.Source != constants.CorrectionSourceManualReview {
		t.Errorf("Source = %q", rec.Source)
	}
	if !rec.EffectiveAt.Equal(base) {
		t.Errorf("EffectiveAt = %v, want the upload time %v", rec.EffectiveAt, base)
	}

	t.Run("other profile sees nothing", func(t *testing.T) {
		records, err := docs.ListCorrections(ctx, uuid.New())
		if err != nil {
			t.Fatalf("ListCorrections() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("got %d records for an unrelated profile", len(records))
		}
	})

	t.Run("ledger feeds future categorization", func(t *testing.T) {
		ledger := NewCorrectionLedger(docs, nil)
		c := classify.NewCategorizer(ledger, nil, nil)

		result, err := c.Categorize(ctx, profileID, "TESCO Stores UK LTD", "weekly shop")
		if err != nil {
			t.Fatalf("Categorize() error = %v", err)
		}
		if result.Category == nil || *result.Category != cat {
			t.Errorf("Category = %v, want the stored correction %q", result.Category, cat)
		}
	})
}

func TestListCompleted(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	docs := NewDocumentRepository(store, nil)
	profileID := uuid.New()

	add := func(t *testing.T, day time.Time, status constants.DocumentStatus) {
		t.Helper()
		doc := &entity.Document{
			ID:         uuid.New(),
			ProfileID:  profileID,
			Filename:   "r.pdf",
			Status:     constants.DocumentUploaded,
			UploadedAt: time.Now().UTC(),
		}
		if err := docs.Create(ctx, doc); err != nil {
			t.Fatal(err)
		}
		d := day
		fields := &entity.ExtractedFields{TxDate: &d, ReviewStatus: constants.ReviewPending}
		if err := docs.SaveFields(ctx, profileID, doc.ID, fields, status); err != nil {
			t.Fatal(err)
		}
	}

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	add(t, jan, constants.DocumentCompleted)
	add(t, feb, constants.DocumentCompleted)
	add(t, mar, constants.DocumentCompleted)
	add(t, feb, constants.DocumentFailed)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	got, err := docs.ListCompleted(ctx, profileID, &from, &to)
	if err != nil {
		t.Fatalf("ListCompleted() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d documents, want only the completed February one", len(got))
	}
	if got[0].Fields == nil || got[0].Fields.TxDate == nil || !got[0].Fields.TxDate.Equal(feb) {
		t.Errorf("unexpected document in range: %+v", got[0])
	}

	all, err := docs.ListCompleted(ctx, profileID, nil, nil)
	if err != nil {
		t.Fatalf("ListCompleted() unbounded error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d documents unbounded, want 3", len(all))
	}
}

func TestTransactionInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	txns := NewTransactionRepository(store, nil)
	profileID := uuid.New()

	tx := &entity.Transaction{
		ID:                   uuid.New(),
		ProfileID:            profileID,
		ProviderTxID:         "receipt-abc123",
		Amount:               -14.40,
		Date:                 time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		Description:          "Receipt draft: Tesco",
		ReconciliationStatus: constants.ReconUnreconciled,
	}

	first, dup, err := txns.InsertIfAbsent(ctx, tx)
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if dup {
		t.Error("first insert reported duplicated = true")
	}
	if first.ID != tx.ID {
		t.Errorf("stored ID = %s, want %s", first.ID, tx.ID)
	}

	replay := *tx
	replay.ID = uuid.New() // same dedup key, different row id
	second, dup, err := txns.InsertIfAbsent(ctx, &replay)
	if err != nil {
		t.Fatalf("replay InsertIfAbsent() error = %v", err)
	}
	if !dup {
		t.Error("replay reported duplicated = false")
	}
	if second.ID != tx.ID {
		t.Errorf("replay returned row %s, want the original %s", second.ID, tx.ID)
	}

	t.Run("same key under another profile inserts", func(t *testing.T) {
		other := *tx
		other.ID = uuid.New()
		other.ProfileID = uuid.New()
		_, dup, err := txns.InsertIfAbsent(ctx, &other)
		if err != nil {
			t.Fatalf("InsertIfAbsent() error = %v", err)
		}
		if dup {
			t.Error("another profile's insert reported duplicated = true")
		}
	})
}

func TestTransactionMatchingFlow(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	txns := NewTransactionRepository(store, nil)
	profileID := uuid.New()
	date := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)

	insert := func(t *testing.T, providerTxID string) *entity.Transaction {
		t.Helper()
		tx := &entity.Transaction{
			ID:                   uuid.New(),
			ProfileID:            profileID,
			ProviderTxID:         providerTxID,
			Amount:               -14.40,
			Date:                 date,
			Description:          "row " + providerTxID,
			ReconciliationStatus: constants.ReconUnreconciled,
		}
		stored, _, err := txns.InsertIfAbsent(ctx, tx)
		if err != nil {
			t.Fatal(err)
		}
		return stored
	}

	draft := insert(t, "receipt-deadbeef")
	bankA := insert(t, "bank-001")
	bankB := insert(t, "bank-002")

	t.Run("list excludes drafts and ignored ids", func(t *testing.T) {
		got, err := txns.ListUnreconciled(ctx, profileID, []string{bankB.ID.String()}, "receipt-")
		if err != nil {
			t.Fatalf("ListUnreconciled() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != bankA.ID {
			t.Fatalf("ListUnreconciled() = %+v, want only bank-001", got)
		}
	})

	t.Run("ignored candidates round-trip", func(t *testing.T) {
		ids := []string{bankB.ID.String()}
		if err := txns.SetIgnoredCandidates(ctx, profileID, draft.ID, ids); err != nil {
			t.Fatalf("SetIgnoredCandidates() error = %v", err)
		}
		got, err := txns.GetByID(ctx, profileID, draft.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if len(got.IgnoredCandidateIDs) != 1 || !got.IsIgnoredCandidate(bankB.ID.String()) {
			t.Errorf("IgnoredCandidateIDs = %v", got.IgnoredCandidateIDs)
		}
	})

	t.Run("matched pair is terminal", func(t *testing.T) {
		if err := txns.MarkMatchedPair(ctx, profileID, draft.ID, bankA.ID); err != nil {
			t.Fatalf("MarkMatchedPair() error = %v", err)
		}
		got, err := txns.GetByID(ctx, profileID, draft.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ReconciliationStatus != constants.ReconMatched {
			t.Errorf("draft status = %v, want matched", got.ReconciliationStatus)
		}

		err = txns.MarkMatchedPair(ctx, profileID, draft.ID, bankB.ID)
		if !errors.Is(err, common.ErrConflict) {
			t.Errorf("second match error = %v, want ErrConflict", err)
		}
		got, err = txns.GetByID(ctx, profileID, bankB.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ReconciliationStatus != constants.ReconUnreconciled {
			t.Error("failed match must roll back the candidate update")
		}
	})
}
