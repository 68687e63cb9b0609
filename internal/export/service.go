package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerline/receipt-recon/internal/repository"
)

// Service is a tiny façade over the document repository that produces XLSX
// bytes for expense exports.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportExpensesXLSX returns an XLSX workbook (as bytes) of completed
// expense records for the given profile and date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all completed documents for the profile.
func (s *Service) ExportExpensesXLSX(ctx context.Context, profileID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	docs, err := s.docs.ListCompleted(ctx, profileID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Expenses"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Transaction Date",
		"Vendor",
		"Category",
		"Expense Article",
		"Deductible",
		"Amount",
		"Review Status",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, doc := range docs {
		fields := doc.Fields
		if fields == nil {
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if fields.TxDate != nil {
			write(1, fields.TxDate.Format("2006-01-02"))
		} else {
			write(1, "")
		}
		if fields.VendorName != nil {
			write(2, *fields.VendorName)
		} else {
			write(2, "—")
		}
		if fields.SuggestedCategory != nil {
			write(3, *fields.SuggestedCategory)
		}
		if fields.ExpenseArticle != nil {
			write(4, *fields.ExpenseArticle)
		}
		if fields.Deductible != nil {
			write(5, *fields.Deductible)
		}
		if fields.TotalAmount != nil {
			write(6, fmt.Sprintf("%.2f", *fields.TotalAmount))
		}
		write(7, string(fields.ReviewStatus))
		write(8, doc.Filename)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "D", 22) // taxonomy
	_ = f.SetColWidth(sheet, "E", "F", 12) // deductible, amount
	_ = f.SetColWidth(sheet, "G", "G", 14) // review status
	_ = f.SetColWidth(sheet, "H", "H", 40) // file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"profile_id", profileID.String(),
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
