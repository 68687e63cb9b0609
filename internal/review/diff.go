// Package review computes normalized before/after change-sets when a human
// edits an extracted record. The change-set doubles as audit trail and as
// the signal that decides whether a correction feeds future categorization.
package review

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/parse"
)

// Field names of an extracted record, in stable diff output order.
const (
	FieldVendorName        = "vendor_name"
	FieldTotalAmount       = "total_amount"
	FieldTxDate            = "transaction_date"
	FieldTextExcerpt       = "text_excerpt"
	FieldSuggestedCategory = "suggested_category"
	FieldExpenseArticle    = "expense_article"
	FieldDeductible        = "is_potentially_deductible"
)

var diffFields = []string{
	FieldVendorName,
	FieldTotalAmount,
	FieldTxDate,
	FieldTextExcerpt,
	FieldSuggestedCategory,
	FieldExpenseArticle,
	FieldDeductible,
}

// taxonomyFields are consumed by the correction ledger and are always
// evaluated, even though they are usually auto-derived rather than edited.
var taxonomyFields = map[string]struct{}{
	FieldSuggestedCategory: {},
	FieldExpenseArticle:    {},
	FieldDeductible:        {},
}

// Diff compares two records field by field after canonicalization and
// returns the fields whose values actually differ. Equivalent
// representations (18.4 vs "18.40", a datetime vs the bare date of the same
// day) produce no change.
func Diff(before, after map[string]any) []entity.FieldChange {
	var changes []entity.FieldChange
	for _, field := range diffFields {
		b := Canonicalize(field, before[field])
		a := Canonicalize(field, after[field])
		if b != a {
			changes = append(changes, entity.FieldChange{Field: field, Before: b, After: a})
		}
	}
	return changes
}

// HasTaxonomyChange reports whether the change-set touches a field the
// correction ledger consumes. A review that only fixed the amount or date
// must not alter future categorization.
func HasTaxonomyChange(changes []entity.FieldChange) bool {
	for _, ch := range changes {
		if _, ok := taxonomyFields[ch.Field]; ok {
			return true
		}
	}
	return false
}

// Snapshot flattens a typed record into diff input.
func Snapshot(f *entity.ExtractedFields) map[string]any {
	m := map[string]any{}
	if f == nil {
		return m
	}
	if f.VendorName != nil {
		m[FieldVendorName] = *f.VendorName
	}
	if f.TotalAmount != nil {
		m[FieldTotalAmount] = *f.TotalAmount
	}
	if f.TxDate != nil {
		m[FieldTxDate] = *f.TxDate
	}
	if f.TextExcerpt != nil {
		m[FieldTextExcerpt] = *f.TextExcerpt
	}
	if f.SuggestedCategory != nil {
		m[FieldSuggestedCategory] = *f.SuggestedCategory
	}
	if f.ExpenseArticle != nil {
		m[FieldExpenseArticle] = *f.ExpenseArticle
	}
	if f.Deductible != nil {
		m[FieldDeductible] = *f.Deductible
	}
	return m
}

// Canonicalize renders a field value in its canonical comparison form:
// amounts at two decimals, dates as bare calendar days, booleans as
// true/false, everything else whitespace-normalized. Absent values
// canonicalize to the empty string.
func Canonicalize(field string, v any) string {
	if v == nil {
		return ""
	}
	switch field {
	case FieldTotalAmount:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(parse.Round2(f), 'f', 2, 64)
		}
	case FieldTxDate:
		if t, ok := toDate(v); ok {
			return t.Format("2006-01-02")
		}
	case FieldDeductible:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b)
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return strconv.FormatBool(parsed)
			}
		}
	}
	return parse.NormalizeWhitespace(fmt.Sprintf("%v", v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
