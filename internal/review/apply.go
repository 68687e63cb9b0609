package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/parse"
)

// ToFields converts a validated edit payload into a typed record. The
// payload is the full edited record: fields absent or null come back nil.
// Values that fail to parse are dropped rather than rejected; the diff
// against the stored record decides what actually changed.
func ToFields(edit map[string]any) *entity.ExtractedFields {
	f := &entity.ExtractedFields{}

	if s := stringField(edit, FieldVendorName); s != nil {
		f.VendorName = s
	}
	if v, ok := edit[FieldTotalAmount]; ok && v != nil {
		if x, ok := toFloat(v); ok {
			x = parse.Round2(x)
			f.TotalAmount = &x
		}
	}
	if v, ok := edit[FieldTxDate]; ok && v != nil {
		if t, ok := toDate(v); ok {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			f.TxDate = &d
		}
	}
	if s := stringField(edit, FieldTextExcerpt); s != nil {
		f.TextExcerpt = s
	}
	if s := stringField(edit, FieldSuggestedCategory); s != nil {
		f.SuggestedCategory = s
	}
	if s := stringField(edit, FieldExpenseArticle); s != nil {
		f.ExpenseArticle = s
	}
	if v, ok := edit[FieldDeductible]; ok && v != nil {
		switch b := v.(type) {
		case bool:
			f.Deductible = &b
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				f.Deductible = &parsed
			}
		}
	}
	return f
}

func stringField(edit map[string]any, field string) *string {
	v, ok := edit[field]
	if !ok || v == nil {
		return nil
	}
	s := parse.NormalizeWhitespace(fmt.Sprintf("%v", v))
	if s == "" {
		return nil
	}
	return &s
}
