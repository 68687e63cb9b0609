// Package classify assigns spending categories and tax-relevance tags to
// extracted expenses, preferring prior human corrections over static rules.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/entity"
)

// Categorizer resolves a category, expense article, and deductibility for a
// vendor/description pair. The correction ledger is consulted before the
// rule table so a user's explicit correction for a recurring vendor is never
// re-overridden by the generic keywords on the next receipt.
type Categorizer struct {
	ledger CorrectionLedger
	rules  []constants.CategoryRule
	logger *slog.Logger
}

func NewCategorizer(ledger CorrectionLedger, rules []constants.CategoryRule, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = constants.DefaultCategoryRules
	}
	return &Categorizer{ledger: ledger, rules: rules, logger: logger}
}

// Categorize returns the stored correction verbatim when one matches the
// vendor, otherwise the first matching keyword rule, otherwise an all-nil
// result (a valid answer meaning "needs review", not an error).
func (c *Categorizer) Categorize(ctx context.Context, profileID uuid.UUID, vendor, description string) (entity.CategoryResult, error) {
	if c.ledger != nil && vendor != "" {
		rec, err := c.ledger.LatestCorrectionFor(ctx, profileID, vendor)
		if err != nil {
			return entity.CategoryResult{}, err
		}
		if rec != nil {
			c.logger.Debug("categorize: correction override",
				"profile_id", profileID, "vendor", vendor, "effective_at", rec.EffectiveAt)
			return entity.CategoryResult{
				Category:   rec.SuggestedCategory,
				Article:    rec.ExpenseArticle,
				Deductible: rec.Deductible,
			}, nil
		}
	}

	return SuggestFromRules(c.rules, vendor+" "+description), nil
}

// SuggestFromRules matches the lowercased text against the ordered rule
// table; the first rule with a matching keyword wins.
func SuggestFromRules(rules []constants.CategoryRule, text string) entity.CategoryResult {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				result := entity.CategoryResult{
					Category:   strPtr(rule.Category),
					Deductible: boolPtr(rule.Deductible),
				}
				if rule.Article != "" {
					result.Article = strPtr(rule.Article)
				}
				return result
			}
		}
	}
	return entity.CategoryResult{}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
