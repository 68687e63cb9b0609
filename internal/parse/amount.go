// Package parse turns raw OCR text into typed receipt fields. Every function
// is pure and tolerant: malformed input yields nil, never an error.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// amountToken matches a currency-like amount: 1-6 digits with an optional
// 2-digit fractional part, decimal separator '.' or ','.
var amountToken = regexp.MustCompile(`\b\d{1,6}(?:[.,]\d{2})?\b`)

// totalKeywords label the line that carries the final payable amount.
var totalKeywords = []string{
	"grand total",
	"total paid",
	"amount due",
	"balance due",
	"payment due",
	"total",
}

// ExtractTotalAmount scans the text line by line for amount tokens and
// returns the most plausible document total: the maximum amount found on a
// keyword-labeled line, falling back to the maximum anywhere, else nil.
// Receipts list many smaller line items above a labeled total, so the max
// on a keyword line resolves ties toward the final payable amount.
func ExtractTotalAmount(text string) *float64 {
	var keywordMax, anyMax float64
	var haveKeyword, haveAny bool

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		keywordLine := false
		for _, kw := range totalKeywords {
			if strings.Contains(lower, kw) {
				keywordLine = true
				break
			}
		}
		for _, tok := range amountToken.FindAllString(trimmed, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64)
			if err != nil || v <= 0 {
				continue
			}
			v = Round2(v)
			if keywordLine && (!haveKeyword || v > keywordMax) {
				keywordMax = v
				haveKeyword = true
			}
			if !haveAny || v > anyMax {
				anyMax = v
				haveAny = true
			}
		}
	}

	if haveKeyword {
		return &keywordMax
	}
	if haveAny {
		return &anyMax
	}
	return nil
}

// Round2 rounds to two fractional digits, the precision of stored amounts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
