package parse

import (
	"path/filepath"
	"strings"
	"unicode"
)

// vendorExclusions are words that mark a line as boilerplate rather than a
// merchant name.
var vendorExclusions = []string{
	"receipt", "invoice", "date", "total", "subtotal", "vat", "tax", "amount", "thank",
}

// filenameNoise tokens are stripped before deriving a vendor from a filename.
var filenameNoise = map[string]struct{}{
	"receipt":  {},
	"invoice":  {},
	"scan":     {},
	"document": {},
}

const maxVendorLineLen = 64

// InferVendorName returns the first text line that looks like a merchant
// name: no exclusion word, at most 64 characters, at most 3 digits. When no
// line qualifies it derives a title-cased vendor from the filename, and
// returns nil if nothing remains after stripping noise tokens.
func InferVendorName(text, filename string) *string {
	for _, line := range strings.Split(text, "\n") {
		candidate := NormalizeWhitespace(line)
		if candidate == "" || len(candidate) > maxVendorLineLen {
			continue
		}
		lower := strings.ToLower(candidate)
		excluded := false
		for _, word := range vendorExclusions {
			if strings.Contains(lower, word) {
				excluded = true
				break
			}
		}
		if excluded || digitCount(candidate) > 3 {
			continue
		}
		return &candidate
	}
	return vendorFromFilename(filename)
}

func vendorFromFilename(filename string) *string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(base)

	var kept []string
	for _, word := range strings.Fields(base) {
		if _, noise := filenameNoise[strings.ToLower(word)]; noise {
			continue
		}
		kept = append(kept, titleCase(word))
	}
	if len(kept) == 0 {
		return nil
	}
	vendor := strings.Join(kept, " ")
	return &vendor
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func titleCase(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
