package classify

import "strings"

// NormalizeVendorKey lowercases a vendor name and collapses whitespace so
// that "TESCO  Stores" and "tesco stores" share one key.
func NormalizeVendorKey(vendor string) string {
	return strings.ToLower(strings.Join(strings.Fields(vendor), " "))
}

// VendorKeysMatch reports whether two normalized vendor keys refer to the
// same merchant: equal, or one contained in the other. Containment handles
// the common "Tesco" vs "Tesco Stores UK LTD" spread of receipt headers.
// Short keys can over-match (e.g. "m&s"); see DESIGN.md before tightening.
func VendorKeysMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
