package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	monthNameRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?[ .]+([A-Za-z]{3,9})\.?,?[ ]+(\d{4})\b`)
	dmyDateRe   = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})\b`)
)

// monthTable resolves month names and abbreviations by their first 3-4 letters.
var monthTable = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November,
	"dec": time.December,
}

// ExtractTransactionDate finds the first parseable calendar date in the
// text. Lines labeled "date" take priority over the rest; within a line the
// ISO form is tried first, then day-monthname-year, then day/month/year
// numerics (two-digit years read as 2000+yy). Invalid calendar combinations
// are skipped. Returns nil when nothing parses.
func ExtractTransactionDate(text string) *time.Time {
	var labeled, others []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(strings.ToLower(trimmed), "date") {
			labeled = append(labeled, trimmed)
		} else {
			others = append(others, trimmed)
		}
	}

	for _, group := range [][]string{labeled, others} {
		for _, line := range group {
			if d := parseDateLine(line); d != nil {
				return d
			}
		}
	}
	return nil
}

func parseDateLine(line string) *time.Time {
	if m := isoDateRe.FindStringSubmatch(line); m != nil {
		if d := calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); d != nil {
			return d
		}
	}
	if m := monthNameRe.FindStringSubmatch(line); m != nil {
		if month, ok := lookupMonth(m[2]); ok {
			if d := calendarDate(atoi(m[3]), int(month), atoi(m[1])); d != nil {
				return d
			}
		}
	}
	if m := dmyDateRe.FindStringSubmatch(line); m != nil {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if d := calendarDate(year, atoi(m[2]), atoi(m[1])); d != nil {
			return d
		}
	}
	return nil
}

func lookupMonth(name string) (time.Month, bool) {
	lower := strings.ToLower(name)
	if len(lower) >= 4 {
		if m, ok := monthTable[lower[:4]]; ok {
			return m, true
		}
	}
	if len(lower) >= 3 {
		if m, ok := monthTable[lower[:3]]; ok {
			return m, true
		}
	}
	return 0, false
}

// calendarDate builds a date-only UTC time, rejecting combinations that do
// not exist on the calendar (time.Date would silently normalize them).
func calendarDate(year, month, day int) *time.Time {
	if year < 1900 || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return nil
	}
	return &t
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
