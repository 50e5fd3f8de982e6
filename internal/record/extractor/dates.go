package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The record prints dates as "2 January 2026" with an optional "14:05"
// time suffix. OCR output is matched case-insensitively.
var monthNumbers = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

var recordDateRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})(?:\s+(\d{1,2}):(\d{2}))?`)

// fallback layouts for dates the primary format does not cover
var fallbackLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	time.RFC3339,
}

// parseRecordDate parses a date in the document's "D Month YYYY[ HH:MM]"
// layout, falling back to common numeric layouts. Returns nil when the
// value cannot be parsed; it never fails loudly.
func parseRecordDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := recordDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthNumbers[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])
		if ok && day >= 1 && day <= 31 {
			hour, minute := 0, 0
			if m[4] != "" {
				hour, _ = strconv.Atoi(m[4])
				minute, _ = strconv.Atoi(m[5])
			}
			t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
			// Reject impossible days like 31 February
			if t.Day() == day {
				return &t
			}
			return nil
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}
