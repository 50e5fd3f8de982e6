// Package extractor turns flat OCR text from a government driving-record
// document into a structured extract. Field extraction is an ordered
// regex cascade: each field has a list of patterns tried in turn, and the
// first match wins, so new document layouts are added by appending a
// pattern rather than touching control flow.
package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/driveline/driveline-backend/internal/record/domain"
)

// fieldPattern is one entry in a per-field cascade
type fieldPattern struct {
	re    *regexp.Regexp
	group int
}

func firstMatch(text string, patterns []fieldPattern) string {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[p.group])
		}
	}
	return ""
}

// The licence number is partially redacted at source: a run of mask
// characters followed by a trailing 6-8 character fragment. Only the
// fragment is extractable; callers must treat it as such.
var licensePatterns = []fieldPattern{
	{re: regexp.MustCompile(`(?i)licen[cs]e\s+number[:\s]+[X*]{3,}\s*([A-Z0-9]{6,8})\b`), group: 1},
	{re: regexp.MustCompile(`[X*]{4,}\s*([A-Z0-9]{6,8})\b`), group: 1},
}

var holderNamePatterns = []fieldPattern{
	{re: regexp.MustCompile(`(?im)^\s*driver(?:'s)?\s+name[:\s]+(.+)$`), group: 1},
	{re: regexp.MustCompile(`(?im)^\s*(?:full\s+)?name[:\s]+(.+)$`), group: 1},
}

var checkCodeLabelled = []fieldPattern{
	{re: regexp.MustCompile(`(?i)check\s+code[:\s]+([A-Za-z0-9]{2}\s+[A-Za-z0-9]{2}\s+[A-Za-z0-9]{2}\s+[A-Za-z0-9]{2})\b`), group: 1},
	{re: regexp.MustCompile(`(?i)share\s+code[:\s]+([A-Za-z0-9]{2}\s+[A-Za-z0-9]{2}\s+[A-Za-z0-9]{2}\s+[A-Za-z0-9]{2})\b`), group: 1},
}

// bare 4-group layout; a candidate must carry a digit to be accepted,
// otherwise four short words in running text would match
var checkCodeBareRe = regexp.MustCompile(`\b([A-Za-z0-9]{2}\s[A-Za-z0-9]{2}\s[A-Za-z0-9]{2}\s[A-Za-z0-9]{2})\b`)

var generatedPatterns = []fieldPattern{
	{re: regexp.MustCompile(`(?i)date\s+(?:generated|of\s+generation)[:\s]+(\d{1,2}\s+[A-Za-z]+\s+\d{4}(?:\s+\d{1,2}:\d{2})?)`), group: 1},
	{re: regexp.MustCompile(`(?i)generated\s+(?:on[:\s]+|at[:\s]+)?(\d{1,2}\s+[A-Za-z]+\s+\d{4}(?:\s+\d{1,2}:\d{2})?)`), group: 1},
	{re: regexp.MustCompile(`(?i)checked\s+on[:\s]+(\d{1,2}\s+[A-Za-z]+\s+\d{4})`), group: 1},
}

var categoriesPatterns = []fieldPattern{
	{re: regexp.MustCompile(`(?i)categor(?:ies|y)[:\s]+([A-Z0-9+,/ ]+)`), group: 1},
	{re: regexp.MustCompile(`(?i)entitled\s+to\s+drive[:\s]+([A-Z0-9+,/ ]+)`), group: 1},
}

var explicitTotalPatterns = []fieldPattern{
	{re: regexp.MustCompile(`(?i)total\s+of\s+(\d{1,2})\s+penalty\s+points`), group: 1},
	{re: regexp.MustCompile(`(?i)(\d{1,2})\s+penalty\s+points\s+in\s+total`), group: 1},
	{re: regexp.MustCompile(`(?i)total\s+penalty\s+points[:\s]+(\d{1,2})\b`), group: 1},
}

var categoryTokenRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9]?(?:\+E)?$`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor parses driving-record OCR text. maxAgeDays is the freshness
// cutoff shared with the underwriting policy.
type Extractor struct {
	maxAgeDays int
	now        func() time.Time
}

// New creates an extractor with the given record freshness cutoff
func New(maxAgeDays int) *Extractor {
	return &Extractor{
		maxAgeDays: maxAgeDays,
		now:        time.Now,
	}
}

// NewWithClock creates an extractor with an injected clock for tests
func NewWithClock(maxAgeDays int, now func() time.Time) *Extractor {
	e := New(maxAgeDays)
	e.now = now
	return e
}

// Extract parses the OCR text into a structured record. Absent fields
// yield zero values, never errors: a gap is recorded as an issue and a
// lower confidence, not a failure.
func (e *Extractor) Extract(text string) *domain.DrivingRecordExtract {
	rec := &domain.DrivingRecordExtract{
		RawText:      text,
		Endorsements: []domain.Endorsement{},
		Categories:   []string{},
	}

	rec.LicenseFragment = strings.ToUpper(firstMatch(text, licensePatterns))
	rec.HolderName = extractHolderName(text)
	rec.CheckCode = extractCheckCode(text)
	rec.GeneratedOn = parseRecordDate(firstMatch(text, generatedPatterns))
	rec.Categories = extractCategories(text)
	rec.Endorsements = extractEndorsements(text)
	rec.TotalPoints = totalPoints(text, rec.Endorsements)

	e.validate(rec)

	return rec
}

// extractHolderName applies the name cascade and rejects candidates that
// are too short or too long to be a person's name (headings, codes).
func extractHolderName(text string) string {
	for _, p := range holderNamePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[p.group])
		if len(name) > 5 && len(name) < 50 {
			return name
		}
	}
	return ""
}

func extractCheckCode(text string) string {
	if code := firstMatch(text, checkCodeLabelled); code != "" {
		return normalizeCheckCode(code)
	}
	for _, m := range checkCodeBareRe.FindAllStringSubmatch(text, -1) {
		if strings.ContainsAny(m[1], "0123456789") {
			return normalizeCheckCode(m[1])
		}
	}
	return ""
}

func normalizeCheckCode(code string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(code), " ")
}

func extractCategories(text string) []string {
	raw := firstMatch(text, categoriesPatterns)
	if raw == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	var out []string
	for _, token := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '/' || r == ' '
	}) {
		token = strings.ToUpper(strings.TrimSpace(token))
		if token == "" || seen[token] || !categoryTokenRe.MatchString(token) {
			continue
		}
		seen[token] = true
		out = append(out, token)
	}
	return out
}

// totalPoints prefers an explicitly stated total over summing, because a
// narrative summary can cover offences not individually itemized.
func totalPoints(text string, endorsements []domain.Endorsement) int {
	if stated := firstMatch(text, explicitTotalPatterns); stated != "" {
		if n := atoiSafe(stated); n >= 0 {
			return n
		}
	}

	sum := 0
	for _, e := range endorsements {
		sum += e.Points
	}
	return sum
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
