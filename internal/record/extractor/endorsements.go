package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/driveline/driveline-backend/internal/record/domain"
)

// Offence codes are two letters from a fixed prefix set followed by two
// digits. Anything outside the whitelist is noise, not an endorsement.
var endorsementCodeRe = regexp.MustCompile(`\b(SP|MS|CU|IN|DR|BA|DD|UT|TT)\d{2}\b`)

// pointsNearRe captures an explicit points count printed next to a code
var pointsNearRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:penalty\s+)?points?\b`)

// offenceDateRe finds a date printed on the same line as a code
var offenceDateRe = regexp.MustCompile(`(?i)\b\d{1,2}\s+[A-Za-z]+\s+\d{4}\b|\b\d{2}/\d{2}/\d{4}\b`)

// fallbackPoints is used when a code has neither an explicit count in the
// text nor a row in the points table.
const fallbackPoints = 3

// pointsTable maps offence codes to their standard points value. Values
// are vendor-defined; the table covers the codes seen in practice.
var pointsTable = map[string]int{
	"SP10": 3, "SP20": 3, "SP30": 3, "SP40": 3, "SP50": 3,
	"CU10": 3, "CU20": 3, "CU30": 3, "CU80": 3,
	"MS10": 3, "MS50": 3, "MS90": 6,
	"IN10": 6,
	"DR10": 10, "DR20": 10, "DR30": 10, "DR40": 10, "DR50": 4,
	"DR60": 10, "DR70": 4, "DR80": 10, "DR90": 10,
	"BA10": 6, "BA30": 10,
	"DD40": 7, "DD60": 11, "DD80": 11, "DD90": 9,
	"UT50": 3,
	"TT99": 0,
}

// prefixDescriptions provide a generic description when the line around a
// code carries no usable text.
var prefixDescriptions = map[string]string{
	"SP": "Speed limit offence",
	"MS": "Miscellaneous offence",
	"CU": "Construction and use offence",
	"IN": "Insurance offence",
	"DR": "Drink or drug driving offence",
	"BA": "Driving while disqualified",
	"DD": "Dangerous driving offence",
	"UT": "Unauthorised taking of a vehicle",
	"TT": "Disqualification under totting-up",
}

// extractEndorsements scans the OCR text for offence codes and collapses
// repeated printings of the same code into a single endorsement. The same
// offence is routinely printed twice (narrative summary plus detail
// table); deduplicating by code is the only reliable way to avoid
// doubling the points total. Genuinely repeated identical offences are
// collapsed too, which is an accepted limitation.
func extractEndorsements(text string) []domain.Endorsement {
	seen := make(map[string]bool)
	var out []domain.Endorsement

	for _, line := range strings.Split(text, "\n") {
		for _, loc := range endorsementCodeRe.FindAllStringIndex(line, -1) {
			code := strings.ToUpper(line[loc[0]:loc[1]])
			if seen[code] {
				continue
			}
			seen[code] = true

			rest := line[loc[1]:]
			out = append(out, domain.Endorsement{
				Code:        code,
				Points:      pointsFor(code, rest),
				Description: describeOffence(code, rest),
				OffenceDate: offenceDateIn(rest),
			})
		}
	}

	return out
}

// pointsFor resolves the points value for a code: an explicit count on
// the line wins, then the static table, then the default.
func pointsFor(code, rest string) int {
	if m := pointsNearRe.FindStringSubmatch(rest); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 11 {
			return n
		}
	}
	if pts, ok := pointsTable[code]; ok {
		return pts
	}
	return fallbackPoints
}

func describeOffence(code, rest string) string {
	desc := rest
	// Trim the points/date tail off the free-text description
	if loc := pointsNearRe.FindStringIndex(desc); loc != nil {
		desc = desc[:loc[0]]
	}
	if loc := offenceDateRe.FindStringIndex(desc); loc != nil {
		desc = desc[:loc[0]]
	}
	desc = strings.Trim(desc, " \t-–:.,")
	if len(desc) >= 4 {
		return desc
	}
	return prefixDescriptions[code[:2]]
}

func offenceDateIn(rest string) *time.Time {
	if m := offenceDateRe.FindString(rest); m != "" {
		return parseRecordDate(m)
	}
	return nil
}
