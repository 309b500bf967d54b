// Package values converts raw spreadsheet cells into canonical scalars.
// Nothing in here returns an error: values that cannot be parsed degrade to a
// passthrough string or zero.
package values

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	// CanonicalDateLayout is the only date format emitted on records.
	CanonicalDateLayout = "2006-01-02"

	// excelEpochOffsetDays is the number of days between the spreadsheet
	// serial day 0 (1899-12-30) and the Unix epoch.
	excelEpochOffsetDays = 25569
	secondsPerDay        = 86400
)

var (
	eightDigits   = regexp.MustCompile(`^\d{8}$`)
	canonicalDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	fallbackLayouts = []string{
		"2006-1-2",
		"06-1-2",
		"01-02-2006",
		"1-2-2006",
		"2-Jan-2006",
		"2-Jan-06",
		"2006-01",
		"20060102150405",
	}
)

// NormalizeDate converts a raw cell into a YYYY-MM-DD string.
//
// Native dates are formatted from their own calendar fields, numbers are read
// as spreadsheet serial dates and strings go through separator cleanup and a
// short list of layouts. When nothing parses, the cleaned string is returned.
func NormalizeDate(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case time.Time:
		return d.Format(CanonicalDateLayout)
	case *time.Time:
		if d == nil {
			return ""
		}
		return d.Format(CanonicalDateLayout)
	case float64:
		return serialToDate(d)
	case float32:
		return serialToDate(float64(d))
	case int:
		return serialToDate(float64(d))
	case int64:
		return serialToDate(float64(d))
	case string:
		return normalizeDateString(d)
	default:
		return ""
	}
}

// TimeOfDay renders a time-only spreadsheet serial, a day fraction in [0, 1),
// as HH:MM:SS rounded to the second. ok is false for any other value.
func TimeOfDay(v any) (string, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		return "", false
	}
	if f < 0 || f >= 1 {
		return "", false
	}
	secs := int64(math.Round(f * secondsPerDay))
	if secs >= secondsPerDay {
		secs = secondsPerDay - 1
	}
	return time.Unix(secs, 0).UTC().Format("15:04:05"), true
}

func serialToDate(serial float64) string {
	secs := int64((serial - excelEpochOffsetDays) * secondsPerDay)
	return time.Unix(secs, 0).UTC().Format(CanonicalDateLayout)
}

func normalizeDateString(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Drop the time component: everything after the first whitespace or 'T'.
	if idx := strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == 'T' }); idx > 0 {
		s = s[:idx]
	}

	s = strings.NewReplacer(".", "-", "/", "-").Replace(s)
	s = strings.Trim(s, "-")

	if eightDigits.MatchString(s) {
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	if canonicalDate.MatchString(s) {
		return s
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout)
		}
	}
	return s
}

// DisplayDate renders a canonical date with dots (2025.01.10). Non-canonical
// values are returned unchanged.
func DisplayDate(date string) string {
	if !canonicalDate.MatchString(date) {
		return date
	}
	return strings.ReplaceAll(date, "-", ".")
}

// IsCanonicalDate reports whether s is already YYYY-MM-DD.
func IsCanonicalDate(s string) bool {
	return canonicalDate.MatchString(s)
}
