package values

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// A won sign (full or half width) followed by digits and thousands separators.
	wonAmount = regexp.MustCompile(`(-?)\s*[₩￦]\s*(-?[\d,]+(?:\.\d+)?)`)

	nonNumeric = regexp.MustCompile(`[^\d.\-]`)

	lineBreakMarkers = []string{"<br", "<BR", "\n", "\r"}
)

// ExtractAmount converts a raw cell into a plain number in the document's base
// currency unit. Numbers pass through, formatted strings are cleaned, and
// anything without parseable digits becomes 0. ExtractAmount(ExtractAmount(x))
// always equals ExtractAmount(x).
func ExtractAmount(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return extractAmountString(n)
	default:
		return 0
	}
}

func extractAmountString(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	if m := wonAmount.FindStringSubmatch(s); m != nil {
		return parseDigits(m[1] + m[2])
	}

	for _, marker := range lineBreakMarkers {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
		}
	}

	return parseDigits(s)
}

func parseDigits(s string) float64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

// IsZeroAmount reports whether a raw cell is empty or extracts to zero.
func IsZeroAmount(v any) bool {
	return ExtractAmount(v) == 0
}
