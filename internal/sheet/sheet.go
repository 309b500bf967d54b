// Package sheet holds the header-less grid representation shared by the
// container readers and the identification pipeline.
package sheet

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Cell is a raw cell value: float64, string, time.Time, bool or nil.
type Cell = any

// Sheet is one named grid of raw cells addressed by row index.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Workbook is an ordered list of sheets, in the order the container declares them.
type Workbook struct {
	Sheets []Sheet
}

// SheetNames returns the sheet names in declared order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// CellString coerces a raw cell to a trimmed string. Nil cells become "".
// Strings are NFC-normalized so decomposed Hangul compares equal to composed.
func CellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(strings.TrimSpace(v))
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// IsEmpty reports whether a cell carries no usable value.
func IsEmpty(c Cell) bool {
	return CellString(c) == ""
}

// StripSpace removes every whitespace rune from s.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// RowStrings converts a row of raw cells to trimmed strings.
func RowStrings(row []Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = CellString(c)
	}
	return out
}

// At returns the cell at column idx, or nil when the row is too short or idx is negative.
func At(row []Cell, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}
