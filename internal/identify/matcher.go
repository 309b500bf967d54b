// Package identify finds which known export layout a workbook follows by
// scanning its rows for a header signature.
package identify

import (
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// DefaultMaxScanRows bounds the header search per sheet.
const DefaultMaxScanRows = 500

// MatchRows scans the first maxRows rows top to bottom and returns the index of
// the first row that carries every signature keyword of some definition.
// Definitions are tried in slice order, so earlier entries win ties.
func MatchRows(rows [][]sheet.Cell, defs []domain.SourceDefinition, maxRows int) (int, *domain.SourceDefinition, bool) {
	if maxRows <= 0 || maxRows > len(rows) {
		maxRows = len(rows)
	}
	for i := 0; i < maxRows; i++ {
		if def := MatchRow(rows[i], defs); def != nil {
			return i, def, true
		}
	}
	return -1, nil, false
}

// MatchRow returns the first definition whose signature the row satisfies, or nil.
// A row that satisfies a signature but has fewer cells than its keywords is
// malformed and matches nothing.
func MatchRow(row []sheet.Cell, defs []domain.SourceDefinition) *domain.SourceDefinition {
	cells := strippedCells(row)
	if len(cells) == 0 {
		return nil
	}
	for i := range defs {
		def := &defs[i]
		if !hasSignature(cells, def.Signatures) {
			continue
		}
		if len(row) < len(def.Signatures) {
			return nil
		}
		return def
	}
	return nil
}

func hasSignature(cells []string, signatures []string) bool {
	if len(signatures) == 0 {
		return false
	}
	for _, sig := range signatures {
		if !anyContains(cells, sheet.StripSpace(sig)) {
			return false
		}
	}
	return true
}

func anyContains(cells []string, keyword string) bool {
	if keyword == "" {
		return false
	}
	for _, c := range cells {
		if strings.Contains(c, keyword) {
			return true
		}
	}
	return false
}

// strippedCells returns the non-empty cells of row with all whitespace removed.
func strippedCells(row []sheet.Cell) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if s := sheet.StripSpace(sheet.CellString(c)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
