package domain

import (
	"fmt"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// IdentificationResult is the outcome of scanning a workbook for a known layout.
// On failure Definition is nil and only Probe is meaningful.
type IdentificationResult struct {
	Definition  *SourceDefinition
	HeaderRow   []string
	HeaderIndex int
	SheetName   string
	Rows        [][]sheet.Cell
	Probe       string
}

// Matched reports whether a definition was found.
func (r *IdentificationResult) Matched() bool {
	return r != nil && r.Definition != nil
}

// DataRows returns the rows below the header.
func (r *IdentificationResult) DataRows() [][]sheet.Cell {
	if !r.Matched() || r.HeaderIndex+1 >= len(r.Rows) {
		return nil
	}
	return r.Rows[r.HeaderIndex+1:]
}

// IdentificationError reports a file for which no signature matched.
type IdentificationError struct {
	Filename string
	Probe    string
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("no known source layout in %s (first row: %s)", e.Filename, e.Probe)
}
