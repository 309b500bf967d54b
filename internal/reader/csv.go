package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// readCSV reads a delimited text export as a single sheet named after the file.
// Comma is assumed unless the first line has more semicolons or tabs.
func readCSV(data []byte, filename string) (*sheet.Workbook, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("readCSV: decoding charset: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = guessDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("readCSV: %w", err)
	}

	rows := make([][]sheet.Cell, len(records))
	for i, rec := range records {
		row := make([]sheet.Cell, len(rec))
		for j, v := range rec {
			if v != "" {
				row[j] = v
			}
		}
		rows[i] = row
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &sheet.Workbook{Sheets: []sheet.Sheet{{Name: name, Rows: rows}}}, nil
}

func guessDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
