package reader

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// readXLSX returns numbers as float64 (dates stay serials) and text as string.
func readXLSX(data []byte) (*sheet.Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("readXLSX: opening workbook: %w", err)
	}
	defer f.Close()

	wb := &sheet.Workbook{}
	for _, name := range f.GetSheetList() {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("readXLSX: reading sheet %q: %w", name, err)
		}

		rows := make([][]sheet.Cell, len(raw))
		for r, cols := range raw {
			row := make([]sheet.Cell, len(cols))
			for c, v := range cols {
				row[c] = typedXLSXCell(f, name, r, c, v)
			}
			rows[r] = row
		}
		wb.Sheets = append(wb.Sheets, sheet.Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

func typedXLSXCell(f *excelize.File, sheetName string, r, c int, v string) sheet.Cell {
	if v == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return v
	}
	typ, err := f.GetCellType(sheetName, axis)
	if err != nil {
		return v
	}
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return v
}
