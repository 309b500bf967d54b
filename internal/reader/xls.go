package reader

import (
	"fmt"
	"os"
	"strings"

	"github.com/shakinm/xlsReader/xls"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// readXLS reads a BIFF8 workbook. Number and RK records become float64,
// everything else is read as text. xlsReader opens files by path, so the
// bytes are spooled to a temp file first.
func readXLS(data []byte) (*sheet.Workbook, error) {
	tmp, err := os.CreateTemp("", "statement-*.xls")
	if err != nil {
		return nil, fmt.Errorf("readXLS: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("readXLS: spooling workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("readXLS: spooling workbook: %w", err)
	}

	workbook, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("readXLS: opening workbook: %w", err)
	}

	wb := &sheet.Workbook{}
	for si := 0; si < workbook.GetNumberSheets(); si++ {
		s, err := workbook.GetSheet(si)
		if err != nil || s == nil {
			continue
		}
		var rows [][]sheet.Cell
		for ri := 0; ri <= s.GetNumberRows(); ri++ {
			r, err := s.GetRow(ri)
			if err != nil || r == nil {
				rows = append(rows, nil)
				continue
			}
			cols := r.GetCols()
			row := make([]sheet.Cell, len(cols))
			for i, cell := range cols {
				if cell == nil {
					continue
				}
				typ := cell.GetType()
				switch {
				case strings.Contains(typ, "Number"), strings.Contains(typ, "Rk"):
					row[i] = cell.GetFloat64()
				default:
					if v := cell.GetString(); v != "" {
						row[i] = v
					}
				}
			}
			rows = append(rows, row)
		}
		wb.Sheets = append(wb.Sheets, sheet.Sheet{Name: s.GetName(), Rows: rows})
	}
	return wb, nil
}
