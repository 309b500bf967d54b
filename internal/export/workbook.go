// Package export writes classified records to an output workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

const (
	// RecordsSheet holds one row per record.
	RecordsSheet = "거래내역"
	// FailuresSheet lists files that could not be identified or read.
	FailuresSheet = "실패"

	// ContentType is the MIME type of the written workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	amountNumFmt = 3 // #,##0
)

// Column is one output column: header literal, display width and cell value.
type Column struct {
	Header string
	Width  float64
	Value  func(r *domain.TransactionRecord) any
}

// Columns is the fixed output layout.
var Columns = []Column{
	{Header: "거래일자", Width: 12, Value: func(r *domain.TransactionRecord) any { return displayDate(r) }},
	{Header: "항목", Width: 14, Value: func(r *domain.TransactionRecord) any { return r.Item }},
	{Header: "내용", Width: 36, Value: func(r *domain.TransactionRecord) any { return r.RawDescription }},
	{Header: "금액", Width: 14, Value: func(r *domain.TransactionRecord) any { return r.Amount }},
	{Header: "이체금액", Width: 14, Value: func(r *domain.TransactionRecord) any { return optional(r.TransferAmount) }},
	{Header: "계좌", Width: 20, Value: func(r *domain.TransactionRecord) any { return r.AccountLabel }},
	{Header: "현금", Width: 14, Value: func(r *domain.TransactionRecord) any { return optional(r.CashAmount) }},
	{Header: "카드", Width: 14, Value: func(r *domain.TransactionRecord) any { return optional(r.CardAmount) }},
	{Header: "카드상세", Width: 20, Value: func(r *domain.TransactionRecord) any { return r.CardDetail }},
	{Header: "중분류", Width: 14, Value: func(r *domain.TransactionRecord) any { return r.CategoryDetail }},
	{Header: "대분류", Width: 14, Value: func(r *domain.TransactionRecord) any { return r.CategoryMain }},
}

var amountColumns = map[string]bool{"금액": true, "이체금액": true, "현금": true, "카드": true}

// Failure is a file listed on the failures sheet.
type Failure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Probe    string `json:"probe,omitempty"`
}

// Headers returns the header literals in column order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// Row returns the cell values of r in column order.
func Row(r *domain.TransactionRecord) []any {
	out := make([]any, len(Columns))
	for i, c := range Columns {
		out[i] = c.Value(r)
	}
	return out
}

// NewWorkbook builds the output workbook. The failures sheet is added only
// when there are failures.
func NewWorkbook(records []*domain.TransactionRecord, failures []Failure) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("NewWorkbook: renaming sheet: %w", err)
	}
	if err := writeRecords(f, records); err != nil {
		f.Close()
		return nil, err
	}
	if len(failures) > 0 {
		if err := writeFailures(f, failures); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteWorkbook writes the xlsx bytes to w.
func WriteWorkbook(w io.Writer, records []*domain.TransactionRecord, failures []Failure) error {
	f, err := NewWorkbook(records, failures)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteWorkbook: writing xlsx: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, records []*domain.TransactionRecord) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("writeRecords: creating header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		return fmt.Errorf("writeRecords: creating amount style: %w", err)
	}

	header := make([]any, len(Columns))
	for i, h := range Headers() {
		header[i] = h
	}
	if err := f.SetSheetRow(RecordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writeRecords: writing header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(RecordsSheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("writeRecords: styling header: %w", err)
	}

	for i, r := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := Row(r)
		if err := f.SetSheetRow(RecordsSheet, cell, &row); err != nil {
			return fmt.Errorf("writeRecords: writing row %d: %w", i+2, err)
		}
	}

	for i, c := range Columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(RecordsSheet, name, name, c.Width); err != nil {
			return fmt.Errorf("writeRecords: setting width of %s: %w", c.Header, err)
		}
		if amountColumns[c.Header] && len(records) > 0 {
			if err := f.SetCellStyle(RecordsSheet, name+"2", fmt.Sprintf("%s%d", name, len(records)+1), amountStyle); err != nil {
				return fmt.Errorf("writeRecords: styling %s: %w", c.Header, err)
			}
		}
	}
	return nil
}

func writeFailures(f *excelize.File, failures []Failure) error {
	if _, err := f.NewSheet(FailuresSheet); err != nil {
		return fmt.Errorf("writeFailures: creating sheet: %w", err)
	}
	header := []any{"파일명", "사유", "첫 행"}
	if err := f.SetSheetRow(FailuresSheet, "A1", &header); err != nil {
		return fmt.Errorf("writeFailures: writing header: %w", err)
	}
	for i, fl := range failures {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{fl.Filename, fl.Reason, fl.Probe}
		if err := f.SetSheetRow(FailuresSheet, cell, &row); err != nil {
			return fmt.Errorf("writeFailures: writing row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(FailuresSheet, "A", "A", 30)
	_ = f.SetColWidth(FailuresSheet, "B", "B", 40)
	_ = f.SetColWidth(FailuresSheet, "C", "C", 80)
	return nil
}

func displayDate(r *domain.TransactionRecord) string {
	if r.DisplayDate != "" {
		return r.DisplayDate
	}
	return r.Date
}

// optional renders nil channel amounts as blank cells.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
