package reader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func TestRepairHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "adjacent unclosed cells",
			input: "<table><tr><td>a<td>b<td>c</td></tr></table>",
			want:  "<table><tr><td>a</td><td>b</td><td>c</td></tr></table>",
		},
		{
			name:  "cell open at row end",
			input: "<table><tr><td>a</td><td>b</tr><tr><th>c</table>",
			want:  "<table><tr><td>a</td><td>b</td></tr><tr><th>c</th></table>",
		},
		{
			name:  "line breaks inside cells",
			input: "<TR><TD>₩36,411<br/>[USD]25.72<TD>x</TR>",
			want:  "<TR><TD>₩36,411<br/>[USD]25.72</td><TD>x</td></TR>",
		},
		{
			name:  "well formed untouched",
			input: "<table><tr><td>a</td></tr></table>",
			want:  "<table><tr><td>a</td></tr></table>",
		},
		{
			name:  "stray angle bracket",
			input: "<td>1 < 2<td>3</td>",
			want:  "<td>1 < 2</td><td>3</td>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairHTML([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, string(got), string(RepairHTML(got)), "not idempotent")
		})
	}
}

func TestRepairHTML_Terminates(t *testing.T) {
	var in []byte
	for i := 0; i < 2000; i++ {
		in = append(in, "<td><tr><td"...)
	}
	assert.NotPanics(t, func() { RepairHTML(in) })
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     Format
		wantErr  bool
	}{
		{name: "zip", data: []byte("PK\x03\x04rest"), filename: "a.xls", want: FormatXLSX},
		{name: "ole", data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}, filename: "a.xlsx", want: FormatXLS},
		{name: "html disguised as xls", data: []byte("\n<HTML><body><TABLE>"), filename: "card.xls", want: FormatHTML},
		{name: "csv by extension", data: []byte("a,b\n1,2"), filename: "a.CSV", want: FormatCSV},
		{name: "unknown", data: []byte("%PDF-1.4"), filename: "a.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.data, tt.filename)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func eucKR(t *testing.T, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(s))
	require.NoError(t, err)
	return out
}

func TestRead_HTMLEUCKR(t *testing.T) {
	doc := `<html><head><meta http-equiv="Content-Type" content="text/html; charset=euc-kr"></head><body>
<table><tr><td>카드 이용내역</td></tr></table>
<table>
<tr><th>이용일<th>이용시간<th>이용하신곳<th colspan="2">이용금액</tr>
<tr><td>2025.01.10<td>13:00<td>스타벅스<td>￦4,500<br>[USD]3.10<td></tr>
</table></body></html>`

	wb, err := Read(context.Background(), "card.xls", eucKR(t, doc))

	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, []string{"table1", "table2"}, wb.SheetNames())

	rows := wb.Sheets[1].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"이용일", "이용시간", "이용하신곳", "이용금액", nil}, rows[0])
	assert.Equal(t, "스타벅스", rows[1][2])
	assert.Equal(t, "￦4,500\n[USD]3.10", rows[1][3])
	assert.Nil(t, rows[1][4])
}

func TestRead_HTMLUndeclaredEUCKR(t *testing.T) {
	wb, err := Read(context.Background(), "x.xls", eucKR(t, "<table><tr><td>거래일시<td>적요</tr></table>"))

	require.NoError(t, err)
	assert.Equal(t, []any{"거래일시", "적요"}, wb.Sheets[0].Rows[0])
}

func TestRead_CSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("거래일시;적요;출금액\n2025-01-03;관리비;\"120,000\"\n")...)

	wb, err := Read(context.Background(), "kb.csv", data)

	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "kb", wb.Sheets[0].Name)
	assert.Equal(t, []any{"2025-01-03", "관리비", "120,000"}, wb.Sheets[0].Rows[1])
}

func TestRead_XLSXTypedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "이용내역"))
	require.NoError(t, f.SetSheetRow("이용내역", "A1", &[]any{"이용일", "이용하신곳", "이용금액"}))
	require.NoError(t, f.SetCellValue("이용내역", "A2", 45672))
	require.NoError(t, f.SetCellValue("이용내역", "B2", "스타벅스"))
	require.NoError(t, f.SetCellValue("이용내역", "C2", 4500))
	require.NoError(t, f.SetCellStr("이용내역", "A3", "20250115"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := Read(context.Background(), "card.xlsx", buf.Bytes())

	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	rows := wb.Sheets[0].Rows
	assert.Equal(t, "이용일", rows[0][0])
	assert.Equal(t, 45672.0, rows[1][0])
	assert.Equal(t, "스타벅스", rows[1][1])
	assert.Equal(t, 4500.0, rows[1][2])
	assert.Equal(t, "20250115", rows[2][0])
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read(context.Background(), "scan.pdf", []byte("%PDF-1.7"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRead_HTMLWithoutTables(t *testing.T) {
	_, err := Read(context.Background(), "x.html", []byte("<html><body>no data</body></html>"))
	assert.ErrorIs(t, err, ErrEmptyWorkbook)
}
