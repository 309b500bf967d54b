package identify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

func testDefinitions() []domain.SourceDefinition {
	return []domain.SourceDefinition{
		{
			Type:       domain.SourcePayrollSummary,
			Name:       "급여대장",
			Signatures: []string{"성명", "실지급액", "공제합계"},
		},
		{
			Type:       domain.SourceCardStatement,
			Name:       "신한카드",
			Signatures: []string{"이용일", "이용하신곳", "이용금액"},
		},
		{
			Type:       domain.SourceAccountStatement,
			Name:       "KB국민은행 계좌",
			Signatures: []string{"거래일시", "적요", "출금액", "입금액"},
		},
	}
}

func row(cells ...any) []sheet.Cell {
	return cells
}

func TestMatchRow_AllKeywordsRegardlessOfSpacing(t *testing.T) {
	defs := testDefinitions()

	def := MatchRow(row("No", "이용 일", "이용하신 곳", "이용금액(원)", "비고"), defs)

	require.NotNil(t, def)
	assert.Equal(t, "신한카드", def.Name)
}

func TestMatchRow_EveryDefinitionRecognizesItsOwnSignature(t *testing.T) {
	defs := testDefinitions()
	for i := range defs {
		cells := make([]sheet.Cell, 0, len(defs[i].Signatures)+1)
		cells = append(cells, "extra")
		for _, s := range defs[i].Signatures {
			cells = append(cells, s)
		}

		def := MatchRow(cells, defs)

		require.NotNil(t, def, defs[i].Name)
		assert.Equal(t, defs[i].Name, def.Name)
	}
}

func TestMatchRow_PartialSignatureDoesNotMatch(t *testing.T) {
	def := MatchRow(row("이용일", "이용하신곳", "결제예정일"), testDefinitions())
	assert.Nil(t, def)
}

func TestMatchRow_CaseSensitive(t *testing.T) {
	defs := []domain.SourceDefinition{{Type: domain.SourceCardStatement, Name: "Card", Signatures: []string{"Date", "Amount"}}}
	assert.Nil(t, MatchRow(row("date", "amount"), defs))
	assert.NotNil(t, MatchRow(row("Date", "Amount"), defs))
}

func TestMatchRow_SparseRowSkipped(t *testing.T) {
	// One cell carries all three keywords, but the row is too short to be a header.
	def := MatchRow(row("이용일 이용하신곳 이용금액"), testDefinitions())
	assert.Nil(t, def)
}

func TestMatchRow_MalformedRowNotClaimedByLaterDefinition(t *testing.T) {
	defs := []domain.SourceDefinition{
		{Type: domain.SourceCardStatement, Name: "wide", Signatures: []string{"이용일", "이용금액", "가맹점"}},
		{Type: domain.SourceCardStatement, Name: "narrow", Signatures: []string{"이용일", "이용금액"}},
	}

	assert.Nil(t, MatchRow(row("이용일 가맹점", "이용금액"), defs))

	def := MatchRow(row("이용일", "가맹점", "이용금액"), defs)
	require.NotNil(t, def)
	assert.Equal(t, "wide", def.Name)
}

func TestMatchRow_FirstDefinitionWinsTie(t *testing.T) {
	defs := []domain.SourceDefinition{
		{Type: domain.SourceCardStatement, Name: "first", Signatures: []string{"이용일", "이용금액"}},
		{Type: domain.SourceCardStatement, Name: "second", Signatures: []string{"이용일", "이용금액"}},
	}
	def := MatchRow(row("이용일", "이용금액"), defs)
	require.NotNil(t, def)
	assert.Equal(t, "first", def.Name)
}

func TestMatchRows_BoundedDepth(t *testing.T) {
	rows := make([][]sheet.Cell, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, row("제목", nil))
	}
	rows = append(rows, row("이용일", "이용하신곳", "이용금액"))

	_, _, ok := MatchRows(rows, testDefinitions(), 5)
	assert.False(t, ok)

	idx, def, ok := MatchRows(rows, testDefinitions(), 0)
	require.True(t, ok)
	assert.Equal(t, 10, idx)
	assert.Equal(t, "신한카드", def.Name)
}

func TestIdentify_SheetOrderThenRowOrder(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Sheet{
		{Name: "표지", Rows: [][]sheet.Cell{row("카드 이용내역")}},
		{Name: "카드", Rows: [][]sheet.Cell{
			row("카드 이용내역"),
			row("이용일", "이용시간", "이용하신곳", "이용금액"),
			row("2025-01-10", "13:00", "스타벅스", 4500.0),
		}},
		{Name: "계좌", Rows: [][]sheet.Cell{
			row("거래일시", "적요", "출금액", "입금액"),
		}},
	}}

	res := NewIdentifier(testDefinitions(), 0).Identify(context.Background(), wb)

	require.True(t, res.Matched())
	assert.Equal(t, "신한카드", res.Definition.Name)
	assert.Equal(t, "카드", res.SheetName)
	assert.Equal(t, 1, res.HeaderIndex)
	assert.Equal(t, []string{"이용일", "이용시간", "이용하신곳", "이용금액"}, res.HeaderRow)
	assert.Len(t, res.DataRows(), 1)
}

func TestIdentify_FailureCarriesProbe(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Sheet{
		{Name: "Sheet1", Rows: [][]sheet.Cell{
			row("거래처", nil, "  ", 1200.0, "a", "b", "c", "d", "e", "f", "g", "h"),
		}},
	}}

	res := NewIdentifier(testDefinitions(), 0).Identify(context.Background(), wb)

	assert.False(t, res.Matched())
	assert.Nil(t, res.Definition)
	assert.Nil(t, res.HeaderRow)
	assert.Equal(t, "거래처 | <empty> | <empty> | 1200 | a | b | c | d | e | f", res.Probe)
}

func TestProbe_AbsentData(t *testing.T) {
	assert.Equal(t, EmptyMarker, Probe(nil))
	assert.Equal(t, EmptyMarker, Probe(&sheet.Workbook{}))
	assert.Equal(t, EmptyMarker, Probe(&sheet.Workbook{Sheets: []sheet.Sheet{{Name: "빈 시트"}}}))
}

func TestProbe_PadsToTenColumns(t *testing.T) {
	empty := strings.Repeat(EmptyMarker+" | ", 9) + EmptyMarker
	assert.Equal(t, empty, Probe(&sheet.Workbook{Sheets: []sheet.Sheet{{Name: "s", Rows: [][]sheet.Cell{{}}}}}))

	wb := &sheet.Workbook{Sheets: []sheet.Sheet{{Name: "s", Rows: [][]sheet.Cell{row("거래처", "비고")}}}}
	probe := Probe(wb)

	assert.Equal(t, "거래처 | 비고 | <empty> | <empty> | <empty> | <empty> | <empty> | <empty> | <empty> | <empty>", probe)
	assert.Len(t, strings.Split(probe, " | "), 10)
}

func TestIdentify_DecomposedHangulHeader(t *testing.T) {
	// NFD form, as written by some macOS tools.
	decomposed := norm.NFD.String("이용일")
	require.False(t, strings.Contains(decomposed, "이용일"))

	wb := &sheet.Workbook{Sheets: []sheet.Sheet{{Name: "s", Rows: [][]sheet.Cell{
		row(decomposed, "이용하신곳", "이용금액"),
	}}}}

	res := NewIdentifier(testDefinitions(), 0).Identify(context.Background(), wb)

	require.True(t, res.Matched())
	assert.Equal(t, "이용일", res.HeaderRow[0])
}
