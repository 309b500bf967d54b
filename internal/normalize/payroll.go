package normalize

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
	"github.com/dvloznov/statement-normalizer/internal/values"
)

// DefaultTotalsMarker identifies the aggregate row of a payroll summary.
const DefaultTotalsMarker = "합계"

// pensionAccrualMonths spreads the annual retirement accrual over a year.
const pensionAccrualMonths = 12

// Posting is the fixed label and categories of one synthetic payroll entry.
type Posting struct {
	Item           string `yaml:"item" json:"item"`
	CategoryDetail string `yaml:"category_detail" json:"category_detail"`
	CategoryMain   string `yaml:"category_main" json:"category_main"`
}

// PayrollPostings labels the three entries synthesized from a totals row.
type PayrollPostings struct {
	NetPayment Posting `yaml:"net_payment" json:"net_payment"`
	Deduction  Posting `yaml:"deduction" json:"deduction"`
	Pension    Posting `yaml:"pension" json:"pension"`
}

func (p PayrollPostings) empty() bool {
	return p == PayrollPostings{}
}

// DefaultPayrollPostings returns the personnel, withholding tax and pension labels.
func DefaultPayrollPostings() PayrollPostings {
	return PayrollPostings{
		NetPayment: Posting{Item: "급여", CategoryDetail: "급여", CategoryMain: "인건비"},
		Deduction:  Posting{Item: "원천세", CategoryDetail: "원천세", CategoryMain: "세금과공과"},
		Pension:    Posting{Item: "퇴직연금", CategoryDetail: "퇴직연금", CategoryMain: "퇴직급여"},
	}
}

var payrollFields = []domain.Field{
	domain.FieldNetPayment,
	domain.FieldTotalDeduction,
}

// normalizePayroll synthesizes exactly three records from the totals row, or
// none when the sheet has no totals row.
func (n *Normalizer) normalizePayroll(ctx context.Context, res *domain.IdentificationResult, filename string) *Result {
	log := logger.FromContext(ctx)
	out := &Result{}
	cols := resolveColumns(ctx, res, payrollFields, out)

	rows := res.DataRows()
	if len(rows) > n.maxDataRows {
		rows = rows[:n.maxDataRows]
	}

	totals := findTotalsRow(rows, n.totalsMarker)
	if totals == nil {
		log.Warn().
			Str("source", res.Definition.Name).
			Str("marker", n.totalsMarker).
			Msg("Totals row not found")
		out.Diagnostics = append(out.Diagnostics, "missing totals row ("+n.totalsMarker+")")
		return out
	}

	net := values.ExtractAmount(sheet.At(totals, cols.index(domain.FieldNetPayment)))
	deduction := values.ExtractAmount(sheet.At(totals, cols.index(domain.FieldTotalDeduction)))
	pension := (net + deduction) / pensionAccrualMonths

	date := n.now().Format(values.CanonicalDateLayout)
	out.Records = []*domain.TransactionRecord{
		n.posting(res.Definition, filename, date, net, n.payroll.NetPayment),
		n.posting(res.Definition, filename, date, deduction, n.payroll.Deduction),
		n.posting(res.Definition, filename, date, pension, n.payroll.Pension),
	}

	log.Info().
		Str("source", res.Definition.Name).
		Float64("net_payment", net).
		Float64("total_deduction", deduction).
		Msg("Payroll summary normalized")
	return out
}

func (n *Normalizer) posting(def *domain.SourceDefinition, filename, date string, amount float64, p Posting) *domain.TransactionRecord {
	rec := domain.NewTransactionRecord(def, filename)
	rec.Date = date
	rec.Amount = amount
	rec.RawDescription = p.Item
	rec.Item = p.Item
	rec.CategoryDetail = p.CategoryDetail
	rec.CategoryMain = p.CategoryMain
	return rec
}

// findTotalsRow returns the first row where any cell contains marker,
// ignoring case and whitespace.
func findTotalsRow(rows [][]sheet.Cell, marker string) []sheet.Cell {
	needle := strings.ToLower(sheet.StripSpace(marker))
	for _, row := range rows {
		for _, c := range row {
			if strings.Contains(strings.ToLower(sheet.StripSpace(sheet.CellString(c))), needle) {
				return row
			}
		}
	}
	return nil
}
