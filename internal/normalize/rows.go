package normalize

import (
	"context"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
	"github.com/dvloznov/statement-normalizer/internal/values"
)

var rowFields = []domain.Field{
	domain.FieldDate,
	domain.FieldTime,
	domain.FieldDescription,
	domain.FieldAmount,
	domain.FieldAmountAlt,
}

// normalizeRows emits one record per dated row below the header.
func (n *Normalizer) normalizeRows(ctx context.Context, res *domain.IdentificationResult, filename string) *Result {
	log := logger.FromContext(ctx)
	out := &Result{}
	cols := resolveColumns(ctx, res, rowFields, out)

	dateIdx := cols.index(domain.FieldDate)
	timeIdx := cols.index(domain.FieldTime)
	descIdx := cols.index(domain.FieldDescription)
	amountIdx := cols.index(domain.FieldAmount)
	altIdx := cols.index(domain.FieldAmountAlt)

	rows := res.DataRows()
	if len(rows) > n.maxDataRows {
		log.Warn().
			Int("rows", len(rows)).
			Int("max_rows", n.maxDataRows).
			Msg("Row cap reached, truncating")
		rows = rows[:n.maxDataRows]
	}

	skipped := 0
	for _, row := range rows {
		dateCell := sheet.At(row, dateIdx)
		if sheet.IsEmpty(dateCell) {
			skipped++
			continue
		}

		raw := sheet.At(row, amountIdx)
		if values.IsZeroAmount(raw) {
			if alt := sheet.At(row, altIdx); !sheet.IsEmpty(alt) {
				raw = alt
			}
		}

		rec := domain.NewTransactionRecord(res.Definition, filename)
		rec.Date = values.NormalizeDate(dateCell)
		rec.Time = timeString(sheet.At(row, timeIdx))
		rec.RawDescription = sheet.CellString(sheet.At(row, descIdx))
		rec.Amount = values.ExtractAmount(raw)
		out.Records = append(out.Records, rec)
	}

	log.Info().
		Str("source", res.Definition.Name).
		Int("records", len(out.Records)).
		Int("skipped_rows", skipped).
		Msg("Rows normalized")
	return out
}

// timeString keeps text times as they are and formats xlsx time-only serials.
func timeString(c sheet.Cell) string {
	if t, ok := values.TimeOfDay(c); ok {
		return t
	}
	return sheet.CellString(c)
}
