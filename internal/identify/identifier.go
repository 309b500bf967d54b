package identify

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

const (
	probeColumns = 10
	// EmptyMarker stands in for absent cells in a probe.
	EmptyMarker = "<empty>"
)

// Identifier routes a workbook to the definition whose signature it carries.
// It holds no mutable state and is safe for concurrent use.
type Identifier struct {
	defs        []domain.SourceDefinition
	maxScanRows int
}

// NewIdentifier creates an Identifier over defs, in priority order.
// maxScanRows <= 0 selects DefaultMaxScanRows.
func NewIdentifier(defs []domain.SourceDefinition, maxScanRows int) *Identifier {
	if maxScanRows <= 0 {
		maxScanRows = DefaultMaxScanRows
	}
	return &Identifier{defs: defs, maxScanRows: maxScanRows}
}

// Definitions returns the catalog the identifier matches against.
func (id *Identifier) Definitions() []domain.SourceDefinition {
	return id.defs
}

// Identify returns the first match in sheet order, then row order. When two
// sheets both carry a signature, the earlier sheet wins.
// An unmatched result has a nil Definition and a populated Probe.
func (id *Identifier) Identify(ctx context.Context, wb *sheet.Workbook) *domain.IdentificationResult {
	log := logger.FromContext(ctx)

	for _, sh := range wb.Sheets {
		idx, def, ok := MatchRows(sh.Rows, id.defs, id.maxScanRows)
		if !ok {
			log.Debug().Str("sheet", sh.Name).Msg("No signature in sheet")
			continue
		}
		log.Info().
			Str("sheet", sh.Name).
			Str("source", def.Name).
			Int("header_index", idx).
			Msg("Source identified")
		return &domain.IdentificationResult{
			Definition:  def,
			HeaderRow:   sheet.RowStrings(sh.Rows[idx]),
			HeaderIndex: idx,
			SheetName:   sh.Name,
			Rows:        sh.Rows,
		}
	}

	probe := Probe(wb)
	log.Warn().Str("probe", probe).Msg("No source signature matched")
	return &domain.IdentificationResult{HeaderIndex: -1, Probe: probe}
}

// Probe renders the first columns of the first sheet's first row for
// troubleshooting. It never fails on missing data.
func Probe(wb *sheet.Workbook) string {
	if wb == nil || len(wb.Sheets) == 0 || len(wb.Sheets[0].Rows) == 0 {
		return EmptyMarker
	}
	row := wb.Sheets[0].Rows[0]
	parts := make([]string, probeColumns)
	for i := range parts {
		parts[i] = EmptyMarker
		if i < len(row) {
			if s := sheet.CellString(row[i]); s != "" {
				parts[i] = s
			}
		}
	}
	return strings.Join(parts, " | ")
}
