// Package normalize turns an identified sheet into canonical transaction records.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/fieldmap"
	"github.com/dvloznov/statement-normalizer/internal/logger"
)

// DefaultMaxDataRows bounds the row loop per file.
const DefaultMaxDataRows = 100000

// ErrNotIdentified is returned when Normalize is called without a matched definition.
var ErrNotIdentified = errors.New("normalize: identification result has no definition")

// Options configures a Normalizer. Zero values select the defaults.
type Options struct {
	MaxDataRows  int
	TotalsMarker string
	Payroll      PayrollPostings
	Now          func() time.Time
}

// Normalizer converts identification results into records. It is safe for
// concurrent use.
type Normalizer struct {
	maxDataRows  int
	totalsMarker string
	payroll      PayrollPostings
	now          func() time.Time
}

// Result is the output of one file's normalization.
type Result struct {
	Records []*domain.TransactionRecord
	// Diagnostics are operator-facing notes: missing columns, missing totals row.
	Diagnostics []string
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		maxDataRows:  opts.MaxDataRows,
		totalsMarker: opts.TotalsMarker,
		payroll:      opts.Payroll,
		now:          opts.Now,
	}
	if n.maxDataRows <= 0 {
		n.maxDataRows = DefaultMaxDataRows
	}
	if n.totalsMarker == "" {
		n.totalsMarker = DefaultTotalsMarker
	}
	if n.payroll.empty() {
		n.payroll = DefaultPayrollPostings()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Normalize dispatches on the definition's type.
func (n *Normalizer) Normalize(ctx context.Context, res *domain.IdentificationResult, filename string) (*Result, error) {
	if !res.Matched() {
		return nil, ErrNotIdentified
	}
	switch res.Definition.Type {
	case domain.SourcePayrollSummary:
		return n.normalizePayroll(ctx, res, filename), nil
	case domain.SourceCardStatement, domain.SourceAccountStatement:
		return n.normalizeRows(ctx, res, filename), nil
	default:
		return nil, fmt.Errorf("Normalize: unsupported source type %q", res.Definition.Type)
	}
}

// columns maps logical fields to resolved indexes for one file.
type columns map[domain.Field]int

func (c columns) index(f domain.Field) int {
	if idx, ok := c[f]; ok {
		return idx
	}
	return fieldmap.NotFound
}

// resolveColumns looks up each field once and records a diagnostic for every
// field that is configured but absent from the header.
func resolveColumns(ctx context.Context, res *domain.IdentificationResult, fields []domain.Field, out *Result) columns {
	log := logger.FromContext(ctx)
	cols := make(columns, len(fields))
	for _, f := range fields {
		candidates := res.Definition.Candidates(f)
		idx := fieldmap.Find(res.HeaderRow, candidates)
		cols[f] = idx
		if idx == fieldmap.NotFound && len(candidates) > 0 {
			log.Warn().
				Str("source", res.Definition.Name).
				Str("field", string(f)).
				Strs("candidates", candidates).
				Msg("Column not found in header")
			out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("missing column %s %v", f, candidates))
		}
	}
	return cols
}
