package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-normalizer/internal/catalog"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
	"github.com/dvloznov/statement-normalizer/internal/reader"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

const cardCSV = "이용일,이용시간,이용하신곳,이용금액\n" +
	"2025.01.10,12:30,스타벅스 강남점,4500\n" +
	"2025.01.11,09:00,AWS,\"₩36,411\"\n" +
	",,,\n"

const payrollCSV = "성명,기본급,공제합계,실지급액\n" +
	"홍길동,3000000,300000,2700000\n" +
	"김철수,3000000,300000,2700000\n" +
	"합계,6000000,600000,5400000\n"

const unknownCSV = "거래처,비고\n에이,1200\n"

var fixedNow = time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts pipeline.Options) *pipeline.Service {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return pipeline.NewService(cat, opts)
}

func TestProcessFile_CardStatement(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	res, err := svc.ProcessFile(context.Background(), "shinhan.csv", []byte(cardCSV))

	require.NoError(t, err)
	require.Nil(t, res.Failure)
	assert.Equal(t, "신한카드", res.Source)
	assert.Equal(t, domain.SourceCardStatement, res.SourceType)
	assert.Equal(t, 0, res.HeaderIndex)
	require.Len(t, res.Records, 2)

	coffee := res.Records[0]
	assert.Equal(t, "2025-01-10", coffee.Date)
	assert.Equal(t, "2025.01.10", coffee.DisplayDate)
	assert.Equal(t, "12:30", coffee.Time)
	assert.Equal(t, 4500.0, coffee.Amount)
	assert.Equal(t, "커피", coffee.Item)
	assert.Equal(t, "복리후생비", coffee.CategoryDetail)
	assert.Equal(t, domain.ChannelCard, coffee.Channel())
	assert.Equal(t, "신한카드", coffee.CardDetail)
	assert.Equal(t, "shinhan.csv", coffee.RawFilename)

	cloud := res.Records[1]
	assert.Equal(t, 36411.0, cloud.Amount)
	assert.Equal(t, "클라우드", cloud.Item)
	assert.Equal(t, "IT", cloud.CategoryMSO)
}

func TestProcessFile_PayrollSummary(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	res, err := svc.ProcessFile(context.Background(), "급여대장.csv", []byte(payrollCSV))

	require.NoError(t, err)
	assert.Equal(t, domain.SourcePayrollSummary, res.SourceType)
	require.Len(t, res.Records, 3)

	amounts := []float64{res.Records[0].Amount, res.Records[1].Amount, res.Records[2].Amount}
	assert.Equal(t, []float64{5400000, 600000, 500000}, amounts)
	assert.Equal(t, "급여", res.Records[0].Item)
	assert.Equal(t, "원천세", res.Records[1].Item)
	assert.Equal(t, "퇴직연금", res.Records[2].Item)
	for _, r := range res.Records {
		assert.Equal(t, "2025-03-31", r.Date)
		assert.Equal(t, domain.ChannelCash, r.Channel())
	}
}

func TestProcessFile_Unidentified(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	res, err := svc.ProcessFile(context.Background(), "unknown.csv", []byte(unknownCSV))

	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Equal(t, "unknown.csv", res.Failure.Filename)
	assert.Contains(t, res.Failure.Probe, "거래처 | 비고 | <empty>")
	assert.Empty(t, res.Records)
	assert.Equal(t, -1, res.HeaderIndex)
	assert.Empty(t, res.Source)
}

func TestProcessFile_ReadErrorReturned(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	_, err := svc.ProcessFile(context.Background(), "blob.bin", []byte{0x00, 0x01, 0x02})

	require.Error(t, err)
	assert.True(t, errors.Is(err, reader.ErrUnsupportedFormat))
}

type stubReader struct {
	wb  *sheet.Workbook
	err error
}

func (s *stubReader) Read(ctx context.Context, filename string, data []byte) (*sheet.Workbook, error) {
	return s.wb, s.err
}

func TestProcessFile_UsesInjectedReader(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Sheet{
		{Name: "요약", Rows: [][]sheet.Cell{{"조회기간", "2025.01"}}},
		{Name: "내역", Rows: [][]sheet.Cell{
			{"이용일", "이용하신곳", "이용금액"},
			{45672.0, "택시", 12000.0},
		}},
	}}
	svc := newService(t, pipeline.Options{Reader: &stubReader{wb: wb}})

	res, err := svc.ProcessFile(context.Background(), "card.xlsx", nil)

	require.NoError(t, err)
	assert.Equal(t, "내역", res.SheetName)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "2025-01-15", res.Records[0].Date)
	assert.Equal(t, "교통비", res.Records[0].Item)
}

func TestProcessBatch_IsolatesFailures(t *testing.T) {
	svc := newService(t, pipeline.Options{Parallelism: 2})
	inputs := []pipeline.Input{
		{Filename: "shinhan.csv", Data: []byte(cardCSV)},
		{Filename: "unknown.csv", Data: []byte(unknownCSV)},
		{Filename: "blob.bin", Data: []byte{0x00}},
		{Filename: "급여대장.csv", Data: []byte(payrollCSV)},
	}

	batch := svc.ProcessBatch(context.Background(), inputs)

	require.Len(t, batch.Files, 4)
	for i, in := range inputs {
		assert.Equal(t, in.Filename, batch.Files[i].Filename)
	}
	assert.Equal(t, pipeline.Summary{Files: 4, Succeeded: 2, Failed: 2, Records: 5}, batch.Summary)
	assert.Len(t, batch.Records(), 5)
	assert.Equal(t, "shinhan.csv", batch.Records()[0].RawFilename)

	failures := batch.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "unknown.csv", failures[0].Filename)
	assert.Equal(t, "blob.bin", failures[1].Filename)
	assert.Contains(t, failures[1].Reason, "unsupported")
}

func TestProcessBatch_ManyFiles(t *testing.T) {
	svc := newService(t, pipeline.Options{Parallelism: 3})
	var inputs []pipeline.Input
	for i := 0; i < 20; i++ {
		inputs = append(inputs, pipeline.Input{Filename: fmt.Sprintf("card-%02d.csv", i), Data: []byte(cardCSV)})
	}

	batch := svc.ProcessBatch(context.Background(), inputs)

	assert.Equal(t, 20, batch.Summary.Succeeded)
	assert.Equal(t, 40, batch.Summary.Records)
	assert.Equal(t, "card-19.csv", batch.Files[19].Filename)
}

func TestProcessBatch_CanceledContext(t *testing.T) {
	svc := newService(t, pipeline.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := svc.ProcessBatch(ctx, []pipeline.Input{{Filename: "shinhan.csv", Data: []byte(cardCSV)}})

	assert.Equal(t, 1, batch.Summary.Failed)
	assert.Contains(t, batch.Files[0].Failure.Reason, "canceled")
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	var ran []int
	step := func(n int, err error) pipeline.PipelineStep {
		return stepFunc(func(ctx context.Context, s *pipeline.PipelineState) error {
			ran = append(ran, n)
			return err
		})
	}

	err := pipeline.NewPipeline(step(1, nil), step(2, errors.New("boom")), step(3, nil)).
		Execute(context.Background(), &pipeline.PipelineState{})

	require.Error(t, err)
	assert.Equal(t, "pipeline step 2 failed: boom", err.Error())
	assert.Equal(t, []int{1, 2}, ran)
}

type stepFunc func(ctx context.Context, s *pipeline.PipelineState) error

func (f stepFunc) Execute(ctx context.Context, s *pipeline.PipelineState) error {
	return f(ctx, s)
}

func TestIdentify(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	res, err := svc.Identify(context.Background(), "shinhan.csv", []byte(cardCSV))

	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, "신한카드", res.Definition.Name)
	assert.Equal(t, 0, res.HeaderIndex)
}

func TestIdentify_Unmatched(t *testing.T) {
	svc := newService(t, pipeline.Options{})

	res, err := svc.Identify(context.Background(), "unknown.csv", []byte(unknownCSV))

	require.NoError(t, err)
	assert.False(t, res.Matched())
	assert.Contains(t, res.Probe, "거래처")
}

func TestPipeline_CanceledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran int
	err := pipeline.NewPipeline(
		stepFunc(func(context.Context, *pipeline.PipelineState) error { ran++; cancel(); return nil }),
		stepFunc(func(context.Context, *pipeline.PipelineState) error { ran++; return nil }),
	).Execute(ctx, &pipeline.PipelineState{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ran)
}
