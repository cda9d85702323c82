package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pvp-extractor/internal/extract"
	"github.com/a3tai/mcp-pvp-extractor/internal/intelligence"
	"github.com/a3tai/mcp-pvp-extractor/internal/logging"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/tables"
)

var protocolPage = pdftest.TextPage(
	"PARACETAMOL INJECTION 150 mg/ml",
	"Batch Size: 10,000 vials",
	"Raw Materials",
	"Paracetamol: IP",
	"Manufacturing Process",
	"Aseptic filling of vials under grade A.",
	"Hold Time Study",
	"0 hour: Initial",
	"Observations: none",
)

type stubDetector struct {
	grids map[tables.Strategy][]tables.Grid
}

func (s stubDetector) Detect(_ context.Context, _ string, strategy tables.Strategy) ([]tables.Grid, error) {
	return s.grids[strategy], nil
}

type stubAI struct{ reply string }

func (s stubAI) Generate(context.Context, string) (string, error) {
	return s.reply, nil
}

type stubOCR struct {
	text  string
	calls int
}

func (s *stubOCR) Recognize(context.Context, string, int) (string, error) {
	s.calls++
	return s.text, nil
}

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *Metrics) {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Detector == nil {
		opts.Detector = stubDetector{}
	}
	opts.MaxFileSize = 1 << 20
	return New(opts), opts.Metrics
}

func assertDegenerate(t *testing.T, res *extract.ExtractionResult) {
	t.Helper()
	require.NotNil(t, res)
	assert.True(t, res.Degenerate)
	assert.Zero(t, res.RawTextLength)
	assert.True(t, res.Empty())
	assert.Equal(t, noDataMessage, Message(res))

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "null")
}

func TestRun_InputFailures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	notPDF := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("just some text, not a document"), 0o600))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"zero bytes", empty, pdf.ErrEmptyFile},
		{"not a pdf", notPDF, pdf.ErrNotPDF},
		{"missing", filepath.Join(dir, "missing.pdf"), pdf.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := newTestPipeline(t, Options{})
			res, err := p.Run(context.Background(), tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, pdf.IsInputFailure(err))
			assertDegenerate(t, res)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeRejected)))
		})
	}
}

func TestRun_NoText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "blank.pdf", pdftest.Page{})
	p, m := newTestPipeline(t, Options{})

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assertDegenerate(t, res)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeEmpty)))
}

func TestRun_OCRShortPageWithDefaultOptions(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "scan.pdf", pdftest.TextPage("Cover"))
	engine := &stubOCR{text: "PARACETAMOL INJECTION 150 mg/ml\nHold Time Study"}
	p, m := newTestPipeline(t, Options{OCR: engine})

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrPages))
	assert.False(t, res.Degenerate)
	assert.Greater(t, res.RawTextLength, len("Cover"))
	assert.Equal(t, "PARACETAMOL INJECTION 150 mg/ml", res.ProductInfo.ProductName)
}

func TestRun_Protocol(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "protocol.pdf", protocolPage)
	detector := stubDetector{grids: map[tables.Strategy][]tables.Grid{
		tables.Lattice: {{
			{"S.No", "Equipment Name", "Equipment ID"},
			{"1", "Autoclave", "AC-01"},
		}},
	}}
	p, m := newTestPipeline(t, Options{Detector: detector})

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.False(t, res.Degenerate)
	assert.Equal(t, 1, res.PageCount)
	assert.Positive(t, res.RawTextLength)
	assert.Equal(t, intelligence.ProductInjectable, res.ProductType)

	assert.Equal(t, "PARACETAMOL INJECTION 150 mg/ml", res.ProductInfo.ProductName)
	assert.Equal(t, "10,000 vials", res.ProductInfo.BatchSize)
	assert.Equal(t, extract.StrategyRegex, res.Strategies[extract.EntityProductInfo])

	assert.Equal(t, []extract.Equipment{{Name: "Autoclave", ID: "AC-01", Location: "N/A", CalibrationStatus: "N/A"}}, res.Equipment)
	assert.Equal(t, extract.StrategyTable, res.Strategies[extract.EntityEquipment])

	require.NotEmpty(t, res.Materials)
	assert.Equal(t, "Paracetamol", res.Materials[0].Name)
	assert.Equal(t, extract.StrategyRegex, res.Strategies[extract.EntityMaterials])

	assert.Equal(t, []extract.HoldTimeEntry{{Time: "0 hour", Description: "Initial"}}, res.HoldTimeStudy.AfterFiltration)
	assert.Equal(t, "none", res.Observations)

	for _, task := range extract.Tasks() {
		assert.Contains(t, res.Strategies, task.Name)
	}
	assert.NotEqual(t, noDataMessage, Message(res))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategies.WithLabelValues(extract.EntityEquipment, "table")))
}

func TestRun_ExtractorPanicIsIsolated(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "protocol.pdf", protocolPage)
	p, _ := newTestPipeline(t, Options{Workers: 2})
	p.tasks = append([]extract.Task{{
		Name: extract.EntityStages,
		Run: func(context.Context, *extract.Document, *extract.ExtractionResult) extract.Strategy {
			panic("boom")
		},
	}}, p.tasks[3:]...)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.NotNil(t, res.Stages)
	assert.Empty(t, res.Stages)
	assert.Equal(t, extract.StrategyNone, res.Strategies[extract.EntityStages])
	assert.NotEmpty(t, res.HoldTimeStudy.AfterFiltration)
}

func TestRun_Cancelled(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "protocol.pdf", protocolPage)
	p, m := newTestPipeline(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.NotNil(t, res.Equipment)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeCancelled)))
}

func TestRun_AIFallbackCounted(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "protocol.pdf", protocolPage)
	p, m := newTestPipeline(t, Options{AI: stubAI{reply: "not json"}, AITimeout: time.Second})

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, extract.StrategyRegex, res.Strategies[extract.EntityProductInfo])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiFallbacks))

	p, m = newTestPipeline(t, Options{AI: stubAI{reply: `{"product_name": "Paracetamol Injection"}`}})
	res, err = p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, extract.StrategyAI, res.Strategies[extract.EntityProductInfo])
	assert.Equal(t, "Paracetamol Injection", res.ProductInfo.ProductName)
	assert.Zero(t, testutil.ToFloat64(m.aiFallbacks))
}

func TestRunReader(t *testing.T) {
	staging := t.TempDir()
	p, _ := newTestPipeline(t, Options{TempDir: staging})

	res, err := p.RunReader(context.Background(), bytes.NewReader(pdftest.Build(protocolPage)))
	require.NoError(t, err)
	assert.Equal(t, "PARACETAMOL INJECTION 150 mg/ml", res.ProductInfo.ProductName)

	res, err = p.RunReader(context.Background(), bytes.NewReader(nil))
	assert.True(t, errors.Is(err, pdf.ErrEmptyFile))
	assert.True(t, res.Degenerate)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged uploads are removed")
}

func TestRunReader_TooLarge(t *testing.T) {
	p, _ := newTestPipeline(t, Options{TempDir: t.TempDir()})
	big := append(pdftest.Build(protocolPage), make([]byte, 1<<20)...)

	res, err := p.RunReader(context.Background(), bytes.NewReader(big))
	assert.ErrorIs(t, err, pdf.ErrTooLarge)
	assert.True(t, res.Degenerate)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, noDataMessage, Message(nil))
	assert.Equal(t, noDataMessage, Message(extract.NewResult()))

	res := extract.NewResult()
	res.PageCount = 3
	res.Equipment = []extract.Equipment{{Name: "Autoclave", ID: "N/A"}}
	assert.Equal(t,
		"Extracted Injectable product data from 3 pages: 1 equipment, 0 materials, 0 stages, 0 batch rows, 0 hold-time points, 0 QC results.",
		Message(res))
}
