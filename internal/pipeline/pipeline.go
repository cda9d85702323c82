// Package pipeline runs the full extraction of one protocol document:
// input validation, text and table layers, classification, product info
// and the entity extractors, then statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pvp-extractor/internal/ai"
	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
	"github.com/a3tai/mcp-pvp-extractor/internal/extract"
	"github.com/a3tai/mcp-pvp-extractor/internal/intelligence"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/ocr"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/tables"
)

const (
	DefaultWorkers = 4

	noDataMessage = "No data could be extracted. Please check that the PDF has selectable text or try a clearer scan."
)

// Options wires the collaborators of a Pipeline. Zero values select the
// defaults: no OCR, no AI, the ledongthuc table detector, unregistered
// metrics and slog.Default.
type Options struct {
	MaxFileSize int64
	OCR         ocr.Engine
	Text        pdf.TextOptions
	Detector    tables.Detector
	AI          ai.Client
	AIExcerpt   int
	AITimeout   time.Duration
	Workers     int
	Metrics     *Metrics
	Logger      *slog.Logger
	// TempDir is the parent of staged uploads; empty means os.TempDir.
	TempDir string
}

// Pipeline is safe for concurrent use; every run gets its own result.
type Pipeline struct {
	maxFileSize int64
	validator   *pdf.Validator
	text        *pdf.TextExtractor
	tables      *tables.Extractor
	classifier  *intelligence.Classifier
	product     *extract.ProductExtractor
	aiEnabled   bool
	tasks       []extract.Task
	workers     int
	metrics     *Metrics
	logger      *slog.Logger
	tempDir     string
}

// New builds a pipeline from opts.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detector := opts.Detector
	if detector == nil {
		detector = tables.NewPageDetector(logger)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Pipeline{
		maxFileSize: opts.MaxFileSize,
		validator:   pdf.NewValidator(opts.MaxFileSize),
		text:        pdf.NewTextExtractor(opts.OCR, opts.Text, logger),
		tables:      tables.NewExtractor(detector, logger),
		classifier:  intelligence.NewClassifier(),
		product:     extract.NewProductExtractor(opts.AI, opts.AIExcerpt, opts.AITimeout, logger),
		aiEnabled:   opts.AI != nil,
		tasks:       extract.Tasks(),
		workers:     workers,
		metrics:     metrics,
		logger:      logger,
		tempDir:     opts.TempDir,
	}
}

// Classifier exposes the document classifier.
func (p *Pipeline) Classifier() *intelligence.Classifier {
	return p.classifier
}

// Inspect validates path without extracting anything.
func (p *Pipeline) Inspect(path string) (*pdf.DocumentInfo, error) {
	return p.validator.Inspect(path)
}

// Text returns the preprocessed text layer of path.
func (p *Pipeline) Text(ctx context.Context, path string) (string, error) {
	if _, err := p.validator.Inspect(path); err != nil {
		return "", err
	}
	txt, err := p.text.Extract(ctx, path)
	if txt == nil {
		return "", err
	}
	return clean.PreprocessText(txt.Content), err
}

// Run extracts everything from the PDF at path. The returned result is
// never nil and always normalized. Input failures yield the degenerate
// result together with the typed *pdf.Error; cancellation yields the
// partial result built so far together with the context error.
func (p *Pipeline) Run(ctx context.Context, path string) (*extract.ExtractionResult, error) {
	start := time.Now()
	res := extract.NewResult()
	res.RunID = uuid.NewString()
	logger := p.logger.With("run_id", res.RunID, "path", path)

	outcome := OutcomeOK
	defer func() {
		p.metrics.runs.WithLabelValues(outcome).Inc()
		p.metrics.duration.Observe(time.Since(start).Seconds())
		logger.Info("extraction finished", "outcome", outcome, "duration", time.Since(start))
	}()

	info, err := p.validator.Inspect(path)
	if err != nil {
		outcome = OutcomeRejected
		logger.Warn("input rejected", "error", err)
		res.Degenerate = true
		return res, err
	}
	res.PageCount = info.PageCount

	txt, err := p.text.Extract(ctx, path)
	if err != nil && txt == nil {
		outcome = OutcomeRejected
		logger.Warn("text layer unavailable", "error", err)
		res.Degenerate = true
		return res, err
	}
	p.metrics.ocrPages.Add(float64(len(txt.OCRPages)))
	if err != nil {
		outcome = OutcomeCancelled
		return res, err
	}

	text := clean.PreprocessText(txt.Content)
	res.RawTextLength = utf8.RuneCountInString(text)
	if strings.TrimSpace(text) == "" {
		outcome = OutcomeEmpty
		logger.Warn("document has no extractable text", "pages", info.PageCount)
		res.Degenerate = true
		return res, nil
	}

	grids, tableStrategy := p.tables.Extract(ctx, path)
	logger.Debug("table layer", "strategy", tableStrategy, "tables", len(grids))

	res.ProductType = p.classifier.Classify(text)

	res.ProductInfo, res.Strategies[extract.EntityProductInfo] = p.product.Extract(ctx, text)
	if p.aiEnabled && res.Strategies[extract.EntityProductInfo] != extract.StrategyAI {
		p.metrics.aiFallbacks.Inc()
	}

	err = p.runTasks(ctx, extract.NewDocument(text, grids), res, logger)

	res.Statistics = extract.BuildStatistics(res)
	res.Normalize()
	for entity, strategy := range res.Strategies {
		p.metrics.strategies.WithLabelValues(entity, string(strategy)).Inc()
	}

	if err != nil {
		outcome = OutcomeCancelled
		return res, err
	}
	if res.Empty() {
		outcome = OutcomeEmpty
	}
	return res, nil
}

// runTasks runs the entity extractors with at most p.workers at a time.
// A panicking extractor leaves its field empty and does not affect the
// others.
func (p *Pipeline) runTasks(ctx context.Context, doc *extract.Document, res *extract.ExtractionResult, logger *slog.Logger) error {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(p.workers)

	for _, task := range p.tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			strategy := runTask(ctx, task, doc, res, logger)
			mu.Lock()
			res.Strategies[task.Name] = strategy
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func runTask(ctx context.Context, task extract.Task, doc *extract.Document, res *extract.ExtractionResult, logger *slog.Logger) (strategy extract.Strategy) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extractor panicked", "entity", task.Name, "panic", r)
			strategy = extract.StrategyNone
		}
	}()
	return task.Run(ctx, doc, res)
}

// RunReader stages r into a temporary file and runs the pipeline on it.
// The staged copy is removed on every path.
func (p *Pipeline) RunReader(ctx context.Context, r io.Reader) (*extract.ExtractionResult, error) {
	dir, err := os.MkdirTemp(p.tempDir, "pvp-upload-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer ocr.RemoveAllWithRetry(dir, p.logger)

	path := filepath.Join(dir, "document.pdf")
	if err := stage(path, r, p.maxFileSize); err != nil {
		return nil, err
	}
	return p.Run(ctx, path)
}

func stage(path string, r io.Reader, maxSize int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}
	if maxSize > 0 {
		// one byte over the limit is enough for the validator to reject it
		r = io.LimitReader(r, maxSize+1)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	return nil
}

// Message is the user-facing summary of a result.
func Message(res *extract.ExtractionResult) string {
	if res == nil || res.Degenerate || res.Empty() {
		return noDataMessage
	}
	return fmt.Sprintf(
		"Extracted %s product data from %d pages: %d equipment, %d materials, %d stages, %d batch rows, %d hold-time points, %d QC results.",
		res.ProductType, res.PageCount,
		len(res.Equipment), len(res.Materials), len(res.Stages), len(res.BatchDetails),
		len(res.HoldTimeStudy.BeforeFiltration)+len(res.HoldTimeStudy.AfterFiltration),
		len(res.BioburdenBET)+len(res.QCFinalProduct)+len(res.WaterQuality),
	)
}
