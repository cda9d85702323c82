package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/a3tai/mcp-pvp-extractor/internal/ai"
	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/ocr"
)

// FromConfig builds a pipeline with the OCR engine and AI client selected
// by cfg. The returned close function releases the AI client and is never
// nil.
func FromConfig(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Pipeline, func() error, error) {
	opts := Options{
		MaxFileSize: cfg.MaxFileSize,
		Text: pdf.TextOptions{
			MinTextLength: cfg.OCR.MinTextLength,
			PageTimeout:   cfg.OCR.PageTimeout,
		},
		AIExcerpt: cfg.AI.ExcerptLimit,
		AITimeout: cfg.AI.Timeout,
		Workers:   cfg.Workers,
		Metrics:   NewMetrics(reg),
		Logger:    logger,
	}

	if cfg.OCR.Enabled {
		opts.OCR = ocr.NewTesseract(ocr.Options{
			DPI:       cfg.OCR.DPI,
			Language:  cfg.OCR.Language,
			Tesseract: cfg.OCR.Tesseract,
			Pdftoppm:  cfg.OCR.Pdftoppm,
		}, nil, logger)
	}

	closeFn := func() error { return nil }
	if cfg.AI.Enabled() {
		gemini, err := ai.NewGemini(ctx, cfg.AI.Project, cfg.AI.Region, cfg.AI.Model)
		if err != nil {
			return nil, closeFn, fmt.Errorf("create AI client: %w", err)
		}
		opts.AI = gemini
		closeFn = gemini.Close
	}

	return New(opts), closeFn, nil
}
