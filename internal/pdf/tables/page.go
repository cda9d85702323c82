package tables

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// PageDetector finds tables from the glyphs and rectangles that
// ledongthuc/pdf reports for each page.
type PageDetector struct {
	logger *slog.Logger
}

// NewPageDetector creates a detector. A nil logger uses slog.Default.
func NewPageDetector(logger *slog.Logger) *PageDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageDetector{logger: logger}
}

// Detect returns grids in page order. A page whose content cannot be
// decoded is logged and skipped.
func (d *PageDetector) Detect(ctx context.Context, path string, strategy Strategy) ([]Grid, error) {
	f, r, err := openReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var grids []Grid
	for n := 1; n <= r.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return grids, err
		}

		glyphs, boxes, err := pageContent(r, n)
		if err != nil {
			d.logger.Warn("page content unreadable", "path", path, "page", n, "error", err)
			continue
		}

		switch strategy {
		case Lattice:
			grids = append(grids, LatticeGrids(glyphs, SegmentsFromBoxes(boxes))...)
		case Stream:
			grids = append(grids, StreamGrids(glyphs)...)
		default:
			return nil, fmt.Errorf("unknown strategy %q", strategy)
		}
	}
	return grids, nil
}

func openReader(path string) (f interface{ Close() error }, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			f, r, err = nil, nil, fmt.Errorf("parser panic: %v", rec)
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, reader, nil
}

func pageContent(r *pdf.Reader, n int) (glyphs []Glyph, boxes []Box, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			glyphs, boxes, err = nil, nil, fmt.Errorf("parser panic: %v", rec)
		}
	}()

	page := r.Page(n)
	if page.V.IsNull() {
		return nil, nil, nil
	}
	content := page.Content()

	glyphs = make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	boxes = make([]Box, 0, len(content.Rect))
	for _, rc := range content.Rect {
		boxes = append(boxes, Box{MinX: rc.Min.X, MinY: rc.Min.Y, MaxX: rc.Max.X, MaxY: rc.Max.Y})
	}
	return glyphs, boxes, nil
}
