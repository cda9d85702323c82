// Package tables detects tables on PDF pages. Ruled (lattice) detection
// runs first; whitespace-aligned (stream) detection is the fallback.
package tables

import (
	"context"
	"log/slog"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/cascade"
)

// Grid is a table as rows of cell strings.
type Grid [][]string

// Valid reports whether the grid has at least one row and one non-blank cell.
func (g Grid) Valid() bool {
	for _, row := range g {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return true
			}
		}
	}
	return false
}

// Header returns the first row, or nil for an empty grid.
func (g Grid) Header() []string {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// Strategy names a detection method.
type Strategy string

const (
	Lattice Strategy = "lattice"
	Stream  Strategy = "stream"
	None    Strategy = "none"
)

// Detector finds tables in a document with one strategy.
type Detector interface {
	Detect(ctx context.Context, path string, strategy Strategy) ([]Grid, error)
}

// Extractor runs lattice detection and falls back to stream detection when
// lattice yields no valid grid.
type Extractor struct {
	detector Detector
	logger   *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default.
func NewExtractor(detector Detector, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{detector: detector, logger: logger}
}

// Extract returns the valid grids of the first strategy that found any,
// and which strategy that was. Detector errors and panics count as zero
// tables.
func (e *Extractor) Extract(ctx context.Context, path string) ([]Grid, Strategy) {
	attempt := func(s Strategy) cascade.Attempt[[]Grid] {
		return cascade.Attempt[[]Grid]{
			Name: string(s),
			Run: func(ctx context.Context) ([]Grid, error) {
				grids, err := e.detector.Detect(ctx, path, s)
				if err != nil {
					return nil, err
				}
				return filterValid(grids), nil
			},
		}
	}

	res := cascade.First(ctx, cascade.NonEmpty[Grid], attempt(Lattice), attempt(Stream))
	for _, err := range res.Errors {
		e.logger.Warn("table detection failed", "path", path, "error", err)
	}
	if !res.Accepted() {
		return []Grid{}, None
	}
	e.logger.Debug("tables detected", "path", path, "strategy", res.Strategy, "count", len(res.Value))
	return res.Value, Strategy(res.Strategy)
}

func filterValid(grids []Grid) []Grid {
	out := make([]Grid, 0, len(grids))
	for _, g := range grids {
		if g.Valid() {
			out = append(out, g)
		}
	}
	return out
}
