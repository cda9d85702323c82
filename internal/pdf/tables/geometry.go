package tables

import (
	"math"
	"sort"
	"strings"
)

// Geometry tolerances in points.
const (
	ruleTolerance = 2.0
	thinRule      = 2.0
	lineTolerance = 3.0
	wordGapRatio  = 0.3
	cellGapRatio  = 1.5
)

// Glyph is a positioned piece of text. Y grows upwards, as in PDF space.
type Glyph struct {
	X, Y float64
	W    float64
	Size float64
	S    string
}

func (g Glyph) center() (float64, float64) {
	return g.X + g.W/2, g.Y + g.Size/3
}

// Box is an axis-aligned rectangle drawn on the page.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Segment is a horizontal or vertical ruling line.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

func (s Segment) horizontal() bool {
	return math.Abs(s.Y2-s.Y1) <= math.Abs(s.X2-s.X1)
}

// SegmentsFromBoxes turns drawn rectangles into ruling segments. A thin
// rectangle is one rule along its long axis; any other rectangle
// contributes its four edges.
func SegmentsFromBoxes(boxes []Box) []Segment {
	var segs []Segment
	for _, b := range boxes {
		minX, maxX := math.Min(b.MinX, b.MaxX), math.Max(b.MinX, b.MaxX)
		minY, maxY := math.Min(b.MinY, b.MaxY), math.Max(b.MinY, b.MaxY)
		w, h := maxX-minX, maxY-minY

		switch {
		case w <= thinRule && h <= thinRule:
			continue
		case h <= thinRule:
			y := (minY + maxY) / 2
			segs = append(segs, Segment{minX, y, maxX, y})
		case w <= thinRule:
			x := (minX + maxX) / 2
			segs = append(segs, Segment{x, minY, x, maxY})
		default:
			segs = append(segs,
				Segment{minX, minY, maxX, minY},
				Segment{minX, maxY, maxX, maxY},
				Segment{minX, minY, minX, maxY},
				Segment{maxX, minY, maxX, maxY},
			)
		}
	}
	return segs
}

// LatticeGrids builds one grid per connected group of ruling lines. Cells
// lie between consecutive rules; glyphs land in the cell holding their
// center. Grids come back top to bottom, then left to right.
func LatticeGrids(glyphs []Glyph, segs []Segment) []Grid {
	type frame struct {
		top, left float64
		grid      Grid
	}
	var frames []frame

	for _, group := range connectedGroups(segs) {
		var ys, xs []float64
		for _, s := range group {
			if s.horizontal() {
				ys = append(ys, (s.Y1+s.Y2)/2)
			} else {
				xs = append(xs, (s.X1+s.X2)/2)
			}
		}
		ys = clusterCoords(ys)
		xs = clusterCoords(xs)
		if len(ys) < 2 || len(xs) < 2 {
			continue
		}
		// rows run top to bottom
		sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

		cells := make([][][]Glyph, len(ys)-1)
		for r := range cells {
			cells[r] = make([][]Glyph, len(xs)-1)
		}
		for _, g := range glyphs {
			cx, cy := g.center()
			r := bandIndex(ys, cy, true)
			c := bandIndex(xs, cx, false)
			if r < 0 || c < 0 {
				continue
			}
			cells[r][c] = append(cells[r][c], g)
		}

		var grid Grid
		for _, row := range cells {
			out := make([]string, len(row))
			blank := true
			for c, gs := range row {
				out[c] = joinGlyphs(gs)
				if out[c] != "" {
					blank = false
				}
			}
			if !blank {
				grid = append(grid, out)
			}
		}
		if len(grid) > 0 {
			frames = append(frames, frame{top: ys[0], left: xs[0], grid: grid})
		}
	}

	sort.SliceStable(frames, func(i, j int) bool {
		if math.Abs(frames[i].top-frames[j].top) > ruleTolerance {
			return frames[i].top > frames[j].top
		}
		return frames[i].left < frames[j].left
	})
	grids := make([]Grid, len(frames))
	for i, f := range frames {
		grids[i] = f.grid
	}
	return grids
}

// StreamGrids groups glyphs into lines and lines into cells split at wide
// horizontal gaps. Runs of two or more consecutive multi-cell lines form a
// table, padded to its widest row.
func StreamGrids(glyphs []Glyph) []Grid {
	var grids []Grid
	var run Grid

	flush := func() {
		if len(run) >= 2 {
			grids = append(grids, pad(run))
		}
		run = nil
	}

	for _, line := range groupLines(glyphs, lineTolerance) {
		cells := splitCells(line)
		if len(cells) >= 2 {
			run = append(run, cells)
			continue
		}
		flush()
	}
	flush()
	return grids
}

// connectedGroups partitions segments into groups of touching rules.
func connectedGroups(segs []Segment) [][]Segment {
	parent := make([]int, len(segs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if touches(segs[i], segs[j]) {
				parent[find(i)] = find(j)
			}
		}
	}

	index := map[int]int{}
	var groups [][]Segment
	for i, s := range segs {
		root := find(i)
		gi, ok := index[root]
		if !ok {
			gi = len(groups)
			index[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], s)
	}
	return groups
}

func touches(a, b Segment) bool {
	ah, bh := a.horizontal(), b.horizontal()
	switch {
	case ah && bh:
		return math.Abs(a.Y1-b.Y1) <= ruleTolerance && overlaps(a.X1, a.X2, b.X1, b.X2)
	case !ah && !bh:
		return math.Abs(a.X1-b.X1) <= ruleTolerance && overlaps(a.Y1, a.Y2, b.Y1, b.Y2)
	case ah:
		return crosses(a, b)
	default:
		return crosses(b, a)
	}
}

func crosses(h, v Segment) bool {
	minX, maxX := math.Min(h.X1, h.X2), math.Max(h.X1, h.X2)
	minY, maxY := math.Min(v.Y1, v.Y2), math.Max(v.Y1, v.Y2)
	return v.X1 >= minX-ruleTolerance && v.X1 <= maxX+ruleTolerance &&
		h.Y1 >= minY-ruleTolerance && h.Y1 <= maxY+ruleTolerance
}

func overlaps(a1, a2, b1, b2 float64) bool {
	return math.Min(a1, a2) <= math.Max(b1, b2)+ruleTolerance &&
		math.Min(b1, b2) <= math.Max(a1, a2)+ruleTolerance
}

// clusterCoords sorts values ascending and merges those within ruleTolerance.
func clusterCoords(vals []float64) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	out := []float64{sorted[0]}
	count := 1.0
	for _, v := range sorted[1:] {
		last := out[len(out)-1]
		if v-last <= ruleTolerance {
			out[len(out)-1] = last + (v-last)/(count+1)
			count++
			continue
		}
		out = append(out, v)
		count = 1
	}
	return out
}

// bandIndex finds the band between consecutive edges that contains v.
// Edges are descending when desc is set, ascending otherwise.
func bandIndex(edges []float64, v float64, desc bool) int {
	for i := 0; i+1 < len(edges); i++ {
		hi, lo := edges[i], edges[i+1]
		if !desc {
			hi, lo = edges[i+1], edges[i]
		}
		if v > lo && v <= hi {
			return i
		}
	}
	return -1
}

// groupLines groups glyphs whose baselines are within tolerance, top line first.
func groupLines(glyphs []Glyph, tolerance float64) [][]Glyph {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]Glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var lines [][]Glyph
	current := []Glyph{sorted[0]}
	currentY := sorted[0].Y
	for _, g := range sorted[1:] {
		if math.Abs(g.Y-currentY) <= tolerance {
			current = append(current, g)
			continue
		}
		lines = append(lines, current)
		current = []Glyph{g}
		currentY = g.Y
	}
	lines = append(lines, current)

	for _, l := range lines {
		sort.SliceStable(l, func(i, j int) bool { return l[i].X < l[j].X })
	}
	return lines
}

// splitCells cuts an X-sorted line where the gap exceeds cellGapRatio font sizes.
func splitCells(line []Glyph) []string {
	var cells []string
	start := 0
	for i := 1; i < len(line); i++ {
		prev := line[i-1]
		if line[i].X-(prev.X+prev.W) > cellGapRatio*fontSize(prev) {
			if s := joinGlyphs(line[start:i]); s != "" {
				cells = append(cells, s)
			}
			start = i
		}
	}
	if s := joinGlyphs(line[start:]); s != "" {
		cells = append(cells, s)
	}
	return cells
}

// joinGlyphs renders glyphs in reading order, inserting a blank at word
// gaps and between lines.
func joinGlyphs(glyphs []Glyph) string {
	var lines []string
	for _, line := range groupLines(glyphs, lineTolerance) {
		var b strings.Builder
		for i, g := range line {
			if i > 0 {
				prev := line[i-1]
				if g.X-(prev.X+prev.W) > wordGapRatio*fontSize(prev) {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}

func fontSize(g Glyph) float64 {
	if g.Size > 0 {
		return g.Size
	}
	return 10
}

func pad(rows Grid) Grid {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	out := make(Grid, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}
