package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-pvp-extractor/internal/cascade"
	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/tables"
)

// Document is the input shared by all extractors: preprocessed text and the
// grids of the table layer.
type Document struct {
	Text   string
	Tables []tables.Grid
}

// NewDocument builds a document. Text is expected to be preprocessed.
func NewDocument(text string, grids []tables.Grid) *Document {
	return &Document{Text: text, Tables: grids}
}

// table is a grid with its serial-number column removed and its header
// normalized.
type table struct {
	header []string
	rows   [][]string
	// headerText is the lower-cased raw header row joined by blanks.
	headerText string
}

func (t table) has(keywords ...string) bool {
	for _, h := range t.header {
		for _, k := range keywords {
			if strings.Contains(h, k) {
				return true
			}
		}
	}
	return false
}

func (t table) matches(re *regexp.Regexp) bool {
	return re.MatchString(t.headerText)
}

// tablesWhere returns the document tables whose header satisfies match.
func (d *Document) tablesWhere(match func(table) bool) []table {
	var out []table
	for _, g := range d.Tables {
		if len(g) == 0 {
			continue
		}
		t := newTable(g)
		if match(t) {
			out = append(out, t)
		}
	}
	return out
}

var (
	serialHeader = regexp.MustCompile(`^(s|sr|sl|serial)?\s*(no|number)$`)
	serialValue  = regexp.MustCompile(`^\d{1,3}[.)]?$`)
)

func newTable(g tables.Grid) table {
	raw := g[0]
	offset := 0
	if len(raw) > 1 && isSerialColumn(g) {
		offset = 1
	}

	t := table{headerText: strings.ToLower(strings.Join(raw, " "))}
	for _, h := range raw[min(offset, len(raw)):] {
		t.header = append(t.header, clean.NormalizeHeader(h))
	}
	for _, row := range g[1:] {
		if offset < len(row) {
			t.rows = append(t.rows, row[offset:])
		} else {
			t.rows = append(t.rows, nil)
		}
	}
	return t
}

// isSerialColumn reports whether the first column is a running number.
func isSerialColumn(g tables.Grid) bool {
	if serialHeader.MatchString(clean.NormalizeHeader(g[0][0])) {
		return true
	}
	if clean.NormalizeHeader(g[0][0]) != "" || len(g) < 2 {
		return false
	}
	seen := false
	for _, row := range g[1:] {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(row[0])
		if v == "" {
			continue
		}
		if !serialValue.MatchString(v) {
			return false
		}
		seen = true
	}
	return seen
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// acceptPrimary cleans the identifying cell of a row and rejects blanks,
// short fragments, boilerplate and symbol-only values.
func acceptPrimary(s string, minRunes int) (string, bool) {
	v := clean.CleanDefault(s)
	if utf8.RuneCountInString(v) < minRunes || clean.IsHeading(v) || clean.IsNoise(v) {
		return "", false
	}
	return v, true
}

// section returns the text after the first match of start, up to the first
// match of end in the remainder. A nil end takes the rest of the text.
func section(text string, start, end *regexp.Regexp) (string, bool) {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]
	if end != nil {
		if e := end.FindStringIndex(body); e != nil {
			body = body[:e[0]]
		}
	}
	return body, true
}

// nonEmptyLines splits text into trimmed, non-blank lines.
func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var wideGap = regexp.MustCompile(`\t+|\s{2,}`)

// splitFields breaks a text line into columns: on tabs or runs of two or
// more blanks when present, otherwise on the first ':' or " - ".
func splitFields(line string) []string {
	var parts []string
	switch {
	case wideGap.MatchString(line):
		parts = wideGap.Split(line, -1)
	case strings.Contains(line, ":"):
		parts = strings.SplitN(line, ":", 2)
	case strings.Contains(line, " - "):
		parts = strings.SplitN(line, " - ", 2)
	default:
		parts = []string{line}
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tableThenRegex runs the table pass and falls back to the regex pass only
// when the table pass found nothing.
func tableThenRegex[T any](ctx context.Context, doc *Document, fromTables, fromText func(*Document) []T) ([]T, Strategy) {
	res := cascade.First(ctx, cascade.NonEmpty[T],
		cascade.Attempt[[]T]{Name: string(StrategyTable), Run: func(context.Context) ([]T, error) {
			return fromTables(doc), nil
		}},
		cascade.Attempt[[]T]{Name: string(StrategyRegex), Run: func(context.Context) ([]T, error) {
			return fromText(doc), nil
		}},
	)
	if !res.Accepted() {
		return []T{}, StrategyNone
	}
	return res.Value, Strategy(res.Strategy)
}
