package extract

import (
	"context"
	"regexp"
	"unicode/utf8"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

const (
	stageContextBefore = 200
	stageContextAfter  = 400
	longFieldLen       = 400
)

var stageHeaderKeywords = []string{"stage", "step", "process", "operation"}

// processHeadings are the manufacturing steps looked for in running text,
// in the order they are reported.
var processHeadings = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Dispensing", regexp.MustCompile(`(?i)dispensing`)},
	{"Filtration", regexp.MustCompile(`(?i)filtration`)},
	{"Filling", regexp.MustCompile(`(?i)filling`)},
	{"Lyophilization", regexp.MustCompile(`(?i)lyophilization`)},
	{"Visual Inspection", regexp.MustCompile(`(?i)visual inspection`)},
	{"Sealing/Capping", regexp.MustCompile(`(?i)seal|cap|capping`)},
	{"Packaging", regexp.MustCompile(`(?i)packaging`)},
}

// ExtractStages lists manufacturing stages from stage tables, or from known
// process headings in the text. Stages are numbered 1..n in order.
func ExtractStages(ctx context.Context, doc *Document) ([]Stage, Strategy) {
	stages, strategy := tableThenRegex(ctx, doc, stagesFromTables, stagesFromText)
	for i := range stages {
		stages[i].Number = i + 1
	}
	return stages, strategy
}

func stagesFromTables(doc *Document) []Stage {
	var out []Stage
	for _, t := range doc.tablesWhere(func(t table) bool { return t.has(stageHeaderKeywords...) }) {
		for _, row := range t.rows {
			name, ok := acceptPrimary(cell(row, 0), 3)
			if !ok {
				continue
			}
			out = append(out, Stage{
				Name:               name,
				EquipmentUsed:      clean.CleanDefault(cell(row, 1)),
				Parameters:         clean.Clean(cell(row, 2), longFieldLen),
				AcceptanceCriteria: clean.Clean(cell(row, 3), longFieldLen),
			})
		}
	}
	return out
}

func stagesFromText(doc *Document) []Stage {
	var out []Stage
	for _, h := range processHeadings {
		loc := h.re.FindStringIndex(doc.Text)
		if loc == nil {
			continue
		}
		out = append(out, Stage{
			Name:       h.name,
			Parameters: clean.Clean(window(doc.Text, loc[0], stageContextBefore, stageContextAfter), longFieldLen),
		})
	}
	return out
}

// window returns text[at-before : at+after], clamped to the text and to
// rune boundaries.
func window(text string, at, before, after int) string {
	start := max(0, at-before)
	for start < at && !utf8.RuneStart(text[start]) {
		start++
	}
	end := min(len(text), at+after)
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
