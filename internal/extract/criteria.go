package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

var criteriaPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"pH", regexp.MustCompile(`(?i)(?:pH|PH).*?(\d\.\d+\s*(?:to|-)\s*\d\.\d+)`)},
	{"Assay", regexp.MustCompile(`(?i)Assay.*?(\d{2,3}\.?\d?\s*%?\s*(?:to|-)\s*\d{2,3}\.?\d?\s*%?)`)},
	{"Temperature", regexp.MustCompile(`(?i)Temperature.*?(\d+\s*°C?\s*(?:to|±|-)\s*\d+\s*°C?)`)},
	{"Extractable Volume", regexp.MustCompile(`(?i)(?:Volume|Extractable Volume).*?(NLT\s+\d+\.?\d?\s*ml)`)},
}

// ExtractTestCriteria lists acceptance criteria from specification tables,
// or the first pH, assay, temperature and extractable-volume limits found
// in the text.
func ExtractTestCriteria(ctx context.Context, doc *Document) ([]TestCriterion, Strategy) {
	return tableThenRegex(ctx, doc, criteriaFromTables, criteriaFromText)
}

func criteriaFromTables(doc *Document) []TestCriterion {
	ids := newSlugger()
	var out []TestCriterion
	match := func(t table) bool {
		return t.has("test", "parameter", "specification", "acceptance", "limit")
	}
	for _, t := range doc.tablesWhere(match) {
		for _, row := range t.rows {
			name, ok := acceptPrimary(cell(row, 0), 2)
			if !ok {
				continue
			}
			out = append(out, TestCriterion{
				TestID:             ids.next(name),
				TestName:           name,
				AcceptanceCriteria: clean.Clean(cell(row, 1), longFieldLen),
			})
		}
	}
	return out
}

func criteriaFromText(doc *Document) []TestCriterion {
	ids := newSlugger()
	var out []TestCriterion
	for _, p := range criteriaPatterns {
		m := p.re.FindStringSubmatch(doc.Text)
		if m == nil {
			continue
		}
		out = append(out, TestCriterion{
			TestID:             ids.next(p.name),
			TestName:           p.name,
			AcceptanceCriteria: clean.Clean(m[1], longFieldLen),
		})
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a test name into a snake_case identifier.
func Slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return "test"
	}
	return s
}

// slugger hands out unique slugs, suffixing repeats with _2, _3, ...
type slugger map[string]bool

func newSlugger() slugger {
	return slugger{}
}

func (s slugger) next(name string) string {
	base := Slug(name)
	id := base
	for n := 2; s[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	s[id] = true
	return id
}
