package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

var (
	betToken = regexp.MustCompile(`(?i)\bbet\b`)
	tocToken = regexp.MustCompile(`(?i)\btoc\b`)

	bioburdenSection = regexp.MustCompile(`(?i)bioburden|bacterial endotoxin`)
	bioburdenEnd     = regexp.MustCompile(`(?i)finished product|water quality|hold\s*time|conclusion`)
	qcSection        = regexp.MustCompile(`(?i)finished product\s+(?:analysis|testing|test results|results|specification)|quality control results`)
	qcEnd            = regexp.MustCompile(`(?i)water quality|bioburden|hold\s*time|conclusion`)
	waterSection     = regexp.MustCompile(`(?i)water quality|purified water|water for injection analysis`)
	waterEnd         = regexp.MustCompile(`(?i)finished product|bioburden|hold\s*time|conclusion`)

	limitPhrase = regexp.MustCompile(`(?i)\b(?:nmt|nlt|not more than|not less than|between|within|complies|max|min)\b|[<>≤≥±]|\d\s*(?:to|-)\s*\d`)
)

// ExtractBioburden reads bioburden and bacterial endotoxin (BET) results.
func ExtractBioburden(ctx context.Context, doc *Document) ([]TestResult, Strategy) {
	return tableThenRegex(ctx, doc,
		func(d *Document) []TestResult { return testResultsFromTables(d, isBioburdenTable) },
		func(d *Document) []TestResult { return testResultsFromText(d, bioburdenSection, bioburdenEnd) },
	)
}

// ExtractQCFinalProduct reads finished-product quality control results.
func ExtractQCFinalProduct(ctx context.Context, doc *Document) ([]TestResult, Strategy) {
	return tableThenRegex(ctx, doc,
		func(d *Document) []TestResult { return testResultsFromTables(d, isQCTable) },
		func(d *Document) []TestResult { return testResultsFromText(d, qcSection, qcEnd) },
	)
}

// ExtractWaterQuality reads purified water and WFI analysis results.
func ExtractWaterQuality(ctx context.Context, doc *Document) ([]TestResult, Strategy) {
	return tableThenRegex(ctx, doc,
		func(d *Document) []TestResult { return testResultsFromTables(d, isWaterTable) },
		func(d *Document) []TestResult { return testResultsFromText(d, waterSection, waterEnd) },
	)
}

func isBioburdenTable(t table) bool {
	return t.has("bioburden", "endotoxin") || t.matches(betToken)
}

func isWaterTable(t table) bool {
	return t.has("water", "conductivity") || t.matches(tocToken)
}

// isQCTable accepts finished-product tables, and generic test/result tables
// that are not bioburden or water tables.
func isQCTable(t table) bool {
	if strings.Contains(t.headerText, "finished product") {
		return true
	}
	return t.has("test", "parameter") && t.has("result") && !isBioburdenTable(t) && !isWaterTable(t)
}

func testResultsFromTables(doc *Document, match func(table) bool) []TestResult {
	var out []TestResult
	for _, t := range doc.tablesWhere(match) {
		for _, row := range t.rows {
			name, ok := acceptPrimary(cell(row, 0), 2)
			if !ok {
				continue
			}
			out = append(out, TestResult{
				TestName:      name,
				Specification: clean.CleanDefault(cell(row, 1)),
				Result:        clean.CleanDefault(cell(row, 2)),
				Remarks:       clean.CleanDefault(cell(row, 3)),
			})
		}
	}
	return out
}

func testResultsFromText(doc *Document, start, end *regexp.Regexp) []TestResult {
	body, ok := section(doc.Text, start, end)
	if !ok {
		return nil
	}
	var out []TestResult
	for _, line := range nonEmptyLines(body) {
		if r, ok := parseLabeledLine(line); ok {
			out = append(out, r)
		}
	}
	return out
}

// parseLabeledLine reads "name: value" or column-aligned lines. With three
// or more columns they are name, specification, result and remarks; a
// single value is a specification when it reads like a limit and a result
// otherwise.
func parseLabeledLine(line string) (TestResult, bool) {
	fields := splitFields(line)
	if len(fields) < 2 {
		return TestResult{}, false
	}
	name, ok := acceptPrimary(fields[0], 2)
	if !ok {
		return TestResult{}, false
	}

	r := TestResult{TestName: name}
	if len(fields) == 2 {
		v := clean.CleanDefault(fields[1])
		if limitPhrase.MatchString(v) {
			r.Specification = v
		} else {
			r.Result = v
		}
		return r, v != ""
	}
	r.Specification = clean.CleanDefault(fields[1])
	r.Result = clean.CleanDefault(fields[2])
	r.Remarks = clean.CleanDefault(strings.Join(fields[3:], " "))
	return r, true
}
