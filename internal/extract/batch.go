package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

var (
	batchHeaderKeywords = []string{"batch no", "batch number", "batch", "lot", "mfg date", "manufacture", "expiry", "exp date"}

	batchNumber = regexp.MustCompile(`(?i)batch\s*(?:no|number)\.?\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	hasDigit    = regexp.MustCompile(`\d`)
)

const batchNumberKey = "batch no"

// ExtractBatchDetails returns one row per batch. Table rows keep every
// column under its normalized header; the text fallback yields rows with a
// single "batch no" column.
func ExtractBatchDetails(ctx context.Context, doc *Document) ([]*BatchDetailRow, Strategy) {
	return tableThenRegex(ctx, doc, batchFromTables, batchFromText)
}

func batchFromTables(doc *Document) []*BatchDetailRow {
	var out []*BatchDetailRow
	for _, t := range doc.tablesWhere(func(t table) bool { return t.has(batchHeaderKeywords...) }) {
		keys := uniqueKeys(t.header)
		for _, row := range t.rows {
			r := NewBatchDetailRow()
			blank := true
			for i, k := range keys {
				v := clean.CleanDefault(cell(row, i))
				if v != "" {
					blank = false
				}
				r.Set(k, v)
			}
			if !blank {
				out = append(out, r)
			}
		}
	}
	return out
}

func batchFromText(doc *Document) []*BatchDetailRow {
	var out []*BatchDetailRow
	seen := map[string]bool{}
	for _, m := range batchNumber.FindAllStringSubmatch(doc.Text, -1) {
		v := strings.TrimRight(m[1], "-/")
		if !hasDigit.MatchString(v) || seen[v] {
			continue
		}
		seen[v] = true
		r := NewBatchDetailRow()
		r.Set(batchNumberKey, v)
		out = append(out, r)
	}
	return out
}

// uniqueKeys names blank headers by position and suffixes repeats.
func uniqueKeys(header []string) []string {
	keys := make([]string, len(header))
	count := map[string]int{}
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		count[h]++
		if n := count[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		keys[i] = h
	}
	return keys
}
