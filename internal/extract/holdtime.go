package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/cascade"
	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

var (
	hourToken       = regexp.MustCompile(`(?i)\d+\s*(?:hour|hr)`)
	holdTimeSection = regexp.MustCompile(`(?i)hold\s*time`)
	holdTimeEnd     = regexp.MustCompile(`(?i)bioburden|bacterial endotoxin|finished product|water quality|conclusion`)
	hourValue       = regexp.MustCompile(`(?i)\d+\s*hours?`)
)

// ExtractHoldTime reads hold-time sampling points. A table whose header
// mentions "before" or "manufacturing tank" feeds BeforeFiltration, any
// other hold-time table feeds AfterFiltration. Only entries whose time
// mentions hours are kept.
func ExtractHoldTime(ctx context.Context, doc *Document) (HoldTimeStudy, Strategy) {
	res := cascade.First(ctx, func(h HoldTimeStudy) bool { return !h.Empty() },
		cascade.Attempt[HoldTimeStudy]{Name: string(StrategyTable), Run: func(context.Context) (HoldTimeStudy, error) {
			return holdTimeFromTables(doc), nil
		}},
		cascade.Attempt[HoldTimeStudy]{Name: string(StrategyRegex), Run: func(context.Context) (HoldTimeStudy, error) {
			return holdTimeFromText(doc), nil
		}},
	)
	if !res.Accepted() {
		return HoldTimeStudy{BeforeFiltration: []HoldTimeEntry{}, AfterFiltration: []HoldTimeEntry{}}, StrategyNone
	}
	return res.Value, Strategy(res.Strategy)
}

func isHoldTimeTable(t table) bool {
	return t.has("hold") || t.matches(hourToken)
}

func holdTimeFromTables(doc *Document) HoldTimeStudy {
	var study HoldTimeStudy
	for _, t := range doc.tablesWhere(isHoldTimeTable) {
		before := strings.Contains(t.headerText, "before") || strings.Contains(t.headerText, "manufacturing tank")
		for _, row := range t.rows {
			e, ok := holdTimeEntry(row)
			if !ok {
				continue
			}
			if before {
				study.BeforeFiltration = append(study.BeforeFiltration, e)
			} else {
				study.AfterFiltration = append(study.AfterFiltration, e)
			}
		}
	}
	return study
}

func holdTimeFromText(doc *Document) HoldTimeStudy {
	var study HoldTimeStudy
	body, ok := section(doc.Text, holdTimeSection, holdTimeEnd)
	if !ok {
		return study
	}

	before := false
	for _, line := range nonEmptyLines(body) {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "before") || strings.Contains(lower, "manufacturing tank"):
			before = true
		case strings.Contains(lower, "after"):
			before = false
		}
		if !strings.Contains(lower, "hour") {
			continue
		}

		e, ok := holdTimeEntry(timeFirst(line))
		if !ok {
			continue
		}
		if before {
			study.BeforeFiltration = append(study.BeforeFiltration, e)
		} else {
			study.AfterFiltration = append(study.AfterFiltration, e)
		}
	}
	return study
}

// timeFirst splits a hold-time line into columns with the time first and
// any text before it as the description.
func timeFirst(line string) []string {
	fields := splitFields(line)
	if len(fields) < 2 {
		loc := hourValue.FindStringIndex(line)
		if loc == nil {
			return fields
		}
		return []string{line[loc[0]:loc[1]], strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])}
	}
	for i, f := range fields {
		if !strings.Contains(strings.ToLower(f), "hour") {
			continue
		}
		if i == 0 {
			return fields
		}
		out := []string{f, strings.Join(fields[:i], " ")}
		return append(out, fields[i+1:]...)
	}
	return fields
}

func holdTimeEntry(row []string) (HoldTimeEntry, bool) {
	e := HoldTimeEntry{
		Time:        clean.Clean(cell(row, 0), 100),
		Description: clean.CleanDefault(cell(row, 1)),
		PH:          clean.Clean(cell(row, 2), 100),
		Assay:       clean.Clean(cell(row, 3), 100),
		Bioburden:   clean.Clean(cell(row, 4), 100),
		Sterility:   clean.Clean(cell(row, 5), 100),
	}
	if !strings.Contains(strings.ToLower(e.Time), "hour") {
		return HoldTimeEntry{}, false
	}
	return e, true
}
