package extract

import (
	"github.com/a3tai/mcp-pvp-extractor/internal/stats"
)

// Statistic keys for the hold-time columns.
const (
	HoldTimePHKey    = "hold_time_ph"
	HoldTimeAssayKey = "hold_time_assay"
)

// BuildStatistics groups the numeric results of QC, water quality and
// bioburden tests by test slug, plus the hold-time pH and assay columns,
// and summarizes each group that has at least one number.
func BuildStatistics(r *ExtractionResult) map[string]stats.Stats {
	groups := map[string][]string{}
	add := func(key, value string) {
		groups[key] = append(groups[key], value)
	}

	for _, list := range [][]TestResult{r.QCFinalProduct, r.WaterQuality, r.BioburdenBET} {
		for _, t := range list {
			add(Slug(t.TestName), t.Result)
		}
	}
	for _, phase := range [][]HoldTimeEntry{r.HoldTimeStudy.BeforeFiltration, r.HoldTimeStudy.AfterFiltration} {
		for _, e := range phase {
			add(HoldTimePHKey, e.PH)
			add(HoldTimeAssayKey, e.Assay)
		}
	}

	out := make(map[string]stats.Stats, len(groups))
	for key, values := range groups {
		if s, ok := stats.Compute(values); ok {
			out[key] = s
		}
	}
	return out
}
