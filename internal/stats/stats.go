// Package stats computes the summary statistics reported for numeric test
// results: mean, population standard deviation and %RSD.
package stats

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Stats is derived data and is never persisted on its own.
// RSD is nil when the mean is zero.
type Stats struct {
	Mean  float64  `json:"mean"`
	Std   float64  `json:"std"`
	RSD   *float64 `json:"rsd"`
	Count int      `json:"count"`
}

var numberToken = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseNumber extracts the first signed decimal token from v. Strings like
// "9.024 pH", "RSD: 1.8%" or "1,250 vials" yield a value; anything without
// a numeric token reports false.
func ParseNumber(v any) (float64, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return ParseNumber(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s = x
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}

	m := numberToken.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Compute summarizes the values that parse as numbers. Values without a
// numeric token are skipped. It reports false when nothing parsed.
func Compute[T any](values []T) (Stats, bool) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := ParseNumber(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return Stats{}, false
	}

	var sum float64
	for _, n := range nums {
		sum += n
	}
	mean := sum / float64(len(nums))

	var sq float64
	for _, n := range nums {
		d := n - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(nums)))

	out := Stats{
		Mean:  round(mean, 6),
		Std:   round(std, 6),
		Count: len(nums),
	}
	if mean != 0 {
		rsd := round(std/mean*100, 4)
		out.RSD = &rsd
	}
	return out, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
