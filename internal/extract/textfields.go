package extract

import (
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

const observationsLen = 800

var (
	observationsRe = regexp.MustCompile(`(?i)(?:observations|remarks|deviations)[:\s]*\n?(.{0,800})`)
	firstDate      = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	summaryStart   = regexp.MustCompile(`(?i)(?:methodology|protocol|procedure)[:\s]*\n`)
	summaryEnd     = regexp.MustCompile(`(?i)(?:calculations|results|observations|conclusion|references)[:\s]*\n`)

	signatureRoles = []struct {
		key string
		re  *regexp.Regexp
	}{
		{"performed_by", regexp.MustCompile(`(?i)performed by[:\s]*([A-Za-z ,.\-]+)`)},
		{"checked_by", regexp.MustCompile(`(?i)checked by[:\s]*([A-Za-z ,.\-]+)`)},
		{"approved_by", regexp.MustCompile(`(?i)approved by[:\s]*([A-Za-z ,.\-]+)`)},
	}
)

// Observations returns the text following the first observations, remarks
// or deviations label.
func Observations(text string) string {
	m := observationsRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return clean.Clean(m[1], observationsLen)
}

// Signatures returns the performed/checked/approved-by names and the first
// dd/mm/yyyy date in the text.
func Signatures(text string) map[string]string {
	out := map[string]string{}
	for _, role := range signatureRoles {
		if m := role.re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				out[role.key] = clean.CleanDefault(v)
			}
		}
	}
	if d := firstDate.FindString(text); d != "" {
		out["date"] = d
	}
	return out
}

// ProtocolSummary returns the methodology/protocol/procedure block up to the
// next calculations, results, observations, conclusion or references heading.
func ProtocolSummary(text string) string {
	loc := summaryStart.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[0]:]
	if end := summaryEnd.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return strings.TrimSpace(rest)
}
