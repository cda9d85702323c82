// Package clean normalizes strings pulled out of PDF text and table cells.
package clean

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLen bounds most extracted fields.
const DefaultMaxLen = 190

// Clean applies NFKC normalization, turns every kind of whitespace into a
// single blank, drops non-printable runes, trims, and truncates to maxLen
// runes. Clean(Clean(s, n), n) == Clean(s, n) for every s. A maxLen <= 0
// disables truncation.
func Clean(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	// Dropping a rune can bring a base letter next to a combining mark that
	// NFKC then composes, so fold until the string stops changing.
	out := fold(s)
	for i := 0; i < maxFoldPasses; i++ {
		next := fold(out)
		if next == out {
			break
		}
		out = next
	}

	if maxLen > 0 {
		out = truncateRunes(out, maxLen)
	}
	return strings.TrimRightFunc(out, unicode.IsSpace)
}

const maxFoldPasses = 4

// fold runs one NFKC pass and collapses whitespace and non-printable runes.
func fold(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case !unicode.IsPrint(r):
			// dropped
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanDefault is Clean with DefaultMaxLen.
func CleanDefault(s string) string {
	return Clean(s, DefaultMaxLen)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

var headingPrefixes = []string{
	"cover page", "table of contents", "protocol approval", "objective",
	"scope", "validation approach", "reason for validation", "revalidation",
	"index", "page", "product standard", "stability protocol", "contents",
	"cover", "acknowledgement", "references", "appendix",
	"format no", "process validation protocol", "effective date",
	"protocol no", "no change is permitted", "rev no", "s.no", "s. no", "sr. no", "sr no",
}

var sectionNumber = regexp.MustCompile(`^[0-9.\-]{1,4}$`)

// IsHeading reports whether s looks like document boilerplate (cover pages,
// running headers, serial-number labels, bare section numbers) rather than
// a data value.
func IsHeading(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	low := strings.ToLower(s)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	return sectionNumber.MatchString(low)
}

var nonHeaderChars = regexp.MustCompile(`[^a-z0-9 ]`)

// NormalizeHeader lower-cases a column header and strips everything except
// ASCII letters, digits and blanks.
func NormalizeHeader(h string) string {
	return strings.TrimSpace(nonHeaderChars.ReplaceAllString(strings.ToLower(h), ""))
}

var onlySymbols = regexp.MustCompile(`^[\W\d_]+$`)

// IsNoise reports whether s carries no letters at all: punctuation, digits,
// or blank.
func IsNoise(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || onlySymbols.MatchString(s)
}

var (
	pageMarker    = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+`)
	slashPage     = regexp.MustCompile(`\n\s*\d+\s*/\s*\d+\s*\n`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	trailingBlank = regexp.MustCompile(`[ \t]+\n`)
)

// PreprocessText prepares a whole-document text stream for the extractors:
// unified line endings, no "Page N of M" markers, no control characters
// other than newline and tab, at most one blank line in a row.
func PreprocessText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = pageMarker.ReplaceAllString(text, "")
	text = slashPage.ReplaceAllString(text, "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, text)
	text = trailingBlank.ReplaceAllString(text, "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
