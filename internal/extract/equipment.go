package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

const notAvailable = "N/A"

var (
	equipmentSection = regexp.MustCompile(`(?is)(?:equipment and machinery list|production equipment|equipment list)`)
	equipmentEnd     = regexp.MustCompile(`(?is)raw material|materials|quality control`)

	// running headers and repeated column titles that leak into table bodies
	equipmentRowLabels = []string{
		"equipment name", "sr no", "s.no", "format no", "page no", "product name", "protocol no",
	}
)

// ExtractEquipment lists the equipment named in equipment tables, or in the
// equipment list section when no table qualifies. Entries are unique by
// lower-cased name and ID.
func ExtractEquipment(ctx context.Context, doc *Document) ([]Equipment, Strategy) {
	return tableThenRegex(ctx, doc, equipmentFromTables, equipmentFromText)
}

func equipmentFromTables(doc *Document) []Equipment {
	var out []Equipment
	seen := map[[2]string]bool{}

	for _, t := range doc.tablesWhere(isEquipmentTable) {
		for _, row := range t.rows {
			joined := strings.ToLower(strings.Join(strings.Fields(strings.Join(row, " ")), " "))
			if joined == "" || containsAny(joined, equipmentRowLabels) {
				continue
			}
			name, ok := acceptPrimary(cell(row, 0), 3)
			if !ok {
				continue
			}
			eq := Equipment{
				Name:              name,
				ID:                orNA(clean.Clean(cell(row, 1), 100)),
				Location:          orNA(clean.Clean(cell(row, 2), 100)),
				CalibrationStatus: orNA(clean.Clean(cell(row, 3), 100)),
			}
			key := [2]string{strings.ToLower(eq.Name), strings.ToLower(eq.ID)}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, eq)
		}
	}
	return out
}

func equipmentFromText(doc *Document) []Equipment {
	body, ok := section(doc.Text, equipmentSection, equipmentEnd)
	if !ok {
		return nil
	}

	var out []Equipment
	seen := map[[2]string]bool{}
	for _, line := range nonEmptyLines(body) {
		if utf8.RuneCountInString(line) <= 4 ||
			strings.HasPrefix(strings.ToLower(line), "s.no") ||
			clean.IsHeading(line) {
			continue
		}
		name := clean.CleanDefault(line)
		if clean.IsNoise(name) {
			continue
		}
		key := [2]string{strings.ToLower(name), strings.ToLower(notAvailable)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Equipment{Name: name, ID: notAvailable})
	}
	return out
}

// isEquipmentTable accepts tables that mention equipment in the header
// unless the first column lists process stages.
func isEquipmentTable(t table) bool {
	if !t.has("equipment", "machine") {
		return false
	}
	first := cell(t.header, 0)
	return !containsAny(first, stageHeaderKeywords)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
