package extract

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
)

const maxMaterials = 200

var (
	materialsSection = regexp.MustCompile(`(?i)raw materials?|list of materials|bill of materials`)
	materialsEnd     = regexp.MustCompile(`(?i)equipment|manufacturing process|procedure`)

	apiKeywords       = []string{"api", "active ingredient", "acetaminophen", "paracetamol", "ibuprofen", "fluorouracil"}
	excipientKeywords = []string{"excipient", "sodium hydroxide", "water for injection", "sodium chloride", "preservative"}
	packagingKeywords = []string{"vial", "ampoule", "stopper", "seal", "carton", "label", "bottle", "foil", "blister", "closure", "leaflet"}

	titleCaser = cases.Title(language.English)
)

// ExtractMaterials lists raw and packaging materials from material tables,
// or from the materials section and well-known ingredient names otherwise.
func ExtractMaterials(ctx context.Context, doc *Document) ([]Material, Strategy) {
	return tableThenRegex(ctx, doc, materialsFromTables, materialsFromText)
}

func materialsFromTables(doc *Document) []Material {
	var out []Material
	for _, t := range doc.tablesWhere(func(t table) bool { return t.has("material", "ingredient") }) {
		for _, row := range t.rows {
			name, ok := acceptPrimary(cell(row, 0), 3)
			if !ok || strings.EqualFold(name, notAvailable) {
				continue
			}
			out = append(out, Material{
				Type:          materialType(name),
				Name:          name,
				Specification: clean.CleanDefault(cell(row, 1)),
				Quantity:      clean.Clean(cell(row, 2), 100),
			})
			if len(out) == maxMaterials {
				return out
			}
		}
	}
	return out
}

func materialsFromText(doc *Document) []Material {
	var out []Material
	if body, ok := section(doc.Text, materialsSection, materialsEnd); ok {
		for _, line := range nonEmptyLines(body) {
			fields := splitFields(line)
			if len(fields) == 0 {
				continue
			}
			name, ok := acceptPrimary(fields[0], 3)
			if !ok {
				continue
			}
			out = append(out, Material{
				Type:          materialType(name),
				Name:          name,
				Specification: clean.CleanDefault(cell(fields, 1)),
				Quantity:      clean.Clean(cell(fields, 2), 100),
			})
		}
	}

	lower := strings.ToLower(doc.Text)
	addKnown := func(keywords []string, kind string) {
		for _, k := range keywords {
			if !strings.Contains(lower, k) || mentioned(out, k) {
				continue
			}
			out = append(out, Material{Type: kind, Name: titleCaser.String(k)})
		}
	}
	addKnown(apiKeywords, MaterialAPI)
	addKnown(excipientKeywords, MaterialExcipient)

	if len(out) > maxMaterials {
		out = out[:maxMaterials]
	}
	return out
}

func mentioned(materials []Material, keyword string) bool {
	for _, m := range materials {
		if strings.Contains(strings.ToLower(m.Name), keyword) {
			return true
		}
	}
	return false
}

// materialType infers API, Excipient or Packaging from the material name.
func materialType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, apiKeywords):
		return MaterialAPI
	case containsAny(lower, excipientKeywords):
		return MaterialExcipient
	case containsAny(lower, packagingKeywords):
		return MaterialPackaging
	default:
		return ""
	}
}
