package intelligence

// ProductType is the dosage-form category of a validation document.
type ProductType string

const (
	ProductInjectable ProductType = "Injectable"
	ProductTablet     ProductType = "Tablet"
	ProductCapsule    ProductType = "Capsule"
	ProductOralLiquid ProductType = "Oral_Liquid"
)

// ProductRule scores one product type by keyword occurrences.
type ProductRule struct {
	Type        ProductType `json:"type"`
	Keywords    []string    `json:"keywords"`
	Description string      `json:"description"`
}

// Score is the keyword tally of one product type.
type Score struct {
	Type    ProductType    `json:"type"`
	Score   int            `json:"score"`
	Matches map[string]int `json:"matches,omitempty"`
}

// Classification is the full outcome of classifying a text.
type Classification struct {
	Type       ProductType `json:"type"`
	Confidence float64     `json:"confidence"` // winner's share of all matches, 0 when nothing matched
	Scores     []Score     `json:"scores"`
}
