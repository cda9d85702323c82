package intelligence

// defaultRules returns the product rules in tie-break priority order.
func defaultRules() []ProductRule {
	return []ProductRule{
		{
			Type:        ProductInjectable,
			Keywords:    []string{"injection", "injectable", "vial", "ampoule", "aseptic"},
			Description: "Parenteral products filled aseptically into vials or ampoules",
		},
		{
			Type:        ProductTablet,
			Keywords:    []string{"tablet", "compression", "granulation", "coating"},
			Description: "Compressed solid dosage forms",
		},
		{
			Type:        ProductCapsule,
			Keywords:    []string{"capsule", "gelatin", "shell"},
			Description: "Hard or soft gelatin capsules",
		},
		{
			Type:        ProductOralLiquid,
			Keywords:    []string{"syrup", "suspension", "solution", "bottle filling"},
			Description: "Syrups, suspensions and oral solutions",
		},
	}
}
