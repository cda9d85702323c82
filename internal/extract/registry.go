package extract

import "context"

// Task is one entity extractor bound to the result field it fills. Tasks
// write disjoint fields, so they may run concurrently on one result.
type Task struct {
	Name string
	Run  func(ctx context.Context, doc *Document, res *ExtractionResult) Strategy
}

// Entity names used as keys of ExtractionResult.Strategies.
const (
	EntityProductInfo    = "product_info"
	EntityEquipment      = "equipment"
	EntityMaterials      = "materials"
	EntityStages         = "stages"
	EntityTestCriteria   = "test_criteria"
	EntityBatchDetails   = "batch_details"
	EntityHoldTime       = "hold_time_study"
	EntityBioburden      = "bioburden_bet"
	EntityQCFinalProduct = "qc_final_product"
	EntityWaterQuality   = "water_quality"
	EntityTextFields     = "text_fields"
)

// Tasks returns the entity extractors in a fixed order.
func Tasks() []Task {
	return []Task{
		{EntityEquipment, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.Equipment, s = ExtractEquipment(ctx, d)
			return s
		}},
		{EntityMaterials, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.Materials, s = ExtractMaterials(ctx, d)
			return s
		}},
		{EntityStages, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.Stages, s = ExtractStages(ctx, d)
			return s
		}},
		{EntityTestCriteria, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.TestCriteria, s = ExtractTestCriteria(ctx, d)
			return s
		}},
		{EntityBatchDetails, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.BatchDetails, s = ExtractBatchDetails(ctx, d)
			return s
		}},
		{EntityHoldTime, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.HoldTimeStudy, s = ExtractHoldTime(ctx, d)
			return s
		}},
		{EntityBioburden, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.BioburdenBET, s = ExtractBioburden(ctx, d)
			return s
		}},
		{EntityQCFinalProduct, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.QCFinalProduct, s = ExtractQCFinalProduct(ctx, d)
			return s
		}},
		{EntityWaterQuality, func(ctx context.Context, d *Document, r *ExtractionResult) (s Strategy) {
			r.WaterQuality, s = ExtractWaterQuality(ctx, d)
			return s
		}},
		{EntityTextFields, func(_ context.Context, d *Document, r *ExtractionResult) Strategy {
			r.Observations = Observations(d.Text)
			r.Signatures = Signatures(d.Text)
			r.ProtocolSummary = ProtocolSummary(d.Text)
			if r.Observations == "" && len(r.Signatures) == 0 && r.ProtocolSummary == "" {
				return StrategyNone
			}
			return StrategyRegex
		}},
	}
}
