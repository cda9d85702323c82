// Package extract turns the text and table layers of a validation protocol
// into structured records: product details, equipment, materials, process
// stages, batch rows, hold-time results, bioburden/BET, finished-product QC,
// water quality, test criteria and derived statistics.
package extract

import (
	"bytes"
	"encoding/json"

	"github.com/a3tai/mcp-pvp-extractor/internal/intelligence"
	"github.com/a3tai/mcp-pvp-extractor/internal/stats"
)

// Strategy records how an entity list was produced.
type Strategy string

const (
	StrategyTable Strategy = "table"
	StrategyRegex Strategy = "regex"
	StrategyAI    Strategy = "ai"
	StrategyNone  Strategy = "none"
)

// ProductInfo fields are empty when unknown.
type ProductInfo struct {
	ProductName       string `json:"product_name"`
	Strength          string `json:"strength"`
	DosageForm        string `json:"dosage_form"`
	BatchSize         string `json:"batch_size"`
	PackSize          string `json:"pack_size"`
	ManufacturingSite string `json:"manufacturing_site"`
}

// Equipment is one machine or instrument used in manufacture.
type Equipment struct {
	Name              string `json:"equipment_name"`
	ID                string `json:"equipment_id"`
	Location          string `json:"location"`
	CalibrationStatus string `json:"calibration_status"`
}

// Material types.
const (
	MaterialAPI       = "API"
	MaterialExcipient = "Excipient"
	MaterialPackaging = "Packaging"
)

// Material is a raw or packaging material. Type is empty when unknown.
type Material struct {
	Type          string `json:"material_type"`
	Name          string `json:"material_name"`
	Specification string `json:"specification"`
	Quantity      string `json:"quantity"`
}

// Stage is one manufacturing process step, numbered from 1.
type Stage struct {
	Number             int    `json:"stage_number"`
	Name               string `json:"stage_name"`
	EquipmentUsed      string `json:"equipment_used"`
	Parameters         string `json:"specific_parameters"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
}

// TestCriterion is an acceptance limit stated in the protocol.
type TestCriterion struct {
	TestID             string `json:"test_id"`
	TestName           string `json:"test_name"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
}

// BatchDetailRow maps normalized column headers to cell values and keeps
// the column order of the source table.
type BatchDetailRow struct {
	keys   []string
	values map[string]string
}

// NewBatchDetailRow returns an empty row.
func NewBatchDetailRow() *BatchDetailRow {
	return &BatchDetailRow{values: map[string]string{}}
}

// Set stores value under key. A repeated key keeps its first position.
func (r *BatchDetailRow) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *BatchDetailRow) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the headers in column order.
func (r *BatchDetailRow) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of columns.
func (r *BatchDetailRow) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the row as an object in column order.
func (r *BatchDetailRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order.
func (r *BatchDetailRow) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	r.keys = nil
	r.values = map[string]string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v string
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.Set(key, v)
	}
	_, err := dec.Token()
	return err
}

// HoldTimeEntry is one sampling point of a hold-time study.
type HoldTimeEntry struct {
	Time        string `json:"time"`
	Description string `json:"description"`
	PH          string `json:"ph"`
	Assay       string `json:"assay"`
	Bioburden   string `json:"bioburden"`
	Sterility   string `json:"sterility"`
}

// HoldTimeStudy splits sampling points by filtration phase.
type HoldTimeStudy struct {
	BeforeFiltration []HoldTimeEntry `json:"before_filtration"`
	AfterFiltration  []HoldTimeEntry `json:"after_filtration"`
}

// Empty reports whether neither phase has entries.
func (h HoldTimeStudy) Empty() bool {
	return len(h.BeforeFiltration) == 0 && len(h.AfterFiltration) == 0
}

// TestResult is a tested parameter with its limit and observed value.
type TestResult struct {
	TestName      string `json:"test_name"`
	Specification string `json:"specification"`
	Result        string `json:"result"`
	Remarks       string `json:"remarks"`
}

// ExtractionResult is everything recovered from one document.
type ExtractionResult struct {
	RunID           string                   `json:"run_id"`
	ProductInfo     ProductInfo              `json:"product_info"`
	ProductType     intelligence.ProductType `json:"product_type"`
	Equipment       []Equipment              `json:"equipment"`
	Materials       []Material               `json:"materials"`
	Stages          []Stage                  `json:"stages"`
	TestCriteria    []TestCriterion          `json:"test_criteria"`
	BatchDetails    []*BatchDetailRow        `json:"batch_details"`
	HoldTimeStudy   HoldTimeStudy            `json:"hold_time_study"`
	BioburdenBET    []TestResult             `json:"bioburden_bet"`
	QCFinalProduct  []TestResult             `json:"qc_final_product"`
	WaterQuality    []TestResult             `json:"water_quality"`
	Statistics      map[string]stats.Stats   `json:"statistics"`
	Observations    string                   `json:"observations"`
	Signatures      map[string]string        `json:"signatures"`
	ProtocolSummary string                   `json:"protocol_summary"`
	Strategies      map[string]Strategy      `json:"strategies"`
	RawTextLength   int                      `json:"raw_text_length"`
	PageCount       int                      `json:"page_count"`
	Degenerate      bool                     `json:"degenerate"`
}

// NewResult returns a result whose lists and maps are all empty, not nil.
func NewResult() *ExtractionResult {
	r := &ExtractionResult{}
	r.Normalize()
	return r
}

// Normalize replaces nil lists and maps with empty ones so the JSON form
// never carries null collections.
func (r *ExtractionResult) Normalize() {
	if r.Equipment == nil {
		r.Equipment = []Equipment{}
	}
	if r.Materials == nil {
		r.Materials = []Material{}
	}
	if r.Stages == nil {
		r.Stages = []Stage{}
	}
	if r.TestCriteria == nil {
		r.TestCriteria = []TestCriterion{}
	}
	if r.BatchDetails == nil {
		r.BatchDetails = []*BatchDetailRow{}
	}
	if r.HoldTimeStudy.BeforeFiltration == nil {
		r.HoldTimeStudy.BeforeFiltration = []HoldTimeEntry{}
	}
	if r.HoldTimeStudy.AfterFiltration == nil {
		r.HoldTimeStudy.AfterFiltration = []HoldTimeEntry{}
	}
	if r.BioburdenBET == nil {
		r.BioburdenBET = []TestResult{}
	}
	if r.QCFinalProduct == nil {
		r.QCFinalProduct = []TestResult{}
	}
	if r.WaterQuality == nil {
		r.WaterQuality = []TestResult{}
	}
	if r.Statistics == nil {
		r.Statistics = map[string]stats.Stats{}
	}
	if r.Signatures == nil {
		r.Signatures = map[string]string{}
	}
	if r.Strategies == nil {
		r.Strategies = map[string]Strategy{}
	}
	if r.ProductType == "" {
		r.ProductType = intelligence.ProductInjectable
	}
}

// Empty reports whether no entity of any kind was extracted.
func (r *ExtractionResult) Empty() bool {
	return r.ProductInfo == (ProductInfo{}) &&
		len(r.Equipment) == 0 && len(r.Materials) == 0 && len(r.Stages) == 0 &&
		len(r.TestCriteria) == 0 && len(r.BatchDetails) == 0 && r.HoldTimeStudy.Empty() &&
		len(r.BioburdenBET) == 0 && len(r.QCFinalProduct) == 0 && len(r.WaterQuality) == 0
}
