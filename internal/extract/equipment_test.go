package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/tables"
)

const equipmentText = "Equipment List\n" +
	"Mixing Vessel MV-01\n" +
	"Homogenizer\n" +
	"S.No Name\n" +
	"Raw Materials\n" +
	"Paracetamol  IP  500 mg\n"

func equipmentGrids() []tables.Grid {
	return []tables.Grid{
		{
			{"S.No", "Equipment Name", "Equipment ID", "Location", "Calibration"},
			{"1", "Autoclave", "EQ-01", "Sterile area", "Calibrated"},
			{"2", "Filling Machine", "FM-02", "Filling room", ""},
			{"3", "Equipment Name", "ID", "", ""},
		},
		{
			{"Equipment", "ID"},
			{"autoclave", "eq-01"},
			{"Tunnel", "TN-03"},
			{"--", ""},
		},
	}
}

func TestExtractEquipment(t *testing.T) {
	tests := []struct {
		name         string
		doc          *Document
		want         []Equipment
		wantStrategy Strategy
	}{
		{
			name: "deduplicated across tables",
			doc:  NewDocument("", equipmentGrids()),
			want: []Equipment{
				{Name: "Autoclave", ID: "EQ-01", Location: "Sterile area", CalibrationStatus: "Calibrated"},
				{Name: "Filling Machine", ID: "FM-02", Location: "Filling room", CalibrationStatus: "N/A"},
				{Name: "Tunnel", ID: "TN-03", Location: "N/A", CalibrationStatus: "N/A"},
			},
			wantStrategy: StrategyTable,
		},
		{
			name: "tables take precedence over text",
			doc:  NewDocument(equipmentText, equipmentGrids()[1:]),
			want: []Equipment{
				{Name: "autoclave", ID: "eq-01", Location: "N/A", CalibrationStatus: "N/A"},
				{Name: "Tunnel", ID: "TN-03", Location: "N/A", CalibrationStatus: "N/A"},
			},
			wantStrategy: StrategyTable,
		},
		{
			name: "section text when no table qualifies",
			doc: NewDocument(equipmentText, []tables.Grid{
				{{"Stage", "Equipment"}, {"Mixing", "Vessel"}},
			}),
			want: []Equipment{
				{Name: "Mixing Vessel MV-01", ID: "N/A"},
				{Name: "Homogenizer", ID: "N/A"},
			},
			wantStrategy: StrategyRegex,
		},
		{
			name:         "nothing found",
			doc:          NewDocument("no relevant content", nil),
			want:         []Equipment{},
			wantStrategy: StrategyNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := ExtractEquipment(context.Background(), tt.doc)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStrategy, strategy)
		})
	}
}

func TestIsEquipmentTable(t *testing.T) {
	tests := []struct {
		header []string
		want   bool
	}{
		{[]string{"Equipment Name", "ID"}, true},
		{[]string{"Machine", "Make"}, true},
		{[]string{"Process Step", "Equipment Used"}, false},
		{[]string{"Material", "Quantity"}, false},
	}
	for _, tt := range tests {
		got := isEquipmentTable(newTable(tables.Grid{tt.header}))
		assert.Equal(t, tt.want, got, "%v", tt.header)
	}
}

func TestExtractMaterials(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		doc := NewDocument("", []tables.Grid{{
			{"Material", "Specification", "Quantity"},
			{"Paracetamol", "IP", "500 g"},
			{"Glass Vial 10 ml", "Type I", "1000 Nos"},
			{"Purified Talc", "USP", "2 kg"},
			{"N/A", "", ""},
		}})
		got, strategy := ExtractMaterials(context.Background(), doc)
		assert.Equal(t, StrategyTable, strategy)
		assert.Equal(t, []Material{
			{Type: MaterialAPI, Name: "Paracetamol", Specification: "IP", Quantity: "500 g"},
			{Type: MaterialPackaging, Name: "Glass Vial 10 ml", Specification: "Type I", Quantity: "1000 Nos"},
			{Type: "", Name: "Purified Talc", Specification: "USP", Quantity: "2 kg"},
		}, got)
	})

	t.Run("section and keyword fallback", func(t *testing.T) {
		text := "Raw Materials\n" +
			"Paracetamol  IP  500 mg\n" +
			"Purified Talc: USP\n" +
			"Equipment\n" +
			"Water for injection is used for the solution.\n"
		got, strategy := ExtractMaterials(context.Background(), NewDocument(text, nil))
		assert.Equal(t, StrategyRegex, strategy)
		assert.Equal(t, []Material{
			{Type: MaterialAPI, Name: "Paracetamol", Specification: "IP", Quantity: "500 mg"},
			{Type: "", Name: "Purified Talc", Specification: "USP"},
			{Type: MaterialExcipient, Name: "Water For Injection"},
		}, got)
	})
}

func TestExtractStages(t *testing.T) {
	t.Run("table rows renumbered", func(t *testing.T) {
		doc := NewDocument("", []tables.Grid{{
			{"Sr. No", "Stage", "Equipment", "Parameters", "Acceptance Criteria"},
			{"4", "Dispensing", "Balance", "RH NMT 60%", "Complies"},
			{"7", "Mixing", "Vessel", "30 min", "Clear solution"},
		}})
		got, strategy := ExtractStages(context.Background(), doc)
		assert.Equal(t, StrategyTable, strategy)
		assert.Equal(t, []Stage{
			{Number: 1, Name: "Dispensing", EquipmentUsed: "Balance", Parameters: "RH NMT 60%", AcceptanceCriteria: "Complies"},
			{Number: 2, Name: "Mixing", EquipmentUsed: "Vessel", Parameters: "30 min", AcceptanceCriteria: "Clear solution"},
		}, got)
	})

	t.Run("process headings", func(t *testing.T) {
		text := "Bulk solution is passed through Filtration with a 0.22 micron filter.\nVisual inspection of vials follows."
		got, strategy := ExtractStages(context.Background(), NewDocument(text, nil))
		assert.Equal(t, StrategyRegex, strategy)
		if assert.Len(t, got, 2) {
			assert.Equal(t, 1, got[0].Number)
			assert.Equal(t, "Filtration", got[0].Name)
			assert.Contains(t, got[0].Parameters, "0.22 micron")
			assert.Equal(t, 2, got[1].Number)
			assert.Equal(t, "Visual Inspection", got[1].Name)
		}
	})
}

func TestWindow(t *testing.T) {
	text := "ααα-βββ"
	at := len("ααα")
	assert.Equal(t, "α-β", window(text, at, 3, 3))
	assert.Equal(t, text, window(text, at, 100, 100))
}
