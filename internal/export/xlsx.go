// Package export renders an ExtractionResult as an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-pvp-extractor/internal/extract"
)

// Sheet names in workbook order.
const (
	SheetSummary        = "Summary"
	SheetEquipment      = "Equipment"
	SheetMaterials      = "Materials"
	SheetStages         = "Stages"
	SheetTestCriteria   = "Test Criteria"
	SheetBatchDetails   = "Batch Details"
	SheetHoldTime       = "Hold Time"
	SheetBioburden      = "Bioburden BET"
	SheetQCFinalProduct = "QC Final Product"
	SheetWaterQuality   = "Water Quality"
	SheetStatistics     = "Statistics"
)

const maxCellLen = 32767

type sheet struct {
	name   string
	header []string
	rows   [][]any
}

// XLSX returns the workbook for res as bytes.
func XLSX(res *extract.ExtractionResult, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	sheets := buildSheets(res)
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("export.xlsx.ok",
		"run_id", res.RunID,
		"sheets", len(sheets),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile writes the workbook for res to path, creating parent directories.
func WriteFile(res *extract.ExtractionResult, path string, logger *slog.Logger) error {
	b, err := XLSX(res, logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet) error {
	write := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if str, ok := v.(string); ok && len(str) > maxCellLen {
			v = str[:maxCellLen]
		}
		return f.SetCellValue(s.name, cell, v)
	}

	for i, h := range s.header {
		if err := write(i+1, 1, h); err != nil {
			return fmt.Errorf("sheet %s header: %w", s.name, err)
		}
	}
	for r, row := range s.rows {
		for c, v := range row {
			if err := write(c+1, r+2, v); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", s.name, r+1, err)
			}
		}
	}

	if len(s.header) > 0 {
		last, _ := excelize.ColumnNumberToName(len(s.header))
		_ = f.SetColWidth(s.name, "A", last, 24)
		_ = f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
	return nil
}

func buildSheets(res *extract.ExtractionResult) []sheet {
	return []sheet{
		summarySheet(res),
		equipmentSheet(res.Equipment),
		materialsSheet(res.Materials),
		stagesSheet(res.Stages),
		criteriaSheet(res.TestCriteria),
		batchSheet(res.BatchDetails),
		holdTimeSheet(res.HoldTimeStudy),
		testResultSheet(SheetBioburden, res.BioburdenBET),
		testResultSheet(SheetQCFinalProduct, res.QCFinalProduct),
		testResultSheet(SheetWaterQuality, res.WaterQuality),
		statisticsSheet(res),
	}
}

func summarySheet(res *extract.ExtractionResult) sheet {
	s := sheet{name: SheetSummary, header: []string{"Field", "Value"}}
	add := func(k string, v any) {
		s.rows = append(s.rows, []any{k, v})
	}
	add("Run ID", res.RunID)
	add("Product Type", string(res.ProductType))
	add("Product Name", res.ProductInfo.ProductName)
	add("Strength", res.ProductInfo.Strength)
	add("Dosage Form", res.ProductInfo.DosageForm)
	add("Batch Size", res.ProductInfo.BatchSize)
	add("Pack Size", res.ProductInfo.PackSize)
	add("Manufacturing Site", res.ProductInfo.ManufacturingSite)
	add("Pages", res.PageCount)
	add("Text Length", res.RawTextLength)
	add("Degenerate", res.Degenerate)
	add("Observations", res.Observations)
	add("Protocol Summary", res.ProtocolSummary)

	for _, k := range sortedKeys(res.Signatures) {
		add("Signature: "+strings.ReplaceAll(k, "_", " "), res.Signatures[k])
	}
	for _, k := range sortedKeys(res.Strategies) {
		add("Strategy: "+k, string(res.Strategies[k]))
	}
	return s
}

func equipmentSheet(list []extract.Equipment) sheet {
	s := sheet{name: SheetEquipment, header: []string{"Equipment Name", "Equipment ID", "Location", "Calibration Status"}}
	for _, e := range list {
		s.rows = append(s.rows, []any{e.Name, e.ID, e.Location, e.CalibrationStatus})
	}
	return s
}

func materialsSheet(list []extract.Material) sheet {
	s := sheet{name: SheetMaterials, header: []string{"Material Type", "Material Name", "Specification", "Quantity"}}
	for _, m := range list {
		s.rows = append(s.rows, []any{m.Type, m.Name, m.Specification, m.Quantity})
	}
	return s
}

func stagesSheet(list []extract.Stage) sheet {
	s := sheet{name: SheetStages, header: []string{"Stage", "Stage Name", "Equipment Used", "Parameters", "Acceptance Criteria"}}
	for _, st := range list {
		s.rows = append(s.rows, []any{st.Number, st.Name, st.EquipmentUsed, st.Parameters, st.AcceptanceCriteria})
	}
	return s
}

func criteriaSheet(list []extract.TestCriterion) sheet {
	s := sheet{name: SheetTestCriteria, header: []string{"Test ID", "Test Name", "Acceptance Criteria"}}
	for _, c := range list {
		s.rows = append(s.rows, []any{c.TestID, c.TestName, c.AcceptanceCriteria})
	}
	return s
}

// batchSheet uses the union of row keys in order of first appearance.
func batchSheet(list []*extract.BatchDetailRow) sheet {
	s := sheet{name: SheetBatchDetails}
	seen := map[string]bool{}
	for _, r := range list {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				s.header = append(s.header, k)
			}
		}
	}
	for _, r := range list {
		row := make([]any, len(s.header))
		for i, k := range s.header {
			v, _ := r.Get(k)
			row[i] = v
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func holdTimeSheet(h extract.HoldTimeStudy) sheet {
	s := sheet{name: SheetHoldTime, header: []string{"Phase", "Time", "Description", "pH", "Assay", "Bioburden", "Sterility"}}
	add := func(phase string, list []extract.HoldTimeEntry) {
		for _, e := range list {
			s.rows = append(s.rows, []any{phase, e.Time, e.Description, e.PH, e.Assay, e.Bioburden, e.Sterility})
		}
	}
	add("Before Filtration", h.BeforeFiltration)
	add("After Filtration", h.AfterFiltration)
	return s
}

func testResultSheet(name string, list []extract.TestResult) sheet {
	s := sheet{name: name, header: []string{"Test Name", "Specification", "Result", "Remarks"}}
	for _, t := range list {
		s.rows = append(s.rows, []any{t.TestName, t.Specification, t.Result, t.Remarks})
	}
	return s
}

func statisticsSheet(res *extract.ExtractionResult) sheet {
	s := sheet{name: SheetStatistics, header: []string{"Test ID", "Mean", "Std", "RSD %", "Count"}}
	for _, k := range sortedKeys(res.Statistics) {
		st := res.Statistics[k]
		var rsd any = ""
		if st.RSD != nil {
			rsd = *st.RSD
		}
		s.rows = append(s.rows, []any{k, st.Mean, st.Std, rsd, st.Count})
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
