package descriptions

import "slices"

// Tool names exposed by the MCP server.
const (
	ToolExtract       = "pvp_extract"
	ToolClassify      = "pvp_classify"
	ToolExportXLSX    = "pvp_export_xlsx"
	ToolValidateFile  = "pvp_validate_file"
	ToolListDocuments = "pvp_list_documents"
)

const (
	ExtractDescription = `Extract structured validation data from a pharmaceutical PVP/AMV protocol PDF.

**When to use:** You need the equipment, materials, manufacturing stages, batch details, hold-time study, QC and water-quality results of a process or analytical method validation document as JSON.

**What you get:** product_info, product_type, equipment, materials, stages, test_criteria, batch_details, hold_time_study, bioburden_bet, qc_final_product, water_quality, observations, signatures, protocol_summary and per-test statistics (mean, std, rsd). Every list is present, empty lists included. The strategies map tells which extraction path produced each entity (table, regex, ai or none).

**Examples:**
• "Extract the equipment list from protocols/PVP-INJ-014.pdf"
• "Get the hold-time pH values from the validation report for batch B2301"

**Best practices:** Run pvp_validate_file first on unknown uploads. Scanned pages are OCR'd when OCR is enabled on the server; a degenerate result means no text could be recovered.`

	ClassifyDescription = `Classify a protocol PDF by product type.

**When to use:** You only need to know whether the document covers an Injectable, Tablet, Capsule or Oral_Liquid product, or you want to route documents before a full extraction.

**What you get:** the winning product type, a confidence between 0 and 1, and the keyword score of every type.

**Best practices:** Cheaper than pvp_extract since no tables or entities are parsed.`

	ExportXLSXDescription = `Extract a protocol PDF and write the result as an XLSX workbook.

**When to use:** A reviewer needs the extracted data in a spreadsheet.

**What you get:** the path of the written workbook. It has a Summary sheet plus one sheet per entity list (Equipment, Materials, Stages, Test Criteria, Batch Details, Hold Time, Bioburden BET, QC Final Product, Water Quality, Statistics).

**Best practices:** Leave output empty to write <name>.xlsx into the server's output directory.`

	ValidateFileDescription = `Verify that a file is a readable PDF within the server's size limit.

**When to use:** Before extraction, especially for user uploads.

**What you get:** validity, page count, PDF version and whether the document is encrypted, or the reason it was rejected (missing, empty, too large, not a PDF, corrupt).`

	ListDocumentsDescription = `List protocol PDFs under the configured document directory.

**When to use:** Discover which documents are available before extracting them.

**What you get:** name, path, size and modification time of every PDF, optionally filtered by a query matched against the file name word by word ("pvp inj" matches PVP-INJ-014.pdf).`
)

// ToolDescriptions maps tool names to their descriptions.
var ToolDescriptions = map[string]string{
	ToolExtract:       ExtractDescription,
	ToolClassify:      ClassifyDescription,
	ToolExportXLSX:    ExportXLSXDescription,
	ToolValidateFile:  ValidateFileDescription,
	ToolListDocuments: ListDocumentsDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order.
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
