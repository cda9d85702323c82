package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/logging"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pvp-extractor/internal/pipeline"
)

var protocolPage = pdftest.TextPage(
	"PARACETAMOL INJECTION 150 mg/ml",
	"Batch Size: 10,000 vials",
	"Equipment Details",
	"Autoclave (AC-01)",
	"Hold Time Study",
	"0 hour: Initial",
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Mode:            config.ModeStdio,
		Host:            "127.0.0.1",
		Port:            0,
		PDFDirectory:    dir,
		OutputDirectory: filepath.Join(dir, "out"),
		Version:         "1.0.0",
		ServerName:      "test-server",
		LogLevel:        "info",
		MaxFileSize:     1 << 20,
		Workers:         2,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	p := pipeline.New(pipeline.Options{
		MaxFileSize: cfg.MaxFileSize,
		Metrics:     pipeline.NewMetrics(reg),
		Logger:      logging.Discard(),
		Workers:     cfg.Workers,
	})
	s, err := NewServer(cfg, p, reg, logging.Discard())
	require.NoError(t, err)
	return s
}

func callTool(t *testing.T, h server.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results carry text content")
	return text.Text, res.IsError
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t.TempDir())

	_, err := NewServer(cfg, nil, nil, nil)
	assert.Error(t, err)

	s, err := NewServer(cfg, pipeline.New(pipeline.Options{}), nil, nil)
	require.NoError(t, err)
	assert.Same(t, cfg, s.config)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.gatherer)
	assert.Equal(t, cfg.OutputDirectory, s.outputs.Dir())

	cfg.OutputDirectory = ""
	s, err = NewServer(cfg, pipeline.New(pipeline.Options{}), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, s.documents.Dir(), s.outputs.Dir())
}

func TestServer_HandleExtract(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "protocol.pdf", protocolPage)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("plain text"), 0o600))
	s := newTestServer(t, testConfig(dir))

	text, isErr := callTool(t, s.handleExtract, map[string]any{"path": "protocol.pdf"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Extracted Injectable product data from 1 pages")
	assert.Contains(t, text, `"product_name": "PARACETAMOL INJECTION 150 mg/ml"`)
	assert.Contains(t, text, `"product_type": "Injectable"`)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing argument", map[string]any{}, "path"},
		{"outside directory", map[string]any{"path": "../protocol.pdf"}, "outside the allowed directory"},
		{"not a pdf", map[string]any{"path": "notes.pdf"}, "No data could be extracted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, s.handleExtract, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestServer_HandleClassify(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "protocol.pdf", protocolPage)
	pdftest.Write(t, dir, "blank.pdf", pdftest.Page{})
	s := newTestServer(t, testConfig(dir))

	text, isErr := callTool(t, s.handleClassify, map[string]any{"path": "protocol.pdf"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Product type: Injectable")
	assert.Contains(t, text, "Scores:")
	assert.Contains(t, text, "Tablet: 0")

	text, isErr = callTool(t, s.handleClassify, map[string]any{"path": "blank.pdf"})
	assert.True(t, isErr)
	assert.Contains(t, text, "no extractable text")
}

func TestServer_HandleExportXLSX(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "protocol.pdf", protocolPage)
	cfg := testConfig(dir)
	s := newTestServer(t, cfg)

	text, isErr := callTool(t, s.handleExportXLSX, map[string]any{"path": "protocol.pdf"})
	require.False(t, isErr, text)
	want := filepath.Join(cfg.OutputDirectory, "protocol.xlsx")
	assert.Contains(t, text, "Workbook written to "+want)
	assert.FileExists(t, want)

	text, isErr = callTool(t, s.handleExportXLSX, map[string]any{"path": "protocol.pdf", "output": "reports/run.xlsx"})
	require.False(t, isErr, text)
	assert.FileExists(t, filepath.Join(cfg.OutputDirectory, "reports", "run.xlsx"))

	text, isErr = callTool(t, s.handleExportXLSX, map[string]any{"path": "protocol.pdf", "output": "../../escape.xlsx"})
	assert.True(t, isErr)
	assert.Contains(t, text, "outside the allowed directory")
}

func TestServer_HandleValidateFile(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "protocol.pdf", protocolPage)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.pdf"), nil, 0o600))
	s := newTestServer(t, testConfig(dir))

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"valid", "protocol.pdf", []string{"is valid and readable", "Pages: 1", "Encrypted: false"}},
		{"empty", "empty.pdf", []string{"PDF validation failed", "file is empty"}},
		{"missing", "missing.pdf", []string{"PDF validation failed", "file does not exist"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, s.handleValidateFile, map[string]any{"path": tt.path})
			assert.False(t, isErr)
			for _, w := range tt.want {
				assert.Contains(t, text, w)
			}
		})
	}
}

func TestServer_HandleListDocuments(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "PVP-INJ-014.pdf", protocolPage)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o750))
	pdftest.Write(t, filepath.Join(dir, "archive"), "AMV-TAB-002.pdf", protocolPage)
	s := newTestServer(t, testConfig(dir))

	text, isErr := callTool(t, s.handleListDocuments, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "Found 2 PDF file(s)")

	text, _ = callTool(t, s.handleListDocuments, map[string]any{"query": "pvp inj"})
	assert.Contains(t, text, "Found 1 PDF file(s)")
	assert.Contains(t, text, "PVP-INJ-014.pdf")
	assert.Contains(t, text, "Search query: pvp inj")

	text, _ = callTool(t, s.handleListDocuments, map[string]any{"directory": "archive"})
	assert.Contains(t, text, "AMV-TAB-002.pdf")
	assert.NotContains(t, text, "PVP-INJ-014.pdf")

	text, _ = callTool(t, s.handleListDocuments, map[string]any{"query": "capsule"})
	assert.Contains(t, text, "No PDF files found")
	assert.Contains(t, text, "(searched for: capsule)")

	_, isErr = callTool(t, s.handleListDocuments, map[string]any{"directory": "../"})
	assert.True(t, isErr)
}
