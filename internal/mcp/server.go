package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/descriptions"
	"github.com/a3tai/mcp-pvp-extractor/internal/export"
	"github.com/a3tai/mcp-pvp-extractor/internal/library"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf"
	"github.com/a3tai/mcp-pvp-extractor/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	pipeline  *pipeline.Pipeline
	documents *library.Root
	outputs   *library.Root
	gatherer  prometheus.Gatherer
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance. gatherer backs the /metrics
// endpoint in server mode; nil serves an empty registry.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	documents, err := library.NewRoot(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}
	outDir := cfg.OutputDirectory
	if outDir == "" {
		outDir = cfg.PDFDirectory
	}
	outputs, err := library.NewRoot(outDir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		pipeline:  p,
		documents: documents,
		outputs:   outputs,
		gatherer:  gatherer,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	pathArg := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to the PDF, absolute or relative to the document directory"),
	)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolExtract,
		mcp.WithDescription(descriptions.ExtractDescription),
		pathArg,
	), s.handleExtract)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolClassify,
		mcp.WithDescription(descriptions.ClassifyDescription),
		pathArg,
	), s.handleClassify)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolExportXLSX,
		mcp.WithDescription(descriptions.ExportXLSXDescription),
		pathArg,
		mcp.WithString("output",
			mcp.Description("Workbook path relative to the output directory (defaults to <name>.xlsx)"),
		),
	), s.handleExportXLSX)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolValidateFile,
		mcp.WithDescription(descriptions.ValidateFileDescription),
		pathArg,
	), s.handleValidateFile)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolListDocuments,
		mcp.WithDescription(descriptions.ListDocumentsDescription),
		mcp.WithString("directory",
			mcp.Description("Subdirectory of the document directory (uses the root if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional file name filter"),
		),
	), s.handleListDocuments)
}

// resolve reads the required path argument and confines it to the
// document directory.
func (s *Server) resolve(request mcp.CallToolRequest) (string, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return "", err
	}
	return s.documents.Resolve(path)
}

func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.pipeline.Run(ctx, path)
	if err != nil {
		if pdf.IsInputFailure(err) {
			s.logger.Info("document rejected", "path", path, "error", err)
		} else {
			s.logger.Warn("extract tool failed", "path", path, "error", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s\n%v", pipeline.Message(res), err)), nil
	}

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(pipeline.Message(res) + "\n\n" + string(body)), nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := s.pipeline.Text(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("document has no extractable text"), nil
	}

	c := s.pipeline.Classifier().Analyze(text)
	responseText := fmt.Sprintf("Product type: %s\n", c.Type)
	responseText += fmt.Sprintf("Confidence: %.2f\n", c.Confidence)
	responseText += "\nScores:\n"
	for _, score := range c.Scores {
		responseText += fmt.Sprintf("  %s: %d\n", score.Type, score.Score)
	}
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleExportXLSX(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output := request.GetString("output", "")
	if output == "" {
		output = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".xlsx"
	}
	output, err = s.outputs.Resolve(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.pipeline.Run(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s\n%v", pipeline.Message(res), err)), nil
	}
	if err := export.WriteFile(res, output, s.logger); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Workbook written to %s\n", output)
	responseText += pipeline.Message(res)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleValidateFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := s.pipeline.Inspect(path)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %v", path, err)), nil
	}

	responseText := fmt.Sprintf("PDF file %s is valid and readable\n", info.Path)
	responseText += fmt.Sprintf("Pages: %d\n", info.PageCount)
	responseText += fmt.Sprintf("Size: %d bytes\n", info.Size)
	if info.Version != "" {
		responseText += fmt.Sprintf("Version: %s\n", info.Version)
	}
	responseText += fmt.Sprintf("Encrypted: %t\n", info.Encrypted)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleListDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory := request.GetString("directory", "")
	query := request.GetString("query", "")

	docs, err := s.documents.List(directory, library.ListOptions{
		Query:       query,
		MaxFileSize: s.config.MaxFileSize,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(docs) == 0 {
		responseText := fmt.Sprintf("No PDF files found in directory: %s", s.documents.Dir())
		if query != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", query)
		}
		return mcp.NewToolResultText(responseText), nil
	}
	return mcp.NewToolResultText(formatDocuments(docs, query)), nil
}

func formatDocuments(docs []library.Document, query string) string {
	text := fmt.Sprintf("Found %d PDF file(s)\n", len(docs))
	if query != "" {
		text += fmt.Sprintf("Search query: %s\n", query)
	}
	text += "\nFiles:\n"

	for i, doc := range docs {
		text += fmt.Sprintf("%d. %s\n", i+1, doc.Name)
		text += fmt.Sprintf("   Path: %s\n", doc.Path)
		text += fmt.Sprintf("   Size: %d bytes\n", doc.Size)
		text += fmt.Sprintf("   Modified: %s\n", doc.Modified.Format("2006-01-02 15:04:05"))
		if i < len(docs)-1 {
			text += "\n"
		}
	}
	return text
}

// Router returns the HTTP routes of server mode: the streamable MCP
// endpoint, Prometheus metrics and a liveness probe.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath("/mcp"))).
		Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return router
}

// Run starts the MCP server in the configured mode and blocks until ctx
// is cancelled or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	switch s.config.Mode {
	case config.ModeServer:
		return s.runServerMode(ctx)
	case config.ModeStdio:
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %q", s.config.Mode)
	}
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode", "pdf_dir", s.documents.Dir())

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in server mode", "addr", srv.Addr, "pdf_dir", s.documents.Dir())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.logger.Info("MCP server stopped")
		return nil
	}
}
