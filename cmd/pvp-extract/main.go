// Command pvp-extract runs the extraction pipeline on one PDF and prints
// the result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/export"
	"github.com/a3tai/mcp-pvp-extractor/internal/extract"
	"github.com/a3tai/mcp-pvp-extractor/internal/logging"
	"github.com/a3tai/mcp-pvp-extractor/internal/pipeline"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitRejected = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	format string
	xlsx   string
	cfg    *config.Config
}

func parseArgs(args []string, stderr io.Writer) (*options, string, error) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeServer // logs at the configured level instead of the stdio floor
	opts := &options{cfg: cfg}

	fs := pflag.NewFlagSet("pvp-extract", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "json", "Output format: json, text")
	fs.StringVar(&opts.xlsx, "xlsx", "", "Also write the result as an XLSX workbook to this path")
	fs.StringVar(&cfg.LogLevel, "loglevel", "warn", "Log level (debug, info, warn, error)")
	fs.Int64Var(&cfg.MaxFileSize, "maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.BoolVar(&cfg.OCR.Enabled, "ocr", cfg.OCR.Enabled, "OCR pages with too little text")
	fs.IntVar(&cfg.OCR.DPI, "ocr-dpi", cfg.OCR.DPI, "Rasterization DPI for OCR")
	fs.StringVar(&cfg.OCR.Language, "ocr-lang", cfg.OCR.Language, "Tesseract language")
	fs.StringVar(&cfg.AI.Project, "ai-project", "", "GCP project for Gemini product info (optional)")
	fs.StringVar(&cfg.AI.Region, "ai-region", "", "GCP region for Gemini")
	fs.StringVar(&cfg.AI.Model, "ai-model", cfg.AI.Model, "Gemini model")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Entity extractors run in parallel")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pvp-extract [options] <file.pdf>\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, "", errors.New("exactly one PDF path is required")
	}
	if opts.format != "json" && opts.format != "text" {
		return nil, "", fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, fs.Arg(0), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, path, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := logging.New(opts.cfg, stderr)
	p, closePipeline, err := pipeline.FromConfig(ctx, opts.cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer closePipeline()

	res, runErr := p.Run(ctx, path)
	if runErr != nil && res.Degenerate {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		fmt.Fprintln(stderr, pipeline.Message(res))
		return exitRejected
	}

	if opts.xlsx != "" {
		if err := export.WriteFile(res, opts.xlsx, logger); err != nil {
			fmt.Fprintf(stderr, "Error writing workbook: %v\n", err)
			return exitFailure
		}
	}

	if err := output(stdout, opts.format, res); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return exitFailure
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return exitFailure
	}
	return exitOK
}

func output(w io.Writer, format string, res *extract.ExtractionResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(w, pipeline.Message(res))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Product:      %s\n", res.ProductInfo.ProductName)
	fmt.Fprintf(w, "Type:         %s\n", res.ProductType)
	fmt.Fprintf(w, "Strength:     %s\n", res.ProductInfo.Strength)
	fmt.Fprintf(w, "Batch size:   %s\n", res.ProductInfo.BatchSize)
	fmt.Fprintf(w, "Pages:        %d\n", res.PageCount)

	entities := make([]string, 0, len(res.Strategies))
	for e := range res.Strategies {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	fmt.Fprintln(w, "\nStrategies:")
	for _, e := range entities {
		fmt.Fprintf(w, "  %-18s %s\n", e, res.Strategies[e])
	}

	if len(res.Statistics) > 0 {
		ids := make([]string, 0, len(res.Statistics))
		for id := range res.Statistics {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, "\nStatistics:")
		for _, id := range ids {
			s := res.Statistics[id]
			fmt.Fprintf(w, "  %-18s mean=%g std=%g n=%d\n", id, s.Mean, s.Std, s.Count)
		}
	}
	return nil
}
