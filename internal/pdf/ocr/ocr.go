// Package ocr recognizes text on scanned PDF pages by rendering them to PNG
// with pdftoppm and running tesseract over the image.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Engine recognizes the text of one page. An empty string is a valid result.
type Engine interface {
	Recognize(ctx context.Context, pdfPath string, page int) (string, error)
}

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Options configures the Tesseract engine.
type Options struct {
	DPI       int
	Language  string
	Tesseract string
	Pdftoppm  string
	// TempDir is the parent for per-page scratch directories; empty means os.TempDir.
	TempDir string
}

// Tesseract is the Engine backed by the pdftoppm and tesseract binaries.
type Tesseract struct {
	opts   Options
	runner Runner
	logger *slog.Logger
}

// NewTesseract creates an engine. A nil runner uses ExecRunner and a nil
// logger uses slog.Default.
func NewTesseract(opts Options, runner Runner, logger *slog.Logger) *Tesseract {
	if opts.DPI <= 0 {
		opts.DPI = 200
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.Tesseract == "" {
		opts.Tesseract = "tesseract"
	}
	if opts.Pdftoppm == "" {
		opts.Pdftoppm = "pdftoppm"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{opts: opts, runner: runner, logger: logger}
}

// Recognize renders page (1-based) and returns the recognized text.
func (t *Tesseract) Recognize(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid page number %d", page)
	}

	dir, err := os.MkdirTemp(t.opts.TempDir, "pvp-ocr-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer RemoveAllWithRetry(dir, t.logger)

	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	_, err = t.runner.Run(ctx, t.opts.Pdftoppm,
		"-r", strconv.Itoa(t.opts.DPI), "-png",
		"-f", n, "-l", n, "-singlefile",
		pdfPath, prefix)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page, err)
	}

	out, err := t.runner.Run(ctx, t.opts.Tesseract, prefix+".png", "stdout", "-l", t.opts.Language)
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w", page, err)
	}

	t.logger.Debug("ocr page recognized", "page", page, "chars", len(out))
	return string(out), nil
}

// RetryDelay is the pause before the second cleanup attempt.
var RetryDelay = 500 * time.Millisecond

// RemoveAllWithRetry removes path, retrying once after RetryDelay. A second
// failure is logged and otherwise ignored.
func RemoveAllWithRetry(path string, logger *slog.Logger) {
	if err := os.RemoveAll(path); err == nil {
		return
	}
	time.Sleep(RetryDelay)
	if err := os.RemoveAll(path); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to remove temporary files", "path", path, "error", err)
	}
}
