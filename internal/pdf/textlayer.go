package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/mcp-pvp-extractor/internal/cascade"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/ocr"
)

// Text layer strategies, recorded per page.
const (
	StrategyNative    = "native"
	StrategyNativeOCR = "native+ocr"
)

// PageText is the text recovered from one page.
type PageText struct {
	Number   int    `json:"number"`
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
}

// Text is the concatenated text layer of a document.
type Text struct {
	Content   string     `json:"content"`
	PageCount int        `json:"page_count"`
	OCRPages  []int      `json:"ocr_pages"`
	Pages     []PageText `json:"pages"`
}

// DefaultMinTextLength is the number of native characters below which a
// page is sent to OCR.
const DefaultMinTextLength = 60

// TextOptions tunes the OCR fallback. A zero MinTextLength selects
// DefaultMinTextLength.
type TextOptions struct {
	MinTextLength int
	PageTimeout   time.Duration
}

// pageSource abstracts the parsed document so tests can supply pages directly.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
	Close() error
}

type openFunc func(path string) (pageSource, error)

// TextExtractor reads native page text and falls back to OCR for pages
// that carry too little of it.
type TextExtractor struct {
	engine ocr.Engine
	opts   TextOptions
	logger *slog.Logger
	open   openFunc
}

// NewTextExtractor creates a text extractor. A nil engine disables OCR.
func NewTextExtractor(engine ocr.Engine, opts TextOptions, logger *slog.Logger) *TextExtractor {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = DefaultMinTextLength
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{engine: engine, opts: opts, logger: logger, open: openLedongthuc}
}

var errShortText = errors.New("native text below threshold")

// Extract returns the text of every page. It fails only when the file cannot
// be opened as a PDF; page-level problems are logged and the page is kept
// with whatever text was recovered. Cancellation stops the page loop and
// returns the pages read so far together with ctx.Err().
func (e *TextExtractor) Extract(ctx context.Context, path string) (*Text, error) {
	src, err := e.open(path)
	if err != nil {
		return nil, &Error{Kind: KindCorruptedData, Op: "open", Path: path, Err: err}
	}
	defer src.Close()

	out := &Text{PageCount: src.NumPage(), OCRPages: []int{}, Pages: []PageText{}}
	var parts []string

	for n := 1; n <= out.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			out.Content = strings.Join(parts, "\n")
			return out, err
		}

		page := e.extractPage(ctx, src, path, n)
		if page.Strategy == StrategyNativeOCR {
			out.OCRPages = append(out.OCRPages, n)
		}
		out.Pages = append(out.Pages, page)
		if page.Text != "" {
			parts = append(parts, page.Text)
		}
	}

	out.Content = strings.Join(parts, "\n")
	return out, nil
}

func (e *TextExtractor) extractPage(ctx context.Context, src pageSource, path string, n int) PageText {
	native, err := src.PageText(n)
	if err != nil {
		e.logger.Warn("native text extraction failed", "path", path, "page", n, "error", err)
		native = ""
	}

	res := cascade.First(ctx, nil,
		cascade.Attempt[string]{
			Name: StrategyNative,
			Run: func(context.Context) (string, error) {
				if e.engine == nil || utf8.RuneCountInString(strings.TrimSpace(native)) >= e.opts.MinTextLength {
					return native, nil
				}
				return "", errShortText
			},
		},
		cascade.Attempt[string]{
			Name: StrategyNativeOCR,
			Run: func(ctx context.Context) (string, error) {
				return joinOCR(native, e.recognize(ctx, path, n)), nil
			},
		},
	)
	if !res.Accepted() {
		return PageText{Number: n, Text: native, Strategy: StrategyNative}
	}
	return PageText{Number: n, Text: res.Value, Strategy: res.Strategy}
}

// joinOCR appends OCR text to the native text of a page on its own line.
func joinOCR(native, recognized string) string {
	switch {
	case recognized == "":
		return native
	case strings.TrimSpace(native) == "":
		return recognized
	default:
		return native + "\n" + recognized
	}
}

// recognize runs OCR for one page under the page timeout. Failures are
// logged and yield an empty string.
func (e *TextExtractor) recognize(ctx context.Context, path string, n int) string {
	pctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	text, err := e.engine.Recognize(pctx, path, n)
	if err != nil {
		kind := KindOCR
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		e.logger.Warn("ocr failed", "error", &Error{Kind: kind, Op: "ocr", Path: path, Page: n, Err: err})
		return ""
	}
	return text
}

type ledongthucSource struct {
	closer interface{ Close() error }
	reader *pdf.Reader
}

func openLedongthuc(path string) (src pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &ledongthucSource{closer: f, reader: r}, nil
}

func (s *ledongthucSource) NumPage() int {
	return s.reader.NumPage()
}

func (s *ledongthucSource) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parser panic: %v", r)
		}
	}()

	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (s *ledongthucSource) Close() error {
	return s.closer.Close()
}
