package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/a3tai/mcp-pvp-extractor/internal/ai"
	"github.com/a3tai/mcp-pvp-extractor/internal/cascade"
	"github.com/a3tai/mcp-pvp-extractor/internal/clean"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf"
)

const (
	DefaultExcerptLimit = 4000
	DefaultAITimeout    = 30 * time.Second

	productNameScanLines = 30
)

var (
	strengthRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|g|ml|mcg|%|iu)(?:\s*/\s*(ml|g|tablet|capsule))?`)
	batchSizeRe = regexp.MustCompile(`(?i)batch\s*size\s*[:\-]?\s*(\d[\d,. ]*\s*(?:(?:vials|tablets|capsules|bottles|units|litres|liters|kg|ml|l)\b)?)`)
	packSizeRe  = regexp.MustCompile(`(?i)pack\s*size[:\s]*([^\n]+)`)
	siteRe      = regexp.MustCompile(`(?i)(?:manufacturing\s+site|manufacturing\s+location|manufactured\s+(?:at|by))\s*[:\-]?\s*([^\n]+)`)

	// dosage keywords in lookup order with the form they imply
	dosageForms = []struct{ keyword, form string }{
		{"injection", "Injection"},
		{"tablet", "Tablet"},
		{"capsule", "Capsule"},
		{"syrup", "Syrup"},
		{"suspension", "Suspension"},
		{"vial", "Injection"},
	}

	errEmptyAIResult = errors.New("model returned no product fields")
)

const productPrompt = `Extract the following product information from this Process Validation Protocol:

Text:
%s

Return ONLY a JSON object with the fields:
{"product_name": "...", "strength": "...", "dosage_form": "...", "batch_size": "...", "pack_size": "...", "manufacturing_site": "..."}`

// ProductExtractor reads ProductInfo with an optional AI client and a
// regex fallback that is always available.
type ProductExtractor struct {
	client       ai.Client
	excerptLimit int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewProductExtractor creates an extractor. A nil client means regex only.
func NewProductExtractor(client ai.Client, excerptLimit int, timeout time.Duration, logger *slog.Logger) *ProductExtractor {
	if excerptLimit <= 0 {
		excerptLimit = DefaultExcerptLimit
	}
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductExtractor{client: client, excerptLimit: excerptLimit, timeout: timeout, logger: logger}
}

// Extract never fails. AI values win where present; blanks are filled from
// the regex pass. Any AI failure yields the regex result unchanged.
func (p *ProductExtractor) Extract(ctx context.Context, text string) (ProductInfo, Strategy) {
	fallback := ProductFromText(text)
	if p.client == nil {
		return fallback, regexStrategy(fallback)
	}

	res := cascade.First(ctx, nil,
		cascade.Attempt[ProductInfo]{Name: string(StrategyAI), Run: func(ctx context.Context) (ProductInfo, error) {
			info, err := p.fromAI(ctx, text)
			if err != nil {
				return ProductInfo{}, err
			}
			return mergeProductInfo(info, fallback), nil
		}},
		cascade.Attempt[ProductInfo]{Name: string(StrategyRegex), Run: func(context.Context) (ProductInfo, error) {
			return fallback, nil
		}},
	)
	for _, err := range res.Errors {
		p.logger.Warn("ai product extraction failed, using regex", "error", &pdf.Error{Kind: pdf.KindAI, Op: "product_info", Err: err})
	}
	if !res.Accepted() {
		return fallback, regexStrategy(fallback)
	}
	if res.Strategy == string(StrategyRegex) {
		return res.Value, regexStrategy(res.Value)
	}
	return res.Value, StrategyAI
}

func (p *ProductExtractor) fromAI(ctx context.Context, text string) (ProductInfo, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reply, err := p.client.Generate(actx, fmt.Sprintf(productPrompt, excerpt(text, p.excerptLimit)))
	if err != nil {
		return ProductInfo{}, err
	}
	fields, err := ai.DecodeProductInfo(reply)
	if err != nil {
		return ProductInfo{}, err
	}

	info := ProductInfo{
		ProductName:       clean.CleanDefault(fields["product_name"]),
		Strength:          clean.CleanDefault(fields["strength"]),
		DosageForm:        clean.CleanDefault(fields["dosage_form"]),
		BatchSize:         clean.CleanDefault(fields["batch_size"]),
		PackSize:          clean.CleanDefault(fields["pack_size"]),
		ManufacturingSite: clean.CleanDefault(fields["manufacturing_site"]),
	}
	if info == (ProductInfo{}) {
		return ProductInfo{}, errEmptyAIResult
	}
	return info, nil
}

// ProductFromText is the regex pass over the document text.
func ProductFromText(text string) ProductInfo {
	var info ProductInfo

	lines := nonEmptyLines(text)
	if len(lines) > productNameScanLines {
		lines = lines[:productNameScanLines]
	}
scan:
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, d := range dosageForms {
			if strings.Contains(lower, d.keyword) {
				info.ProductName = clean.CleanDefault(line)
				info.DosageForm = d.form
				break scan
			}
		}
	}

	if m := strengthRe.FindString(text); m != "" {
		info.Strength = clean.CleanDefault(m)
	}
	if m := batchSizeRe.FindStringSubmatch(text); m != nil {
		info.BatchSize = clean.CleanDefault(strings.TrimRight(m[1], ",. "))
	}
	if m := packSizeRe.FindStringSubmatch(text); m != nil {
		info.PackSize = clean.CleanDefault(m[1])
	}
	if m := siteRe.FindStringSubmatch(text); m != nil {
		info.ManufacturingSite = clean.CleanDefault(m[1])
	}
	return info
}

func mergeProductInfo(primary, fill ProductInfo) ProductInfo {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return ProductInfo{
		ProductName:       pick(primary.ProductName, fill.ProductName),
		Strength:          pick(primary.Strength, fill.Strength),
		DosageForm:        pick(primary.DosageForm, fill.DosageForm),
		BatchSize:         pick(primary.BatchSize, fill.BatchSize),
		PackSize:          pick(primary.PackSize, fill.PackSize),
		ManufacturingSite: pick(primary.ManufacturingSite, fill.ManufacturingSite),
	}
}

func regexStrategy(info ProductInfo) Strategy {
	if info == (ProductInfo{}) {
		return StrategyNone
	}
	return StrategyRegex
}

// excerpt returns at most n runes of text.
func excerpt(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
