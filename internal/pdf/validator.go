package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DocumentInfo describes a PDF that passed validation.
type DocumentInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	PageCount int    `json:"page_count"`
	Version   string `json:"version,omitempty"`
	Encrypted bool   `json:"encrypted"`
}

// Validator checks that a path points at a readable PDF within size limits.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// Inspect validates the file and reads its page count with pdfcpu in relaxed
// mode. Every failure is an *Error of kind KindInvalidInput or
// KindCorruptedData.
func (v *Validator) Inspect(path string) (*DocumentInfo, error) {
	fail := func(kind ErrorKind, err error) (*DocumentInfo, error) {
		return nil, &Error{Kind: kind, Op: "inspect", Path: path, Err: err}
	}

	if strings.TrimSpace(path) == "" {
		return fail(KindInvalidInput, ErrEmptyPath)
	}

	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fail(KindInvalidInput, ErrNotFound)
	}
	if err != nil {
		return fail(KindInvalidInput, fmt.Errorf("cannot access file: %w", err))
	}
	if fi.IsDir() {
		return fail(KindInvalidInput, ErrIsDir)
	}
	if fi.Size() == 0 {
		return fail(KindInvalidInput, ErrEmptyFile)
	}
	if v.maxFileSize > 0 && fi.Size() > v.maxFileSize {
		return fail(KindInvalidInput, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, fi.Size(), v.maxFileSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(KindInvalidInput, err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, _ := io.ReadFull(f, head)
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return fail(KindInvalidInput, ErrNotPDF)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(KindInvalidInput, err)
	}

	info, err := readContext(f)
	if err != nil {
		return fail(KindCorruptedData, err)
	}
	info.Path = path
	info.Size = fi.Size()
	return info, nil
}

func readContext(rs io.ReadSeeker) (info *DocumentInfo, err error) {
	// pdfcpu panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	return &DocumentInfo{
		PageCount: ctx.PageCount,
		Version:   ctx.HeaderVersion.String(),
		Encrypted: ctx.Encrypt != nil,
	}, nil
}
