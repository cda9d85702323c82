package pdf

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures inside the extraction pipeline.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindCorruptedData
	KindOCR
	KindTimeout
	KindTableDetection
	KindAI
)

// String returns the upper-case name used in log lines.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindCorruptedData:
		return "CORRUPTED_DATA"
	case KindOCR:
		return "OCR"
	case KindTimeout:
		return "TIMEOUT"
	case KindTableDetection:
		return "TABLE_DETECTION"
	case KindAI:
		return "AI"
	default:
		return "UNKNOWN"
	}
}

// Sentinel input errors.
var (
	ErrEmptyPath = errors.New("path cannot be empty")
	ErrNotFound  = errors.New("file does not exist")
	ErrIsDir     = errors.New("path is a directory")
	ErrEmptyFile = errors.New("file is empty")
	ErrTooLarge  = errors.New("file too large")
	ErrNotPDF    = errors.New("not a PDF file")
)

// Error carries the pipeline stage and page a failure belongs to.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Page int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Page > 0 {
		msg += fmt.Sprintf(" page %d", e.Page)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsInputFailure reports whether err means the document itself is unusable.
func IsInputFailure(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindInvalidInput || pe.Kind == KindCorruptedData
	}
	return false
}
