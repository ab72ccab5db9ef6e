package ingestion_engine

import (
	"errors"
	"fmt"

	"github.com/markdave123-py/Digesta/internal/core"
)

// Extraction error kinds. Only ErrInsufficientText and
// ErrAllExtractionMethodsFailed reach callers of the orchestrator; the rest are
// absorbed by the cascade and show up as causes.
var (
	ErrStructuredParse            = errors.New("structured pdf parse failed")
	ErrRawStreamExtraction        = errors.New("raw stream pdf extraction failed")
	ErrOcr                        = errors.New("ocr recognition failed")
	ErrInsufficientText           = errors.New("insufficient text extracted")
	ErrAllExtractionMethodsFailed = errors.New("all extraction methods failed")

	errMinimalText = errors.New("minimal text extracted")
)

var remediations = map[error]string{
	ErrStructuredParse:     "The PDF structure could not be read. Try re-saving or re-exporting the PDF.",
	ErrRawStreamExtraction: "No readable text was found in the PDF content streams.",
	ErrOcr:                 "Text recognition failed on this image. Try a clearer, higher resolution image.",
	ErrInsufficientText: "Could not extract sufficient text from the file. " +
		"If this is a scanned PDF, convert its pages to JPG or PNG images and upload those instead.",
	ErrAllExtractionMethodsFailed: "Unable to extract text from this file. " +
		"Make sure the PDF is not password protected and has selectable text, or upload a clear image of the document.",
}

// ExtractionError is a typed extraction failure. It unwraps to both its kind
// and its cause.
type ExtractionError struct {
	Kind   error
	Method core.ExtractionMethod
	Cause  error
}

var _ core.Remediable = (*ExtractionError)(nil)

func newExtractionError(kind error, method core.ExtractionMethod, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Method: method, Cause: cause}
}

func (e *ExtractionError) Error() string {
	msg := e.Kind.Error()
	if e.Method != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Method)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func (e *ExtractionError) Remediation() string {
	if msg, ok := remediations[e.Kind]; ok {
		return msg
	}
	return "Text extraction failed."
}

// RetrySuggested is false for every extraction failure: the same bytes fail
// the same way.
func (e *ExtractionError) RetrySuggested() bool { return false }
