package core

import (
	"context"
	"strings"
)

// DocumentKind selects the extraction cascade for an upload.
type DocumentKind string

const (
	KindPDF   DocumentKind = "pdf"
	KindImage DocumentKind = "image"
)

// ExtractionMethod names the strategy that produced an ExtractionResult.
type ExtractionMethod string

const (
	MethodStructuredPDF ExtractionMethod = "structured_pdf"
	MethodRawStreamPDF  ExtractionMethod = "raw_stream_pdf"
	MethodOCR           ExtractionMethod = "ocr"
)

// supportedTypes are the MIME types accepted at the upload boundary.
var supportedTypes = map[string]DocumentKind{
	"application/pdf": KindPDF,
	"image/jpeg":      KindImage,
	"image/jpg":       KindImage,
	"image/png":       KindImage,
	"image/gif":       KindImage,
	"image/bmp":       KindImage,
	"image/tiff":      KindImage,
	"image/webp":      KindImage,
}

// KindFromMIME maps a declared MIME type to a DocumentKind. ok is false for
// unsupported types.
func KindFromMIME(mime string) (kind DocumentKind, ok bool) {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	kind, ok = supportedTypes[mime]
	return kind, ok
}

// DocumentBytes is an upload as handed to the extraction pipeline.
type DocumentBytes struct {
	Data         []byte
	Kind         DocumentKind
	MIMEType     string
	OriginalName string
	Size         int64
}

// ExtractionResult is the text recovered from a document. Later stages build
// new values instead of editing one in place.
type ExtractionResult struct {
	Text          string            `json:"text"`
	Method        ExtractionMethod  `json:"method"`
	Pages         int               `json:"pages,omitempty"`
	Confidence    *float64          `json:"confidence,omitempty"`
	TextLength    int               `json:"textLength"`
	WordCount     int               `json:"wordCount"`
	IsValid       bool              `json:"isValid"`
	QualityReason string            `json:"qualityReason,omitempty"`
	Info          map[string]string `json:"info,omitempty"`
}

// Extractor is one strategy of the extraction cascade.
type Extractor interface {
	Method() ExtractionMethod
	Extract(ctx context.Context, doc DocumentBytes) (*ExtractionResult, error)
}

// Remediable errors carry a user facing remediation message.
type Remediable interface {
	error
	Remediation() string
	RetrySuggested() bool
}
