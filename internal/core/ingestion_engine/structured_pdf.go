package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/textclean"
)

// ParsedPDF is what a PdfParser recovers from a PDF container.
type ParsedPDF struct {
	Text     string
	NumPages int
	Info     map[string]string
}

// PdfParser reads the object model of a PDF.
type PdfParser interface {
	Name() string
	Parse(ctx context.Context, data []byte) (*ParsedPDF, error)
}

// StructuredPdfExtractor tries its parsers in order and keeps the first that
// can read the container.
type StructuredPdfExtractor struct {
	parsers []PdfParser
	logger  *slog.Logger
}

var _ core.Extractor = (*StructuredPdfExtractor)(nil)

func NewStructuredPdfExtractor(logger *slog.Logger, parsers ...PdfParser) *StructuredPdfExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredPdfExtractor{parsers: parsers, logger: logger}
}

func (e *StructuredPdfExtractor) Method() core.ExtractionMethod { return core.MethodStructuredPDF }

// Extract fails with ErrStructuredParse only when no parser can read the container.
func (e *StructuredPdfExtractor) Extract(ctx context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error) {
	if len(e.parsers) == 0 {
		return nil, newExtractionError(ErrStructuredParse, e.Method(), errors.New("no pdf parsers configured"))
	}

	var errs []error
	for _, p := range e.parsers {
		parsed, err := safeParse(ctx, p, doc.Data)
		if err != nil {
			e.logger.Warn("pdf parser failed", "parser", p.Name(), "file", doc.OriginalName, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		text := textclean.Clean(parsed.Text)
		res := &core.ExtractionResult{
			Text:       text,
			Method:     e.Method(),
			Pages:      parsed.NumPages,
			TextLength: utf8.RuneCountInString(text),
			WordCount:  textclean.CountMeaningfulWords(text),
			Info:       parsed.Info,
		}
		e.logger.Info("structured pdf parse complete",
			"parser", p.Name(), "file", doc.OriginalName, "pages", res.Pages,
			"chars", res.TextLength, "words", res.WordCount)
		e.logger.Debug("structured pdf sample", "sample", textclean.MeaningfulSample(text, 200))
		return res, nil
	}
	return nil, newExtractionError(ErrStructuredParse, e.Method(), errors.Join(errs...))
}

// safeParse turns parser panics into errors. Malformed cross-reference data
// panics inside some PDF libraries.
func safeParse(ctx context.Context, p PdfParser, data []byte) (parsed *ParsedPDF, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	parsed, err = p.Parse(ctx, data)
	if err == nil && parsed == nil {
		err = errors.New("parser returned no result")
	}
	return parsed, err
}
