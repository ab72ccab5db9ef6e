package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/textclean"
)

// MinFinalTextLength is the only hard stop of the extraction path.
const MinFinalTextLength = 10

// Orchestrator runs the extraction cascade for each document kind and applies
// the quality gate to the result.
type Orchestrator struct {
	strategies map[core.DocumentKind][]core.Extractor
	logger     *slog.Logger
}

func NewOrchestrator(logger *slog.Logger, pdf, image []core.Extractor) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		strategies: map[core.DocumentKind][]core.Extractor{
			core.KindPDF:   pdf,
			core.KindImage: image,
		},
		logger: logger,
	}
}

// ExtractSource drains src and runs Extract on its bytes. src is always closed.
func (o *Orchestrator) ExtractSource(ctx context.Context, src core.ByteSource, originalName, mime string) (*core.ExtractionResult, error) {
	doc, err := core.ReadDocument(src, originalName, mime, o.logger)
	if err != nil {
		return nil, err
	}
	return o.Extract(ctx, doc)
}

// Extract returns the best text recovered from doc. Marginal text is annotated
// with guidance instead of rejected; only ErrInsufficientText and
// ErrAllExtractionMethodsFailed are returned.
func (o *Orchestrator) Extract(ctx context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error) {
	strategies := o.strategies[doc.Kind]
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedType, doc.Kind)
	}

	o.logger.Info("extraction started", "file", doc.OriginalName, "kind", doc.Kind, "bytes", doc.Size)
	res, err := o.cascade(ctx, doc, strategies)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(strings.TrimSpace(res.Text)) < MinFinalTextLength {
		return nil, newExtractionError(ErrInsufficientText, res.Method,
			fmt.Errorf("only %d characters extracted", res.TextLength))
	}

	verdict := textclean.Validate(res.Text)
	out := *res
	out.IsValid = verdict.IsValid
	out.QualityReason = string(verdict.Reason)
	if !verdict.IsValid {
		o.logger.Warn("extracted text failed quality gate",
			"file", doc.OriginalName, "method", res.Method, "reason", verdict.Reason,
			"chars", res.TextLength, "words", res.WordCount)
		if doc.Kind == core.KindPDF {
			out.Text = annotate(res.Text, doc.OriginalName, res)
		}
	}
	return &out, nil
}

// cascade folds over the strategies and returns the first usable result. A
// strategy that succeeds with minimal text hands over to the next one but is
// kept in case every later strategy fails.
func (o *Orchestrator) cascade(ctx context.Context, doc core.DocumentBytes, strategies []core.Extractor) (*core.ExtractionResult, error) {
	var (
		errs []error
		weak *core.ExtractionResult
	)
	for i, s := range strategies {
		res, err := s.Extract(ctx, doc)
		if err != nil {
			o.logger.Warn("extraction strategy failed", "file", doc.OriginalName, "method", s.Method(), "error", err)
			errs = append(errs, err)
			continue
		}
		last := i == len(strategies)-1
		if !last && isMinimal(res.Text) {
			o.logger.Info("minimal text, trying next strategy",
				"file", doc.OriginalName, "method", s.Method(), "words", res.WordCount)
			errs = append(errs, newExtractionError(errMinimalText, s.Method(),
				fmt.Errorf("%d meaningful words", res.WordCount)))
			if weak == nil || res.WordCount > weak.WordCount {
				weak = res
			}
			continue
		}
		return res, nil
	}
	if weak != nil {
		o.logger.Info("falling back to minimal text", "file", doc.OriginalName, "method", weak.Method)
		return weak, nil
	}
	return nil, newExtractionError(ErrAllExtractionMethodsFailed, "", errors.Join(errs...))
}

func isMinimal(text string) bool {
	return textclean.CountMeaningfulWords(text) < textclean.MinMeaningfulWords || textclean.IsMostlySpecialChars(text)
}

func annotate(text, name string, res *core.ExtractionResult) string {
	var b strings.Builder
	b.WriteString(text)
	fmt.Fprintf(&b, "\n\nDocument: %s\n", name)
	fmt.Fprintf(&b, "Pages: %d\n", res.Pages)
	fmt.Fprintf(&b, "Extracted Characters: %d\n", res.TextLength)
	fmt.Fprintf(&b, "Meaningful Words: %d\n\n", res.WordCount)
	b.WriteString("Note: This appears to be a scanned PDF or contains minimal text. For better results:\n")
	b.WriteString("• Convert scanned PDFs to JPG/PNG images and upload those\n")
	b.WriteString("• Ensure text-based PDFs have selectable text\n")
	b.WriteString("• Check if the PDF is password protected")
	return b.String()
}
