package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/textclean"
)

// Encoding is one of the byte interpretations tried by the raw-stream scan.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingLatin1 Encoding = "latin1"
	EncodingBinary Encoding = "binary"
	EncodingRaw    Encoding = "raw"
)

const (
	minCandidateLength = 50
	wordsPerPage       = 300
)

var scanOrder = []Encoding{EncodingUTF8, EncodingLatin1, EncodingBinary}

var (
	parenLiteralRe = regexp.MustCompile(`\((.*?)\)`)
	angleLiteralRe = regexp.MustCompile(`<([^>]+)>`)
	escapedCharRe  = regexp.MustCompile(`\\(.)`)
	streamBlockRe  = regexp.MustCompile(`(?i)stream[\s\S]*?endstream`)
	textBlockRe    = regexp.MustCompile(`(?i)BT[\s\S]*?ET`)
	textMarkerRe   = regexp.MustCompile(`BT|ET`)
	blockLiteralRe = regexp.MustCompile(`\(([^)]+)\)`)
	alphaRunRe     = regexp.MustCompile(`[a-zA-Z]{3,}`)
)

// RawStreamPdfExtractor recovers text from PDFs whose container the structured
// parsers reject by scanning the raw bytes for string literals and text blocks.
type RawStreamPdfExtractor struct {
	logger *slog.Logger
}

var _ core.Extractor = (*RawStreamPdfExtractor)(nil)

func NewRawStreamPdfExtractor(logger *slog.Logger) *RawStreamPdfExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RawStreamPdfExtractor{logger: logger}
}

func (e *RawStreamPdfExtractor) Method() core.ExtractionMethod { return core.MethodRawStreamPDF }

// Extract fails only when nothing readable at all was recovered.
func (e *RawStreamPdfExtractor) Extract(ctx context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, newExtractionError(ErrRawStreamExtraction, e.Method(), err)
	}

	text, enc := BestRawText(doc.Data)
	if text == "" {
		return nil, newExtractionError(ErrRawStreamExtraction, e.Method(), errors.New("no readable text in byte stream"))
	}

	res := &core.ExtractionResult{
		Text:       text,
		Method:     e.Method(),
		Pages:      estimatePages(text),
		TextLength: utf8.RuneCountInString(text),
		WordCount:  textclean.CountMeaningfulWords(text),
	}
	e.logger.Info("raw stream extraction complete",
		"file", doc.OriginalName, "encoding", enc, "chars", res.TextLength, "words", res.WordCount)
	e.logger.Debug("raw stream sample", "sample", textclean.MeaningfulSample(text, 200))
	return res, nil
}

// BestRawText scans data under every encoding and returns the longest cleaned
// candidate longer than 50 characters, ties going to the earlier encoding.
// When none qualifies it falls back to scraping alphabetic runs.
func BestRawText(data []byte) (string, Encoding) {
	best, bestEnc := "", Encoding("")
	for _, enc := range scanOrder {
		text := ScanEncoding(data, enc)
		if utf8.RuneCountInString(text) <= minCandidateLength {
			continue
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(best) {
			best, bestEnc = text, enc
		}
	}
	if bestEnc != "" {
		return best, bestEnc
	}
	return rawScrape(data), EncodingRaw
}

// ScanEncoding decodes data under enc and returns the cleaned concatenation of
// every literal and text block found.
func ScanEncoding(data []byte, enc Encoding) string {
	content := decode(data, enc)
	var b strings.Builder

	for _, m := range parenLiteralRe.FindAllStringSubmatch(content, -1) {
		b.WriteString(escapedCharRe.ReplaceAllString(m[1], "$1"))
		b.WriteByte(' ')
	}
	for _, m := range angleLiteralRe.FindAllStringSubmatch(content, -1) {
		b.WriteString(escapedCharRe.ReplaceAllString(m[1], "$1"))
		b.WriteByte(' ')
	}
	for _, stream := range streamBlockRe.FindAllString(content, -1) {
		for _, block := range textBlockRe.FindAllString(stream, -1) {
			block = textMarkerRe.ReplaceAllString(block, "")
			b.WriteString(blockLiteralRe.ReplaceAllString(block, "$1"))
			b.WriteByte(' ')
		}
	}
	return textclean.StripJunk(b.String())
}

func decode(data []byte, enc Encoding) string {
	switch enc {
	case EncodingUTF8:
		return strings.ToValidUTF8(string(data), "�")
	case EncodingLatin1:
		return latin1(data)
	default:
		return string(data)
	}
}

func latin1(data []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func rawScrape(data []byte) string {
	return strings.Join(alphaRunRe.FindAllString(latin1(data), -1), " ")
}

func estimatePages(text string) int {
	words := len(strings.Fields(text))
	return int(math.Max(1, math.Ceil(float64(words)/wordsPerPage)))
}
