package ingestion_engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/textclean"
)

// OcrCharWhitelist restricts recognition to Latin letters, digits and common punctuation.
const OcrCharWhitelist = `ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 .,!?;:-()[]{}@#$%^&*+=/\"'`

// PSMAuto is tesseract's fully automatic page segmentation.
const PSMAuto = 3

// OcrOptions configures one recognition call.
type OcrOptions struct {
	Lang                    string
	PageSegMode             int
	CharWhitelist           string
	PreserveInterwordSpaces bool
	Progress                func(status string, progress float64)
}

// DefaultOcrOptions returns English, automatic segmentation, the whitelist and
// preserved interword spacing.
func DefaultOcrOptions() OcrOptions {
	return OcrOptions{
		Lang:                    "eng",
		PageSegMode:             PSMAuto,
		CharWhitelist:           OcrCharWhitelist,
		PreserveInterwordSpaces: true,
	}
}

// OcrWord is one recognized word.
type OcrWord struct {
	Text       string
	Confidence float64
}

// OcrOutput is the raw result of a recognition call.
type OcrOutput struct {
	Text       string
	Confidence float64
	Words      []OcrWord
}

// OcrEngine recognizes text in an encoded image.
type OcrEngine interface {
	Recognize(ctx context.Context, image []byte, opts OcrOptions) (*OcrOutput, error)
}

// TesseractEngine runs the tesseract CLI in TSV mode so text and per-word
// confidence come from a single invocation.
type TesseractEngine struct {
	Binary      string
	TessdataDir string
	Timeout     time.Duration
	Runner      Runner
	Logger      *slog.Logger
}

var _ OcrEngine = (*TesseractEngine)(nil)

func NewTesseractEngine(binary, tessdataDir string, timeout time.Duration, logger *slog.Logger) *TesseractEngine {
	if binary == "" {
		binary = "tesseract"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractEngine{
		Binary:      binary,
		TessdataDir: tessdataDir,
		Timeout:     timeout,
		Runner:      ExecRunner{Logger: logger},
		Logger:      logger,
	}
}

func (t *TesseractEngine) Recognize(ctx context.Context, img []byte, opts OcrOptions) (*OcrOutput, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	f, err := os.CreateTemp("", "digesta-ocr-*.img")
	if err != nil {
		return nil, fmt.Errorf("create ocr input: %w", err)
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			t.Logger.Warn("ocr temp file cleanup failed", "path", f.Name(), "error", err)
		}
	}()
	if _, err := f.Write(img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write ocr input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close ocr input: %w", err)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	progress("recognizing text", 0)
	stdout, stderr, err := t.Runner.Run(ctx, t.Binary, t.args(f.Name(), opts)...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(stderr)), 512))
	}
	progress("recognizing text", 1)

	return parseTSV(stdout)
}

func (t *TesseractEngine) args(input string, opts OcrOptions) []string {
	args := []string{input, "stdout"}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	if opts.Lang != "" {
		args = append(args, "-l", opts.Lang)
	}
	if opts.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(opts.PageSegMode))
	}
	if opts.CharWhitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+opts.CharWhitelist)
	}
	if opts.PreserveInterwordSpaces {
		args = append(args, "-c", "preserve_interword_spaces=1")
	}
	return append(args, "tsv")
}

// parseTSV rebuilds text from tesseract TSV output: words on a line are joined
// by spaces, lines by newlines and paragraphs by blank lines. Confidence is the
// mean over recognized words.
func parseTSV(out []byte) (*OcrOutput, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var (
		b        strings.Builder
		words    []OcrWord
		sum      float64
		lastLine string
		lastPar  string
		header   = true
	)
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}

		par := strings.Join(cols[1:4], ".")
		line := par + "." + cols[4]
		switch {
		case b.Len() == 0:
		case par != lastPar:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(text)
		lastPar, lastLine = par, line

		words = append(words, OcrWord{Text: text, Confidence: conf})
		sum += conf
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}

	res := &OcrOutput{Text: b.String(), Words: words}
	if len(words) > 0 {
		res.Confidence = sum / float64(len(words))
	}
	return res, nil
}

// OcrExtractor recognizes text in image uploads.
type OcrExtractor struct {
	engine OcrEngine
	pre    ImagePreprocessor
	logger *slog.Logger
}

var _ core.Extractor = (*OcrExtractor)(nil)

func NewOcrExtractor(engine OcrEngine, pre ImagePreprocessor, logger *slog.Logger) *OcrExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OcrExtractor{engine: engine, pre: pre, logger: logger}
}

func (e *OcrExtractor) Method() core.ExtractionMethod { return core.MethodOCR }

// Extract fails with ErrOcr only when the engine itself fails. Low confidence
// output is returned as is.
func (e *OcrExtractor) Extract(ctx context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error) {
	input := doc.Data
	if e.pre != nil {
		processed, err := e.pre.Preprocess(doc.Data)
		if err != nil {
			e.logger.Warn("image preprocessing failed, using original image", "file", doc.OriginalName, "error", err)
		} else {
			input = processed
		}
	}

	opts := DefaultOcrOptions()
	opts.Progress = func(status string, progress float64) {
		e.logger.Debug("ocr progress", "file", doc.OriginalName, "status", status, "progress", int(progress*100))
	}

	out, err := e.engine.Recognize(ctx, input, opts)
	if err != nil {
		return nil, newExtractionError(ErrOcr, e.Method(), err)
	}

	text := textclean.Clean(out.Text)
	conf := math.Round(math.Min(100, math.Max(0, out.Confidence))*10) / 10
	res := &core.ExtractionResult{
		Text:       text,
		Method:     e.Method(),
		Confidence: &conf,
		TextLength: utf8.RuneCountInString(text),
		WordCount:  textclean.CountMeaningfulWords(text),
	}
	e.logger.Info("ocr complete",
		"file", doc.OriginalName, "confidence", conf, "chars", res.TextLength, "words", res.WordCount)
	return res, nil
}
