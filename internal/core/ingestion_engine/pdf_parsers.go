package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Parser names accepted by ParsersByName.
const (
	ParserLedongthuc = "ledongthuc"
	ParserPdfcpu     = "pdfcpu"
	ParserDocconv    = "docconv"
)

// ParsersByName builds the parser chain named in configuration, in order.
func ParsersByName(names []string) ([]PdfParser, error) {
	var out []PdfParser
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "":
			continue
		case ParserLedongthuc:
			out = append(out, LedongthucParser{})
		case ParserPdfcpu:
			out = append(out, PdfcpuParser{})
		case ParserDocconv:
			out = append(out, DocconvParser{})
		default:
			return nil, fmt.Errorf("unknown pdf parser %q", n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pdf parsers configured")
	}
	return out, nil
}

// LedongthucParser reads page text and the trailer Info dictionary with ledongthuc/pdf.
type LedongthucParser struct{}

func (LedongthucParser) Name() string { return ParserLedongthuc }

func (LedongthucParser) Parse(ctx context.Context, data []byte) (*ParsedPDF, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	info := map[string]string{}
	infoDict := reader.Trailer().Key("Info")
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		if v := strings.TrimSpace(infoDict.Key(key).Text()); v != "" {
			info[key] = v
		}
	}
	return &ParsedPDF{Text: b.String(), NumPages: numPages, Info: info}, nil
}

// PdfcpuParser validates and repairs the container with pdfcpu, then scans each
// decoded page content stream for text-show operators.
type PdfcpuParser struct{}

func (PdfcpuParser) Name() string { return ParserPdfcpu }

func (PdfcpuParser) Parse(ctx context.Context, data []byte) (*ParsedPDF, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var b strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d content: %w", pageNr, err)
		}
		b.WriteString(contentStreamText(content))
		b.WriteString("\n")
	}
	return &ParsedPDF{Text: b.String(), NumPages: pctx.PageCount}, nil
}

// DocconvParser delegates to docconv, which shells out to poppler's pdftotext
// and pdfinfo.
type DocconvParser struct{}

func (DocconvParser) Name() string { return ParserDocconv }

func (DocconvParser) Parse(_ context.Context, data []byte) (*ParsedPDF, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	pages, _ := strconv.Atoi(strings.TrimSpace(res.Meta["Pages"]))
	info := map[string]string{}
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		if v := strings.TrimSpace(res.Meta[key]); v != "" {
			info[key] = v
		}
	}
	return &ParsedPDF{Text: res.Body, NumPages: pages, Info: info}, nil
}

var (
	showTextRe  = regexp.MustCompile(`(?s)\[(.*?)\]\s*TJ|\(((?:\\.|[^\\)])*)\)\s*(?:Tj|'|")`)
	tjLiteralRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
)

// contentStreamText pulls the strings shown by Tj, TJ, ' and " operators out of
// a decoded content stream.
func contentStreamText(content []byte) string {
	var parts []string
	for _, m := range showTextRe.FindAllSubmatch(content, -1) {
		if m[1] != nil {
			var sb strings.Builder
			for _, lit := range tjLiteralRe.FindAllSubmatch(m[1], -1) {
				sb.WriteString(decodeLiteral(lit[1]))
			}
			parts = append(parts, sb.String())
			continue
		}
		parts = append(parts, decodeLiteral(m[2]))
	}
	return strings.Join(parts, " ")
}

// decodeLiteral resolves the escape sequences of a PDF string literal body.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
