package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Digesta/internal/config"
	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/llm"
	"github.com/markdave123-py/Digesta/internal/services"
)

type stubExtractor struct {
	got *core.DocumentBytes
}

func (s *stubExtractor) ExtractSource(_ context.Context, src core.ByteSource, name, mime string) (*core.ExtractionResult, error) {
	doc, err := core.ReadDocument(src, name, mime, nil)
	if err != nil {
		return nil, err
	}
	s.got = &doc
	return &core.ExtractionResult{Text: "Extracted body text", Method: core.MethodOCR, TextLength: 19, WordCount: 3}, nil
}

type stubSummarizer struct {
	got string
	err error
}

func (s *stubSummarizer) Summarize(_ context.Context, text string, _ llm.Length) (*llm.SummarizationOutcome, error) {
	s.got = text
	if s.err != nil {
		return nil, s.err
	}
	return &llm.SummarizationOutcome{SummaryText: "A short summary.", ModelName: "test-model"}, nil
}

func withStubs(t *testing.T, ext *stubExtractor, sum *stubSummarizer) {
	t.Helper()
	origCfg, origExt, origSum := loadConfig, newExtractor, newSummarizer
	loadConfig = func() (*config.Config, error) { return &config.Config{}, nil }
	newExtractor = func(*config.Config, *slog.Logger) (sourceExtractor, error) { return ext, nil }
	newSummarizer = func(context.Context, *config.Config, *slog.Logger) (services.Summarizer, func(), error) {
		return sum, func() {}, nil
	}
	t.Cleanup(func() {
		loadConfig, newExtractor, newSummarizer = origCfg, origExt, origSum
		summaryLength = "medium"
		rootCmd.SetArgs(nil)
	})
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestExtractCmd_PrintsJSON(t *testing.T) {
	ext := &stubExtractor{}
	withStubs(t, ext, &stubSummarizer{})

	path := writeFile(t, "scan.png", []byte("\x89PNG\r\n\x1a\nrest"))
	out, _, err := execute(t, "extract", path)
	require.NoError(t, err)

	var res core.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Extracted body text", res.Text)
	require.NotNil(t, ext.got)
	assert.Equal(t, core.KindImage, ext.got.Kind)
	assert.Equal(t, "scan.png", ext.got.OriginalName)
}

func TestExtractCmd_UnsupportedType(t *testing.T) {
	withStubs(t, &stubExtractor{}, &stubSummarizer{})

	path := writeFile(t, "notes.docx", []byte("PK\x03\x04 not a pdf"))
	_, _, err := execute(t, "extract", path)
	require.ErrorIs(t, err, core.ErrUnsupportedType)
}

func TestSummarizeCmd_PlainText(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{}
	withStubs(t, ext, sum)

	path := writeFile(t, "notes.txt", []byte("Plain text notes about the launch plan."))
	out, _, err := execute(t, "summarize", path, "--length", "short")
	require.NoError(t, err)
	assert.Contains(t, out, "A short summary.")
	assert.Equal(t, "Plain text notes about the launch plan.", sum.got)
	assert.Nil(t, ext.got)
}

func TestSummarizeCmd_FallbackNotice(t *testing.T) {
	sum := &stubSummarizer{err: &llm.SummarizationError{Kind: llm.ErrServiceUnavailable}}
	withStubs(t, &stubExtractor{}, sum)

	path := writeFile(t, "scan.png", []byte("\x89PNG\r\n\x1a\nrest"))
	_, errOut, err := execute(t, "summarize", path)
	require.NoError(t, err)
	assert.Equal(t, "Extracted body text", sum.got)
	assert.Contains(t, errOut, llm.FallbackNotice)
}

func TestSummarizeCmd_InvalidLength(t *testing.T) {
	withStubs(t, &stubExtractor{}, &stubSummarizer{})

	path := writeFile(t, "notes.txt", []byte("Some text worth summarizing here."))
	_, _, err := execute(t, "summarize", path, "--length", "huge")
	require.ErrorIs(t, err, services.ErrInvalidInput)
}
