package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/ingestion_engine"
	"github.com/markdave123-py/Digesta/internal/core/llm"
	"github.com/markdave123-py/Digesta/internal/models"
	"github.com/markdave123-py/Digesta/internal/services"
)

type stubExtractor struct {
	res *core.ExtractionResult
	err error
}

func (s stubExtractor) Extract(context.Context, core.DocumentBytes) (*core.ExtractionResult, error) {
	return s.res, s.err
}

type captureExtractor struct {
	got core.DocumentBytes
}

func (c *captureExtractor) Extract(_ context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error) {
	c.got = doc
	return &core.ExtractionResult{Text: "ok", Method: core.MethodRawStreamPDF, TextLength: 2, WordCount: 1}, nil
}

type stubSummarizer struct {
	out *llm.SummarizationOutcome
	err error
}

func (s stubSummarizer) Summarize(context.Context, string, llm.Length) (*llm.SummarizationOutcome, error) {
	return s.out, s.err
}

type stubStore struct {
	rows map[string]models.Summary
}

func (s *stubStore) SaveSummary(_ context.Context, sum *models.Summary) error {
	sum.ID = "sum-1"
	s.rows[sum.ID] = *sum
	return nil
}

func (s *stubStore) GetSummary(_ context.Context, id string) (*models.Summary, error) {
	if v, ok := s.rows[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (s *stubStore) ListSummaries(context.Context, models.SummaryQuery) ([]models.Summary, int, error) {
	out := []models.Summary{}
	for _, v := range s.rows {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (s *stubStore) DeleteSummary(_ context.Context, id string) (bool, error) {
	_, ok := s.rows[id]
	delete(s.rows, id)
	return ok, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) Close() error               { return nil }

type stubModels struct {
	checks int
}

func (*stubModels) CurrentModel() string      { return "gemini-2.0-flash" }
func (*stubModels) ServiceAvailable() bool    { return true }
func (*stubModels) AvailableModels() []string { return []string{"gemini-2.0-flash", "gemini-pro"} }

func (s *stubModels) TestModel(context.Context) bool {
	s.checks++
	return true
}

// stubArchive serves originals from memory.
type stubArchive struct {
	objects map[string][]byte
}

func (a *stubArchive) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	a.objects[key] = data
	return "mem://" + key, nil
}

func (a *stubArchive) DeleteFile(_ context.Context, key string) error {
	delete(a.objects, key)
	return nil
}

func (a *stubArchive) GetFile(_ context.Context, key string) ([]byte, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return data, nil
}

func newRouter(ext services.DocumentExtractor, sum services.Summarizer, store core.SummaryStore) http.Handler {
	return newArchiveRouter(ext, sum, store, nil, &stubModels{})
}

func newArchiveRouter(
	ext services.DocumentExtractor,
	sum services.Summarizer,
	store core.SummaryStore,
	archive core.ObjectClient,
	status ModelStatus,
) http.Handler {
	docs := NewDocumentHandler(services.NewDocumentService(ext, nil, nil), 1<<20, nil)
	svc := services.NewSummaryService(sum, store, nil, archive, nil)
	summaries := NewSummaryHandler(svc, nil)
	history := NewHistoryHandler(svc)
	health := NewHealthHandler(status)

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.Route("/api", func(api chi.Router) {
		api.Post("/upload", docs.UploadDocument)
		api.Post("/summarize", summaries.Summarize)
		api.Get("/summaries", history.ListSummaries)
		api.Get("/summaries/{id}", history.GetSummary)
		api.Get("/summaries/{id}/original", history.GetOriginal)
		api.Delete("/summaries/{id}", history.DeleteSummary)
		api.Get("/health", health.Health)
	})
	return r
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body *bytes.Buffer) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestUploadDocument(t *testing.T) {
	conf := 91.5
	ext := stubExtractor{res: &core.ExtractionResult{
		Text:          "Recognized text",
		Method:        core.MethodOCR,
		TextLength:    15,
		WordCount:     2,
		Confidence:    &conf,
		QualityReason: "insufficient_text",
	}}
	h := newRouter(ext, stubSummarizer{}, &stubStore{rows: map[string]models.Summary{}})

	body, ct := multipartBody(t, "document", "scan.png", "image/png", []byte("fake png bytes"))
	rec, out := do(t, h, http.MethodPost, "/api/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Recognized text", out["extractedText"])
	assert.Equal(t, "image", out["fileType"])
	assert.Equal(t, "ocr", out["extractionMethod"])
	assert.Equal(t, 91.5, out["confidence"])
	assert.Equal(t, "scan.png", out["originalName"])
	assert.NotContains(t, out, "pages")
}

func TestUploadDocument_Rejections(t *testing.T) {
	h := newRouter(stubExtractor{err: &ingestion_engine.ExtractionError{Kind: ingestion_engine.ErrInsufficientText}},
		stubSummarizer{}, &stubStore{rows: map[string]models.Summary{}})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "document", "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 3<<19))
		rec, out := do(t, h, http.MethodPost, "/api/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File too large. Maximum size is 1MB.", out["error"])
	})
	t.Run("wrong field", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "a.pdf", "application/pdf", []byte("x"))
		rec, out := do(t, h, http.MethodPost, "/api/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file uploaded", out["error"])
	})
	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, "document", "a.docx", "application/msword", []byte("x"))
		rec, out := do(t, h, http.MethodPost, "/api/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid file type", out["error"])
	})
	t.Run("insufficient text", func(t *testing.T) {
		body, ct := multipartBody(t, "document", "a.pdf", "application/pdf", []byte("%PDF"))
		rec, out := do(t, h, http.MethodPost, "/api/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Insufficient text", out["error"])
		assert.Equal(t, false, out["retrySuggested"])
		assert.Contains(t, out["message"], "scanned PDF")
	})
}

func summarizeBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

const longText = "The committee reviewed the annual budget in detail. " +
	"Several departments requested additional funding for new projects. " +
	"The finance team proposed a phased approach to spending."

func TestUploadDocument_SpilledPart(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	ext := &captureExtractor{}
	docs := NewDocumentHandler(services.NewDocumentService(ext, nil, nil), 8<<20, nil)
	data := bytes.Repeat([]byte("%PDF-1.4 body.\n"), 350000)

	body, ct := multipartBody(t, "document", "big.pdf", "application/pdf", data)
	rec, out := do(t, http.HandlerFunc(docs.UploadDocument), http.MethodPost, "/api/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, out)
	assert.Equal(t, data, ext.got.Data)
	assert.Equal(t, float64(len(data)), out["fileSize"])

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left, "multipart spill files are removed")
}

func TestFormatBytes(t *testing.T) {
	for n, want := range map[int64]string{
		10 << 20:  "10MB",
		3 << 19:   "1.5MB",
		512 << 10: "512KB",
		900:       "900 bytes",
	} {
		assert.Equal(t, want, formatBytes(n))
	}
}

func TestSummarize(t *testing.T) {
	sum := stubSummarizer{out: &llm.SummarizationOutcome{SummaryText: "One.\n\nTwo.", ModelName: "gemini-2.0-flash", ProviderUsed: "ai"}}
	h := newRouter(stubExtractor{}, sum, &stubStore{rows: map[string]models.Summary{}})

	rec, out := do(t, h, http.MethodPost, "/api/summarize", "application/json",
		summarizeBody(t, SummarizeRequest{Text: longText, Length: "medium", OriginalName: "b.pdf"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ai", out["aiProvider"])
	assert.Equal(t, float64(2), out["paragraphCount"])
	assert.Equal(t, "sum-1", out["id"])
	assert.NotContains(t, out, "notice")
	assert.NotContains(t, out, "retrySuggested")
}

func TestSummarize_Fallback(t *testing.T) {
	sum := stubSummarizer{err: &llm.SummarizationError{Kind: llm.ErrAllModelsUnavailable}}
	h := newRouter(stubExtractor{}, sum, &stubStore{rows: map[string]models.Summary{}})

	rec, out := do(t, h, http.MethodPost, "/api/summarize", "application/json",
		summarizeBody(t, SummarizeRequest{Text: longText, Length: "short"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", out["aiProvider"])
	assert.Equal(t, true, out["usedFallback"])
	assert.Equal(t, true, out["retrySuggested"])
	assert.Equal(t, llm.FallbackNotice, out["notice"])
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		req    SummarizeRequest
		status int
		retry  any
	}{
		{"bad length", nil, SummarizeRequest{Text: longText, Length: "huge"}, http.StatusBadRequest, nil},
		{"no text", nil, SummarizeRequest{Text: " "}, http.StatusBadRequest, nil},
		{"auth", &llm.SummarizationError{Kind: llm.ErrAuthConfig}, SummarizeRequest{Text: longText}, http.StatusInternalServerError, false},
		{"blocked", &llm.SummarizationError{Kind: llm.ErrContentBlocked}, SummarizeRequest{Text: longText}, http.StatusUnprocessableEntity, false},
		{"timeout", &llm.SummarizationError{Kind: llm.ErrTimeout}, SummarizeRequest{Text: longText}, http.StatusGatewayTimeout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(stubExtractor{}, stubSummarizer{err: tt.err}, &stubStore{rows: map[string]models.Summary{}})
			rec, out := do(t, h, http.MethodPost, "/api/summarize", "application/json", summarizeBody(t, tt.req))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, out["error"])
			assert.Equal(t, tt.retry, out["retrySuggested"])
		})
	}

	h := newRouter(stubExtractor{}, stubSummarizer{}, &stubStore{rows: map[string]models.Summary{}})
	rec, _ := do(t, h, http.MethodPost, "/api/summarize", "application/json", bytes.NewBufferString("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRoutes(t *testing.T) {
	store := &stubStore{rows: map[string]models.Summary{"abc": {ID: "abc", OriginalName: "a.pdf"}}}
	h := newRouter(stubExtractor{}, stubSummarizer{}, store)

	rec, out := do(t, h, http.MethodGet, "/api/summaries?page=1&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["summaries"], 1)
	pagination := out["pagination"].(map[string]any)
	assert.Equal(t, float64(5), pagination["itemsPerPage"])
	assert.Equal(t, float64(1), pagination["totalItems"])

	rec, out = do(t, h, http.MethodGet, "/api/summaries/abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a.pdf", out["summary"].(map[string]any)["originalName"])

	rec, _ = do(t, h, http.MethodDelete, "/api/summaries/abc", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, out = do(t, h, http.MethodGet, "/api/summaries/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Summary not found", out["error"])

	rec, _ = do(t, h, http.MethodDelete, "/api/summaries/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndNotFound(t *testing.T) {
	h := newRouter(stubExtractor{}, stubSummarizer{}, &stubStore{rows: map[string]models.Summary{}})

	rec, out := do(t, h, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", out["status"])
	ai := out["ai"].(map[string]any)
	assert.Equal(t, "gemini-2.0-flash", ai["currentModel"])
	assert.Len(t, ai["models"], 2)

	rec, out = do(t, h, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", out["error"])
}

func TestHealth_ModelCheck(t *testing.T) {
	m := &stubModels{}
	h := newArchiveRouter(stubExtractor{}, stubSummarizer{}, &stubStore{rows: map[string]models.Summary{}}, nil, m)

	_, out := do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.NotContains(t, out["ai"], "modelCheck")
	assert.Zero(t, m.checks)

	_, out = do(t, h, http.MethodGet, "/api/health?check=1", "", nil)
	assert.Equal(t, true, out["ai"].(map[string]any)["modelCheck"])
	assert.Equal(t, 1, m.checks)
}

func TestOriginalDownload(t *testing.T) {
	store := &stubStore{rows: map[string]models.Summary{
		"abc":  {ID: "abc", Filename: "1700000000-a.pdf", OriginalName: "a.pdf", FileType: "application/pdf"},
		"gone": {ID: "gone", Filename: "1700000001-b.pdf", OriginalName: "b.pdf"},
	}}
	archive := &stubArchive{objects: map[string][]byte{"uploads/1700000000-a.pdf": []byte("%PDF-1.4")}}
	h := newArchiveRouter(stubExtractor{}, stubSummarizer{}, store, archive, &stubModels{})

	req := httptest.NewRequest(http.MethodGet, "/api/summaries/abc/original", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=a.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())

	rec, out := do(t, h, http.MethodGet, "/api/summaries/gone/original", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Original document not found", out["error"])

	rec, _ = do(t, h, http.MethodDelete, "/api/summaries/abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, archive.objects)
}

func TestDescribeError_Generic(t *testing.T) {
	status, body := describeError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error)
	assert.True(t, strings.Contains(body.Details, "assert.AnError"))
}
