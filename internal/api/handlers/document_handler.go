package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/services"
)

const (
	uploadField = "document"
	// file parts above this are spilled to disk by the multipart reader
	multipartMemory = 4 << 20
	multipartSlack  = 1 << 20
)

type DocumentHandler struct {
	svc      *services.DocumentService
	maxBytes int64
	logger   *slog.Logger
}

func NewDocumentHandler(svc *services.DocumentService, maxBytes int64, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{svc: svc, maxBytes: maxBytes, logger: logger}
}

type UploadResponse struct {
	Success          bool                  `json:"success"`
	Message          string                `json:"message"`
	ExtractedText    string                `json:"extractedText"`
	Filename         string                `json:"filename"`
	OriginalName     string                `json:"originalName"`
	FileType         core.DocumentKind     `json:"fileType"`
	FileSize         int64                 `json:"fileSize"`
	ProcessingTime   int64                 `json:"processingTime"`
	ExtractionMethod core.ExtractionMethod `json:"extractionMethod"`
	TextLength       int                   `json:"textLength"`
	WordCount        int                   `json:"wordCount"`
	Pages            int                   `json:"pages,omitempty"`
	Confidence       *float64              `json:"confidence,omitempty"`
	IsValid          bool                  `json:"isValid"`
	QualityReason    string                `json:"qualityReason,omitempty"`
}

// UploadDocument extracts text from the multipart file in field "document".
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: h.tooLargeMessage()})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No file uploaded", Details: err.Error()})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("multipart cleanup failed", "error", err)
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No file uploaded"})
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: h.tooLargeMessage()})
		return
	}

	originalName := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, ok := core.KindFromMIME(contentType); !ok {
		writeError(w, core.ErrUnsupportedType)
		return
	}

	// extraction runs to completion even if the client goes away
	out, err := h.svc.Process(context.WithoutCancel(r.Context()), services.UploadInput{
		Source:       core.NewReaderSource(file),
		OriginalName: originalName,
		ContentType:  contentType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	res := out.Extraction
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:          true,
		Message:          "Document processed successfully",
		ExtractedText:    res.Text,
		Filename:         out.Filename,
		OriginalName:     out.OriginalName,
		FileType:         out.FileType,
		FileSize:         out.FileSize,
		ProcessingTime:   out.ProcessingTimeMs,
		ExtractionMethod: res.Method,
		TextLength:       res.TextLength,
		WordCount:        res.WordCount,
		Pages:            res.Pages,
		Confidence:       res.Confidence,
		IsValid:          res.IsValid,
		QualityReason:    res.QualityReason,
	})
}

func (h *DocumentHandler) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size is %s.", formatBytes(h.maxBytes))
}

// formatBytes renders n in whole MB, falling back to KB or bytes.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
