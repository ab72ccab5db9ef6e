package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/markdave123-py/Digesta/internal/core/llm"
	"github.com/markdave123-py/Digesta/internal/services"
)

type SummaryHandler struct {
	svc    *services.SummaryService
	logger *slog.Logger
}

func NewSummaryHandler(svc *services.SummaryService, logger *slog.Logger) *SummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHandler{svc: svc, logger: logger}
}

type SummarizeRequest struct {
	Text         string `json:"text"`
	Length       string `json:"length"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
}

type SummarizeResponse struct {
	Success        bool       `json:"success"`
	Summary        string     `json:"summary"`
	Length         llm.Length `json:"length"`
	ParagraphCount int        `json:"paragraphCount"`
	OriginalLength int        `json:"originalLength"`
	SummaryLength  int        `json:"summaryLength"`
	ProcessingTime int64      `json:"processingTime"`
	AIProvider     string     `json:"aiProvider"`
	ModelName      string     `json:"modelName,omitempty"`
	UsedFallback   bool       `json:"usedFallback"`
	Cached         bool       `json:"cached,omitempty"`
	Notice         string     `json:"notice,omitempty"`
	RetrySuggested bool       `json:"retrySuggested,omitempty"`
	OriginalName   string     `json:"originalName,omitempty"`
	FileType       string     `json:"fileType,omitempty"`
	ID             string     `json:"id,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
}

func (h *SummaryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "Request body must be JSON."})
		return
	}

	// summarization runs to completion even if the client goes away
	out, err := h.svc.Summarize(context.WithoutCancel(r.Context()), services.SummarizeInput{
		Text:         req.Text,
		Length:       req.Length,
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		FileType:     req.FileType,
		FileSize:     req.FileSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := SummarizeResponse{
		Success:        true,
		Summary:        out.Summary,
		Length:         out.Length,
		ParagraphCount: out.ParagraphCount,
		OriginalLength: out.OriginalLength,
		SummaryLength:  out.SummaryLength,
		ProcessingTime: out.ProcessingTimeMs,
		AIProvider:     out.AIProvider,
		ModelName:      out.ModelName,
		UsedFallback:   out.UsedFallback,
		Cached:         out.Cached,
		Notice:         out.Notice,
		RetrySuggested: out.RetrySuggested,
		OriginalName:   req.OriginalName,
		FileType:       req.FileType,
		ID:             out.ID,
	}
	if !out.CreatedAt.IsZero() {
		resp.CreatedAt = &out.CreatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
