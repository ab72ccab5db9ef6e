package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/ingestion_engine"
	"github.com/markdave123-py/Digesta/internal/core/llm"
	"github.com/markdave123-py/Digesta/internal/services"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message,omitempty"`
	RetrySuggested *bool  `json:"retrySuggested,omitempty"`
	Details        string `json:"details,omitempty"`
}

type errorClass struct {
	kind   error
	status int
	title  string
}

// errorClasses is checked in order; the first kind err matches wins.
var errorClasses = []errorClass{
	{services.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{services.ErrSummaryNotFound, http.StatusNotFound, "Summary not found"},
	{services.ErrOriginalNotFound, http.StatusNotFound, "Original document not found"},
	{core.ErrUnsupportedType, http.StatusBadRequest, "Invalid file type"},
	{ingestion_engine.ErrInsufficientText, http.StatusBadRequest, "Insufficient text"},
	{ingestion_engine.ErrAllExtractionMethodsFailed, http.StatusUnprocessableEntity, "Text extraction failed"},
	{llm.ErrEmptyInput, http.StatusBadRequest, "No text provided for summarization"},
	{llm.ErrQuotaExceeded, http.StatusTooManyRequests, "API quota exceeded"},
	{llm.ErrAuthConfig, http.StatusInternalServerError, "Service configuration error"},
	{llm.ErrContentBlocked, http.StatusUnprocessableEntity, "Content blocked"},
	{llm.ErrTimeout, http.StatusGatewayTimeout, "AI service timeout"},
	{llm.ErrAllModelsUnavailable, http.StatusServiceUnavailable, "AI service unavailable"},
	{llm.ErrServiceUnavailable, http.StatusServiceUnavailable, "AI service unavailable"},
	{llm.ErrModelUnavailable, http.StatusServiceUnavailable, "AI model unavailable"},
	{llm.ErrSummaryGenerationFailed, http.StatusInternalServerError, "Summary generation failed"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps err onto a status and the error envelope.
func writeError(w http.ResponseWriter, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func describeError(err error) (int, ErrorResponse) {
	status, body := http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	for _, c := range errorClasses {
		if errors.Is(err, c.kind) {
			status, body.Error = c.status, c.title
			break
		}
	}

	var rem core.Remediable
	switch {
	case errors.As(err, &rem):
		body.Message = rem.Remediation()
		retry := rem.RetrySuggested()
		body.RetrySuggested = &retry
		body.Details = err.Error()
	case errors.Is(err, services.ErrInvalidInput):
		body.Message = strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": ")
	case errors.Is(err, core.ErrUnsupportedType):
		body.Message = "Invalid file type. Only PDF and image files are allowed."
	case status == http.StatusInternalServerError:
		body.Details = err.Error()
	}
	return status, body
}
