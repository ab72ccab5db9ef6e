package models

import (
	"time"
)

// Provider values recorded for a summary.
const (
	ProviderAI       = "ai"
	ProviderFallback = "fallback"
)

// Summary is the durable record of one summarization request.
type Summary struct {
	ID               string    `db:"id" json:"id"`
	Filename         string    `db:"filename" json:"filename"`
	OriginalName     string    `db:"original_name" json:"originalName"`
	FileType         string    `db:"file_type" json:"fileType"`
	ExtractedText    string    `db:"extracted_text" json:"extractedText,omitempty"`
	Summary          string    `db:"summary" json:"summary"`
	SummaryLength    string    `db:"summary_length" json:"summaryLength"`
	AIProvider       string    `db:"ai_provider" json:"aiProvider"`
	ModelName        string    `db:"model_name" json:"modelName,omitempty"`
	ProcessingTimeMs int64     `db:"processing_time_ms" json:"processingTime"`
	FileSize         int64     `db:"file_size" json:"fileSize"`
	UsedFallback     bool      `db:"used_fallback" json:"usedFallback"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// SummaryQuery selects one page of history. Search matches original name and
// summary text case-insensitively.
type SummaryQuery struct {
	Page   int
	Limit  int
	Search string
}

// Offset is the number of rows skipped before the requested page.
func (q SummaryQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Pagination describes the page returned for a SummaryQuery.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}
