package core

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/Digesta/internal/models"
)

// ErrUnsupportedType is returned for uploads whose MIME type has no cascade.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrObjectNotFound is returned by ObjectClient.GetFile for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// SummaryStore persists summarization records. Get returns nil, nil when the
// record does not exist.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s *models.Summary) error
	GetSummary(ctx context.Context, id string) (*models.Summary, error)
	ListSummaries(ctx context.Context, q models.SummaryQuery) ([]models.Summary, int, error)
	DeleteSummary(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// CachedSummary is what SummaryCache keeps for an AI generated summary.
type CachedSummary struct {
	Summary   string    `json:"summary"`
	ModelName string    `json:"modelName"`
	CachedAt  time.Time `json:"cachedAt"`
}

// SummaryCache short-circuits repeated summarization of identical text.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*CachedSummary, error)
	Set(ctx context.Context, key string, v CachedSummary) error
}
