package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/cache"
	"github.com/markdave123-py/Digesta/internal/core/llm"
	"github.com/markdave123-py/Digesta/internal/models"
)

const (
	storedTextLimit = 3000
	defaultPageSize = 10
	maxPageSize     = 100
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrSummaryNotFound  = errors.New("summary not found")
	ErrOriginalNotFound = errors.New("original document not found")
)

var paragraphBreakRe = regexp.MustCompile(`\n\s*\n`)

// Summarizer is the part of llm.SummarizationClient the service needs.
type Summarizer interface {
	Summarize(ctx context.Context, text string, length llm.Length) (*llm.SummarizationOutcome, error)
}

type SummarizeInput struct {
	Text         string
	Length       string
	Filename     string
	OriginalName string
	FileType     string
	FileSize     int64
}

type SummarizeResult struct {
	Summary          string
	Length           llm.Length
	ParagraphCount   int
	OriginalLength   int
	SummaryLength    int
	ProcessingTimeMs int64
	AIProvider       string
	ModelName        string
	UsedFallback     bool
	Cached           bool
	Notice           string
	RetrySuggested   bool
	// ID and CreatedAt are empty when the record could not be stored.
	ID        string
	CreatedAt time.Time
}

type SummaryService struct {
	client  Summarizer
	store   core.SummaryStore
	cache   core.SummaryCache
	archive core.ObjectClient
	logger  *slog.Logger
	now     func() time.Time
}

// NewSummaryService builds the service. store, summaryCache and archive may
// be nil. archive holds the original uploads under the keys DocumentService
// archives them with.
func NewSummaryService(
	client Summarizer,
	store core.SummaryStore,
	summaryCache core.SummaryCache,
	archive core.ObjectClient,
	logger *slog.Logger,
) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{
		client:  client,
		store:   store,
		cache:   summaryCache,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// Summarize produces an AI summary, or an extractive one when the AI service
// as a whole is exhausted, and records the result.
func (s *SummaryService) Summarize(ctx context.Context, in SummarizeInput) (*SummarizeResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: No text provided for summarization", ErrInvalidInput)
	}
	length, err := llm.ParseLength(in.Length)
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid summary length. Use short, medium, or long.", ErrInvalidInput)
	}

	s.logger.Info("generating summary", "file", in.OriginalName, "length", string(length), "chars", len(in.Text))
	start := s.now()
	out := &SummarizeResult{Length: length, OriginalLength: utf8.RuneCountInString(in.Text), AIProvider: models.ProviderAI}

	key := cache.SummaryKey(string(length), in.Text)
	if hit := s.cached(ctx, key); hit != nil {
		out.Summary, out.ModelName, out.Cached = hit.Summary, hit.ModelName, true
	} else {
		outcome, err := s.client.Summarize(ctx, in.Text, length)
		switch {
		case err == nil:
			out.Summary, out.ModelName = outcome.SummaryText, outcome.ModelName
			s.remember(ctx, key, outcome)
		case llm.FallbackEligible(err):
			s.logger.Warn("ai service unavailable, using fallback summary", "file", in.OriginalName, "error", err)
			out.Summary = llm.ExtractiveSummary(in.Text, length)
			out.AIProvider = models.ProviderFallback
			out.UsedFallback = true
			out.Notice = llm.FallbackNotice
			out.RetrySuggested = true
		default:
			return nil, err
		}
	}

	out.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
	out.SummaryLength = utf8.RuneCountInString(out.Summary)
	out.ParagraphCount = ParagraphCount(out.Summary)
	s.logger.Info("summary completed",
		"file", in.OriginalName, "paragraphs", out.ParagraphCount, "processing_ms", out.ProcessingTimeMs,
		"fallback", out.UsedFallback, "cached", out.Cached)

	s.persist(ctx, in, out)
	return out, nil
}

func (s *SummaryService) cached(ctx context.Context, key string) *core.CachedSummary {
	if s.cache == nil {
		return nil
	}
	hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("summary cache read failed", "error", err)
		return nil
	}
	return hit
}

func (s *SummaryService) remember(ctx context.Context, key string, outcome *llm.SummarizationOutcome) {
	if s.cache == nil {
		return
	}
	v := core.CachedSummary{Summary: outcome.SummaryText, ModelName: outcome.ModelName, CachedAt: s.now().UTC()}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.Warn("summary cache write failed", "error", err)
	}
}

func (s *SummaryService) persist(ctx context.Context, in SummarizeInput, out *SummarizeResult) {
	if s.store == nil {
		return
	}
	rec := &models.Summary{
		Filename:         in.Filename,
		OriginalName:     in.OriginalName,
		FileType:         in.FileType,
		ExtractedText:    storedSample(in.Text),
		Summary:          out.Summary,
		SummaryLength:    string(out.Length),
		AIProvider:       out.AIProvider,
		ModelName:        out.ModelName,
		ProcessingTimeMs: out.ProcessingTimeMs,
		FileSize:         in.FileSize,
		UsedFallback:     out.UsedFallback,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.SaveSummary(ctx, rec); err != nil {
		s.logger.Error("saving summary failed", "file", in.OriginalName, "error", err)
		return
	}
	out.ID, out.CreatedAt = rec.ID, rec.CreatedAt
}

// List returns one page of history, newest first.
func (s *SummaryService) List(ctx context.Context, q models.SummaryQuery) ([]models.Summary, models.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	q.Limit = min(q.Limit, maxPageSize)

	items, total, err := s.store.ListSummaries(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return items, models.Pagination{
		CurrentPage:  q.Page,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.Limit))),
		TotalItems:   total,
		ItemsPerPage: q.Limit,
	}, nil
}

func (s *SummaryService) Get(ctx context.Context, id string) (*models.Summary, error) {
	sum, err := s.store.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, ErrSummaryNotFound
	}
	return sum, nil
}

// Delete removes the record and then its archived original. A failed
// archive delete is logged and does not fail the call.
func (s *SummaryService) Delete(ctx context.Context, id string) error {
	sum, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteSummary(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSummaryNotFound
	}
	if s.archive == nil || sum.Filename == "" {
		return nil
	}
	key := objectKey(sum.Filename)
	if err := s.archive.DeleteFile(ctx, key); err != nil {
		s.logger.Error("deleting archived original failed", "id", id, "key", key, "error", err)
	}
	return nil
}

// Original returns the record and the archived upload it was made from.
func (s *SummaryService) Original(ctx context.Context, id string) (*models.Summary, []byte, error) {
	sum, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.archive == nil || sum.Filename == "" {
		return nil, nil, ErrOriginalNotFound
	}
	data, err := s.archive.GetFile(ctx, objectKey(sum.Filename))
	if errors.Is(err, core.ErrObjectNotFound) {
		return nil, nil, ErrOriginalNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetch original: %w", err)
	}
	return sum, data, nil
}

// ParagraphCount counts blank-line separated paragraphs.
func ParagraphCount(summary string) int {
	return len(paragraphBreakRe.FindAllStringIndex(summary, -1)) + 1
}

func storedSample(text string) string {
	r := []rune(text)
	if len(r) <= storedTextLimit {
		return text
	}
	return string(r[:storedTextLimit]) + "..."
}
