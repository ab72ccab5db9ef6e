package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/models"
)

// SQLStore is the SummaryStore shared by the Postgres and SQLite drivers.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

var _ core.SummaryStore = (*SQLStore)(nil)

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := EnsureBootstrapped(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("summary store ready", "driver", d.name)
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const summaryColumns = `id, filename, original_name, file_type, summary, summary_length,
	ai_provider, model_name, processing_time_ms, file_size, used_fallback, created_at`

// SaveSummary inserts s, assigning an id and creation time when unset.
func (s *SQLStore) SaveSummary(ctx context.Context, sum *models.Summary) error {
	if sum == nil {
		return errors.New("nil summary")
	}
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	q := s.dialect.rebind(`
		INSERT INTO summaries
			(id, filename, original_name, file_type, extracted_text, summary, summary_length,
			 ai_provider, model_name, processing_time_ms, file_size, used_fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, q,
		sum.ID, sum.Filename, sum.OriginalName, sum.FileType, sum.ExtractedText, sum.Summary, sum.SummaryLength,
		sum.AIProvider, sum.ModelName, sum.ProcessingTimeMs, sum.FileSize, sum.UsedFallback, sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSummary(ctx context.Context, id string) (*models.Summary, error) {
	q := s.dialect.rebind(`SELECT ` + summaryColumns + `, extracted_text FROM summaries WHERE id = ?`)
	var sum models.Summary
	err := s.db.QueryRowContext(ctx, q, id).Scan(append(scanTargets(&sum), &sum.ExtractedText)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// likeEscaper makes search terms match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListSummaries returns one page, newest first, without the extracted text,
// and the total number of matching rows.
func (s *SQLStore) ListSummaries(ctx context.Context, query models.SummaryQuery) ([]models.Summary, int, error) {
	where, args := "", []any{}
	if term := strings.TrimSpace(query.Search); term != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		where = ` WHERE LOWER(original_name) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\'`
		args = append(args, like, like)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT COUNT(*) FROM summaries`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count summaries: %w", err)
	}

	q := s.dialect.rebind(`SELECT ` + summaryColumns + ` FROM summaries` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, q, append(args, query.Limit, query.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	out := []models.Summary{}
	for rows.Next() {
		var sum models.Summary
		if err := rows.Scan(scanTargets(&sum)...); err != nil {
			return nil, 0, err
		}
		out = append(out, sum)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) DeleteSummary(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM summaries WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanTargets(sum *models.Summary) []any {
	return []any{
		&sum.ID, &sum.Filename, &sum.OriginalName, &sum.FileType, &sum.Summary, &sum.SummaryLength,
		&sum.AIProvider, &sum.ModelName, &sum.ProcessingTimeMs, &sum.FileSize, &sum.UsedFallback, &sum.CreatedAt,
	}
}
