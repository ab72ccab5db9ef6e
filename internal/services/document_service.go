package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/ingestion_engine"
)

// DocumentExtractor is the part of the orchestrator the upload path needs.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc core.DocumentBytes) (*core.ExtractionResult, error)
}

type UploadInput struct {
	Source       core.ByteSource
	OriginalName string
	ContentType  string
}

type UploadResult struct {
	Filename         string
	OriginalName     string
	FileType         core.DocumentKind
	FileSize         int64
	ProcessingTimeMs int64
	Extraction       *core.ExtractionResult
}

type DocumentService struct {
	extractor DocumentExtractor
	archiver  ingestion_engine.Archiver
	logger    *slog.Logger
	now       func() time.Time
}

// NewDocumentService wires extraction and, when archiver is non-nil, the
// background copy of originals to object storage.
func NewDocumentService(extractor DocumentExtractor, archiver ingestion_engine.Archiver, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{extractor: extractor, archiver: archiver, logger: logger, now: time.Now}
}

// Process extracts text from one upload. in.Source is always closed.
func (s *DocumentService) Process(ctx context.Context, in UploadInput) (*UploadResult, error) {
	start := s.now()
	doc, err := core.ReadDocument(in.Source, in.OriginalName, in.ContentType, s.logger)
	if err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		s.logger.Warn("extraction failed", "file", in.OriginalName, "error", err)
		return nil, err
	}

	filename := s.storedName(in.OriginalName)
	if s.archiver != nil {
		s.archiver.Enqueue(ingestion_engine.ArchiveJob{
			Key:          objectKey(filename),
			OriginalName: in.OriginalName,
			ContentType:  doc.MIMEType,
			Data:         doc.Data,
		})
	}

	out := &UploadResult{
		Filename:         filename,
		OriginalName:     in.OriginalName,
		FileType:         doc.Kind,
		FileSize:         doc.Size,
		ProcessingTimeMs: s.now().Sub(start).Milliseconds(),
		Extraction:       res,
	}
	s.logger.Info("document processed",
		"file", in.OriginalName, "method", res.Method, "chars", res.TextLength, "words", res.WordCount,
		"processing_ms", out.ProcessingTimeMs)
	return out, nil
}

// storedName is a unique name for the upload that keeps its extension.
func (s *DocumentService) storedName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString()[:8], ext)
}

// objectKey creates a consistent S3 key layout.
func objectKey(filename string) string {
	return path.Join("uploads", filename)
}
