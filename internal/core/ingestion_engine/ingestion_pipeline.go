package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Digesta/internal/core"
)

const archiveUploadTimeout = 2 * time.Minute

// DocumentArchiver is a bounded in-memory queue of ArchiveJobs drained by a
// fixed pool of workers.
type DocumentArchiver struct {
	obj    core.ObjectClient
	jobs   chan ArchiveJob
	logger *slog.Logger
}

var _ Archiver = (*DocumentArchiver)(nil)

// NewDocumentArchiver constructs the archiver with a bounded job queue.
func NewDocumentArchiver(obj core.ObjectClient, queueSize int, logger *slog.Logger) *DocumentArchiver {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentArchiver{obj: obj, jobs: make(chan ArchiveJob, queueSize), logger: logger}
}

// Run starts numWorkers workers and blocks until ctx is cancelled. Jobs still
// queued at that point are dropped.
func (a *DocumentArchiver) Run(ctx context.Context, numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= numWorkers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					a.logger.Debug("archive worker shutting down", "worker", w)
					return nil
				case job := <-a.jobs:
					if err := a.processOne(gctx, job); err != nil {
						a.logger.Error("archive upload failed", "worker", w, "key", job.Key, "error", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

// Enqueue schedules a job without blocking. It reports false when the queue is full.
func (a *DocumentArchiver) Enqueue(job ArchiveJob) bool {
	select {
	case a.jobs <- job:
		return true
	default:
		a.logger.Warn("archive queue full, dropping upload", "key", job.Key)
		return false
	}
}

func (a *DocumentArchiver) processOne(ctx context.Context, job ArchiveJob) error {
	if job.Key == "" {
		return errors.New("archive job without key")
	}
	uctx, cancel := context.WithTimeout(ctx, archiveUploadTimeout)
	defer cancel()

	url, err := a.obj.UploadFile(uctx, job.Key, job.Data, job.ContentType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", job.OriginalName, err)
	}
	a.logger.Info("original upload archived", "file", job.OriginalName, "url", url)
	return nil
}
