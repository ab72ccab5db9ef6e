package ingestion_engine

import "context"

// ArchiveJob is an original upload waiting to be copied to object storage.
type ArchiveJob struct {
	Key          string
	OriginalName string
	ContentType  string
	Data         []byte
}

// Archiver copies original uploads to object storage in the background.
type Archiver interface {
	Run(ctx context.Context, numWorkers int) error
	Enqueue(job ArchiveJob) bool
}
