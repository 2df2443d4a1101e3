// Package async runs files through a fixed pool of pipeline processors fed
// by a bounded queue.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file to process.
type Job struct {
	Path        string
	Options     pipeline.Options
	Force       bool // process even if the sink already holds a result
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is what a worker hands to the sink once a job is terminal.
type Outcome struct {
	Job      Job
	FileID   string
	FileName string
	HashHex  string
	Result   *entity.ProcessedDocumentResult
	Err      error
}

// ResultSink receives every terminal outcome.
type ResultSink interface {
	Record(ctx context.Context, out Outcome) error
}

// Deduper is optionally implemented by sinks that can tell whether a
// content hash was already processed successfully.
type Deduper interface {
	Completed(ctx context.Context, hashHex string) (bool, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Cancel(fileID string) bool
	Shutdown(ctx context.Context)
}
