package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/internal/pipeline"
)

// ErrClosed is returned by Enqueue once Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one document to run through the pipeline.
type Job struct {
	ID          uuid.UUID
	Seq         int // caller-assigned position, echoed in Result.Job
	Path        string
	Options     pipeline.Options
	SubmittedAt time.Time
	TraceID     string
}

// Result reports how a Job finished.
type Result struct {
	Job     Job
	Outcome pipeline.Outcome
	Err     error
	Elapsed time.Duration
}

// Runner is what workers call for each job; *pipeline.Processor satisfies it.
type Runner interface {
	Run(ctx context.Context, path string, opts pipeline.Options) (pipeline.Outcome, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Results() <-chan Result
	Shutdown(ctx context.Context)
	Stop()
}
