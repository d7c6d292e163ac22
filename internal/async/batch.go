package async

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/hwp-analyzer/internal/pipeline"
)

// Batch runs every path through runner and returns results in input order.
// Paths not yet enqueued when ctx is done are reported with ctx's error.
func Batch(ctx context.Context, runner Runner, paths []string, opts pipeline.Options, logger *slog.Logger, qopts ...Option) []Result {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Result, len(paths))
	if len(paths) == 0 {
		return out
	}
	q := NewProcessorQueue(runner, logger, append([]Option{WithQueueSize(len(paths)), WithBaseContext(ctx)}, qopts...)...)

	go func() {
		defer q.Shutdown(context.Background())
		for i, p := range paths {
			if err := q.Enqueue(ctx, Job{Seq: i, Path: p, Options: opts}); err != nil {
				for j := i; j < len(paths); j++ {
					out[j] = Result{Job: Job{Seq: j, Path: paths[j], Options: opts}, Err: err}
				}
				return
			}
		}
	}()

	for res := range q.Results() {
		out[res.Job.Seq] = res
	}
	return out
}
