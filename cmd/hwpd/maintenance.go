package main

import (
	"context"
	"log/slog"
	"time"
)

// uploadRetention matches the default result cache TTL: a document uploaded
// again within the hour hits both the stored file and the cached result.
const uploadRetention = time.Hour

type cacheSweeper interface{ SweepCache() int }

type analysisSweeper interface{ Sweep() int }

type limiterSweeper interface {
	SweepLimiters(idle time.Duration) int
}

type uploadPruner interface {
	Prune(olderThan time.Duration) (int, error)
}

type historyChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

type historyStatus interface{ SetHistory(ok bool) }

// janitor runs the periodic housekeeping of hwpd. Nil fields are skipped.
type janitor struct {
	documents cacheSweeper
	analysis  analysisSweeper
	limiters  limiterSweeper
	uploads   uploadPruner
	retention time.Duration
	history   historyChecker
	health    historyStatus
	logger    *slog.Logger
}

type sweepReport struct {
	Documents int
	Analysis  int
	Limiters  int
	Uploads   int
}

func (j *janitor) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *janitor) tick(ctx context.Context) sweepReport {
	var r sweepReport
	if j.documents != nil {
		r.Documents = j.documents.SweepCache()
	}
	if j.analysis != nil {
		r.Analysis = j.analysis.Sweep()
	}
	if j.limiters != nil {
		r.Limiters = j.limiters.SweepLimiters(10 * time.Minute)
	}
	if j.uploads != nil {
		n, err := j.uploads.Prune(j.retention)
		if err != nil {
			j.logger.Warn("upload prune failed", "error", err)
		}
		r.Uploads = n
	}
	if r != (sweepReport{}) {
		j.logger.Debug("maintenance",
			"documents", r.Documents,
			"analysis", r.Analysis,
			"limiters", r.Limiters,
			"uploads", r.Uploads,
		)
	}
	if j.history != nil && j.health != nil {
		j.health.SetHistory(j.history.HealthCheck(ctx, 2*time.Second, j.logger) == nil)
	}
	return r
}
