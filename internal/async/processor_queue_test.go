package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/pipeline"
)

type fakeRunner struct {
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
	delay  time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, path string, _ pipeline.Options) (pipeline.Outcome, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return pipeline.Outcome{Path: path}, ctx.Err()
	}
	if strings.HasSuffix(path, ".bad") {
		return pipeline.Outcome{Path: path}, errors.New("cannot read " + path)
	}
	return pipeline.Outcome{Path: path, Document: document.ProcessedDocument{Text: "text of " + path}}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBatchKeepsOrder(t *testing.T) {
	r := &fakeRunner{delay: 5 * time.Millisecond}
	paths := []string{"a.hwp", "b.hwpx", "c.bad", "a.hwp", "d.hwp"}

	got := Batch(context.Background(), r, paths, pipeline.Options{}, quietLogger(), WithWorkers(3))
	if len(got) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(got))
	}
	for i, res := range got {
		if res.Job.Path != paths[i] {
			t.Errorf("result %d is for %s, want %s", i, res.Job.Path, paths[i])
		}
		wantErr := strings.HasSuffix(paths[i], ".bad")
		if (res.Err != nil) != wantErr {
			t.Errorf("%s: err = %v", paths[i], res.Err)
		}
		if !wantErr && res.Outcome.Document.Text != "text of "+paths[i] {
			t.Errorf("%s: unexpected outcome %+v", paths[i], res.Outcome)
		}
	}
	if r.calls.Load() != int32(len(paths)) {
		t.Errorf("expected %d runs, got %d", len(paths), r.calls.Load())
	}
	if r.peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent runs, saw %d", r.peak.Load())
	}
}

func TestBatchEmpty(t *testing.T) {
	if got := Batch(context.Background(), &fakeRunner{}, nil, pipeline.Options{}, quietLogger()); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestProcessTimeout(t *testing.T) {
	r := &fakeRunner{delay: time.Second}
	got := Batch(context.Background(), r, []string{"slow.hwp"}, pipeline.Options{}, quietLogger(),
		WithProcessTimeout(20*time.Millisecond))
	if !errors.Is(got[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", got[0].Err)
	}
}

func TestQueueShutdown(t *testing.T) {
	r := &fakeRunner{}
	q := NewProcessorQueue(r, quietLogger(), WithWorkers(2), WithQueueSize(4))

	var wg sync.WaitGroup
	var seen []string
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range q.Results() {
			seen = append(seen, res.Job.Path)
			if res.Job.ID.String() == "00000000-0000-0000-0000-000000000000" {
				t.Error("expected job ID to be assigned")
			}
		}
	}()

	for _, p := range []string{"x.hwp", "y.hwp"} {
		if err := q.Enqueue(context.Background(), Job{Path: p}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	wg.Wait()

	if len(seen) != 2 {
		t.Errorf("expected both jobs drained, got %v", seen)
	}
	if err := q.Enqueue(context.Background(), Job{Path: "late.hwp"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after shutdown, got %v", err)
	}
	q.Shutdown(ctx)
}

func TestStopCancelsJobs(t *testing.T) {
	r := &fakeRunner{delay: 10 * time.Second}
	q := NewProcessorQueue(r, quietLogger(), WithWorkers(1), WithQueueSize(4))

	for _, p := range []string{"running.hwp", "queued1.hwp", "queued2.hwpx"} {
		if err := q.Enqueue(context.Background(), Job{Path: p}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	deadline := time.Now().Add(5 * time.Second)
	for r.active.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	q.Stop()
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Stop took %v", elapsed)
	}

	var results []Result
	for res := range q.Results() {
		results = append(results, res)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", res.Job.Path, res.Err)
		}
	}
	if r.calls.Load() != 1 {
		t.Errorf("queued jobs should not reach the runner, got %d calls", r.calls.Load())
	}
}

func TestBatchCancelledByCaller(t *testing.T) {
	r := &fakeRunner{delay: 10 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	got := Batch(ctx, r, []string{"a.hwp", "b.hwp"}, pipeline.Options{}, quietLogger(), WithWorkers(1))
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Batch ignored cancellation, took %v", elapsed)
	}
	for _, res := range got {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", res.Job.Path, res.Err)
		}
	}
}
