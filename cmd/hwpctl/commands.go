package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/async"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/export"
	"github.com/joseph-ayodele/hwp-analyzer/internal/ingest"
	"github.com/joseph-ayodele/hwp-analyzer/internal/pipeline"
)

func runCapability(_ context.Context, e *env, args []string) error {
	fs := newFlags("capability", "")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res := document.DetectCapability(document.Config{
		Converter:     e.cfg.Document.Converter,
		WorkDir:       e.cfg.Document.WorkDir,
		ForceFallback: e.cfg.Document.ForceFallback(),
	}, nil)
	if *asJSON {
		return e.out.emitJSON(res)
	}
	e.out.header("Extractor")
	e.out.field("mode", res.Mode)
	if res.ConverterPath != "" {
		e.out.field("converter", res.ConverterPath)
	}
	if res.Reason != "" {
		e.out.field("reason", res.Reason)
	}
	return nil
}

func extractFlags(name string) (*flagsExtract, func([]string) (string, error)) {
	fs := newFlags(name, "<file>")
	f := &flagsExtract{
		images:   fs.Bool("images", false, "extract embedded images"),
		limit:    fs.Int("image-limit", constants.DefaultImageLimit, "maximum number of images"),
		minSize:  fs.Int("image-min-size", constants.DefaultImageMinSize, "minimum image width and height in pixels"),
		asJSON:   fs.Bool("json", false, "print JSON"),
		imageDir: fs.String("image-dir", "", "write extracted images to this directory"),
	}
	return f, func(args []string) (string, error) { return parseOne(fs, args) }
}

type flagsExtract struct {
	images, asJSON *bool
	limit, minSize *int
	imageDir       *string
}

func (f *flagsExtract) options() document.ProcessingOptions {
	return document.ProcessingOptions{IncludeImages: *f.images, ImageLimit: *f.limit, ImageMinSize: *f.minSize}
}

func runProcess(ctx context.Context, e *env, args []string) error {
	f, parse := extractFlags("process")
	path, err := parse(args)
	if err != nil {
		return err
	}
	docs, err := e.documents()
	if err != nil {
		return err
	}
	doc, err := docs.Process(ctx, path, f.options())
	if err != nil {
		return err
	}
	if *f.imageDir != "" {
		if err := writeImages(*f.imageDir, path, doc.Images); err != nil {
			return err
		}
	}
	if *f.asJSON {
		return e.out.emitJSON(doc)
	}

	e.out.header(filepath.Base(path))
	e.out.capability(doc.Capability)
	e.out.metadata(doc.Metadata)
	e.out.field("tables", len(doc.Tables))
	e.out.field("images", len(doc.Images))
	e.out.notes(doc.Notes)
	md, err := export.NewService(e.logger).Markdown(doc)
	if err != nil {
		return err
	}
	e.out.renderMarkdown(md)
	return nil
}

func writeImages(dir, src string, images []document.ImageRef) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	for i, img := range images {
		name := filepath.Join(dir, fmt.Sprintf("%s_%02d.%s", base, i+1, img.Format))
		if err := os.WriteFile(name, img.Bytes, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs := newFlags("export", "<file>")
	format := fs.String("format", "xlsx", "xlsx (tables) or md (whole document)")
	out := fs.String("out", "", "output path; defaults next to the input")
	path, err := parseOne(fs, args)
	if err != nil {
		return err
	}
	docs, err := e.documents()
	if err != nil {
		return err
	}
	doc, err := docs.Process(ctx, path, document.DefaultOptions())
	if err != nil {
		return err
	}

	svc := export.NewService(e.logger)
	var data []byte
	switch *format {
	case "xlsx":
		data, err = svc.TablesXLSX(doc)
	case "md", "markdown":
		var md string
		md, err = svc.Markdown(doc)
		data = []byte(md)
		*format = "md"
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}
	if err != nil {
		return err
	}
	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + "." + *format
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(e.out.w, e.out.st.OK.Render("wrote ")+*out)
	return nil
}

// documentText extracts path and returns its text for the analysis commands.
func documentText(ctx context.Context, e *env, path string) (document.ProcessedDocument, error) {
	docs, err := e.documents()
	if err != nil {
		return document.ProcessedDocument{}, err
	}
	doc, err := docs.Process(ctx, path, document.DefaultOptions())
	if err != nil {
		return doc, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return doc, fmt.Errorf("%s contains no text", path)
	}
	return doc, nil
}

func runAnalyze(ctx context.Context, e *env, args []string) error {
	fs := newFlags("analyze", "<file>")
	method := fs.String("method", string(constants.MethodHybrid), "standard, cot, rl or hybrid")
	verify := fs.Int("verify", 0, "verification rounds (0 disables)")
	asJSON := fs.Bool("json", false, "print JSON")
	noHistory := fs.Bool("no-history", false, "do not record the analysis")
	path, err := parseOne(fs, args)
	if err != nil {
		return err
	}
	m, ok := constants.ParseMethod(*method)
	if !ok {
		return fmt.Errorf("unknown analysis method %q", *method)
	}
	svc, err := e.analyzer(ctx)
	if err != nil {
		return err
	}
	docs, err := e.documents()
	if err != nil {
		return err
	}

	p := pipeline.NewProcessor(e.logger, docs, svc, nil)
	if !*noHistory {
		if p.History, err = e.historyRepo(ctx, false); err != nil {
			return err
		}
	}
	out, err := p.Run(ctx, path, pipeline.Options{
		Extract:      document.DefaultOptions(),
		Analyze:      true,
		Method:       m,
		VerifyRounds: *verify,
	})
	if err != nil {
		return err
	}
	if out.Analysis == nil {
		return fmt.Errorf("%s produced no analysis", path)
	}
	if *asJSON {
		return e.out.emitJSON(out)
	}
	e.out.renderMarkdown(analysisMarkdown(*out.Analysis))
	if out.RecordID != uuid.Nil {
		e.out.field("record", out.RecordID)
	}
	return nil
}

func runInsights(ctx context.Context, e *env, args []string) error {
	fs := newFlags("insights", "<file>")
	n := fs.Int("n", 5, "number of insights")
	asJSON := fs.Bool("json", false, "print JSON")
	path, err := parseOne(fs, args)
	if err != nil {
		return err
	}
	svc, err := e.analyzer(ctx)
	if err != nil {
		return err
	}
	doc, err := documentText(ctx, e, path)
	if err != nil {
		return err
	}
	items, err := svc.KeyInsights(ctx, doc.Text, *n)
	if err != nil {
		return err
	}
	if *asJSON {
		return e.out.emitJSON(items)
	}
	e.out.renderMarkdown(insightsMarkdown(items))
	return nil
}

func runAsk(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ask", "<file>")
	question := fs.String("q", "", "question to answer (required)")
	asJSON := fs.Bool("json", false, "print JSON")
	path, err := parseOne(fs, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*question) == "" {
		fs.Usage()
		return errUsage
	}
	svc, err := e.analyzer(ctx)
	if err != nil {
		return err
	}
	doc, err := documentText(ctx, e, path)
	if err != nil {
		return err
	}
	ans, err := svc.Ask(ctx, doc.Text, *question)
	if err != nil {
		return err
	}
	if *asJSON {
		return e.out.emitJSON(ans)
	}
	e.out.renderMarkdown(answerMarkdown(ans))
	return nil
}

func runCompare(ctx context.Context, e *env, args []string) error {
	fs := newFlags("compare", "<file> <file>")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	svc, err := e.analyzer(ctx)
	if err != nil {
		return err
	}
	var subjects [2]analysis.Subject
	for i, path := range fs.Args() {
		doc, err := documentText(ctx, e, path)
		if err != nil {
			return err
		}
		subjects[i] = analysis.Subject{Name: filepath.Base(path), Text: doc.Text}
	}
	cmp, err := svc.Compare(ctx, subjects[0], subjects[1])
	if err != nil {
		return err
	}
	if *asJSON {
		return e.out.emitJSON(cmp)
	}
	e.out.renderMarkdown(comparisonMarkdown(cmp))
	return nil
}

func runFreshness(ctx context.Context, e *env, args []string) error {
	fs := newFlags("freshness", "<file>")
	suggest := fs.Bool("suggest", true, "follow up with update suggestions")
	asJSON := fs.Bool("json", false, "print JSON")
	path, err := parseOne(fs, args)
	if err != nil {
		return err
	}
	svc, err := e.analyzer(ctx)
	if err != nil {
		return err
	}
	doc, err := documentText(ctx, e, path)
	if err != nil {
		return err
	}
	f, err := svc.CheckFreshness(ctx, doc.Text, doc.Metadata)
	if err != nil {
		return err
	}
	var sug *analysis.UpdateSuggestions
	if *suggest {
		s, err := svc.SuggestUpdates(ctx, doc.Text, f)
		if err != nil {
			return err
		}
		sug = &s
	}
	if *asJSON {
		return e.out.emitJSON(map[string]any{"freshness": f, "suggestions": sug})
	}
	e.out.renderMarkdown(freshnessMarkdown(f, sug))
	return nil
}

// batchFlags are shared by batch and watch.
type batchFlags struct {
	workers *int
	timeout *time.Duration
	analyze *bool
	method  *string
	verify  *int
	asJSON  *bool
}

func newBatchFlags(name, args string) (*batchFlags, func([]string) ([]string, error)) {
	fs := newFlags(name, args)
	f := &batchFlags{
		workers: fs.Int("workers", 4, "concurrent documents"),
		timeout: fs.Duration("timeout", 3*time.Minute, "per-document timeout"),
		analyze: fs.Bool("analyze", false, "also run LLM analysis"),
		method:  fs.String("method", string(constants.MethodHybrid), "analysis method"),
		verify:  fs.Int("verify", 0, "verification rounds"),
		asJSON:  fs.Bool("json", false, "print one JSON object per document"),
	}
	return f, func(args []string) ([]string, error) {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			fs.Usage()
			return nil, errUsage
		}
		return fs.Args(), nil
	}
}

// processor builds the pipeline for batch and watch runs.
func (f *batchFlags) processor(ctx context.Context, e *env) (*pipeline.Processor, pipeline.Options, error) {
	opts := pipeline.Options{Extract: document.DefaultOptions(), Analyze: *f.analyze, VerifyRounds: *f.verify}
	docs, err := e.documents()
	if err != nil {
		return nil, opts, err
	}
	var svc analysis.Service
	if *f.analyze {
		m, ok := constants.ParseMethod(*f.method)
		if !ok {
			return nil, opts, fmt.Errorf("unknown analysis method %q", *f.method)
		}
		opts.Method = m
		if svc, err = e.analyzer(ctx); err != nil {
			return nil, opts, err
		}
	}
	p := pipeline.NewProcessor(e.logger, docs, svc, nil)
	if *f.analyze {
		if p.History, err = e.historyRepo(ctx, false); err != nil {
			return nil, opts, err
		}
	}
	return p, opts, nil
}

type batchLine struct {
	Path     string           `json:"path"`
	Error    string           `json:"error,omitempty"`
	Text     int              `json:"text_runes"`
	Tables   int              `json:"tables"`
	Analysis *analysis.Result `json:"analysis,omitempty"`
	Elapsed  string           `json:"elapsed"`
}

func (e *env) report(r async.Result, asJSON bool) {
	if !asJSON {
		e.out.batchResult(r)
		return
	}
	line := batchLine{Path: r.Job.Path, Elapsed: r.Elapsed.String()}
	if r.Err != nil {
		line.Error = r.Err.Error()
	} else {
		line.Text = len([]rune(r.Outcome.Document.Text))
		line.Tables = len(r.Outcome.Document.Tables)
		line.Analysis = r.Outcome.Analysis
	}
	_ = e.out.emitJSON(line)
}

func runBatch(ctx context.Context, e *env, args []string) error {
	f, parse := newBatchFlags("batch", "<dir|glob>...")
	patterns, err := parse(args)
	if err != nil {
		return err
	}
	paths, stats, err := ingest.Expand(patterns...)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		e.logger.Warn("skipped unreadable entries", "failed", stats.Failed)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .hwp or .hwpx files match %s", strings.Join(patterns, " "))
	}
	p, opts, err := f.processor(ctx, e)
	if err != nil {
		return err
	}

	start := time.Now()
	results := async.Batch(ctx, p, paths, opts, e.logger,
		async.WithWorkers(*f.workers),
		async.WithProcessTimeout(*f.timeout),
	)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		e.report(r, *f.asJSON)
	}
	if !*f.asJSON {
		e.out.field("processed", fmt.Sprintf("%d ok, %d failed in %s", len(results)-failed, failed, time.Since(start).Round(time.Millisecond)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	f, parse := newBatchFlags("watch", "<dir>...")
	roots, err := parse(args)
	if err != nil {
		return err
	}
	p, opts, err := f.processor(ctx, e)
	if err != nil {
		return err
	}

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	}, e.logger)
	if err != nil {
		return err
	}

	docs, err := e.documents()
	if err != nil {
		return err
	}
	q := async.NewProcessorQueue(p, e.logger,
		async.WithBaseContext(ctx),
		async.WithWorkers(*f.workers),
		async.WithProcessTimeout(*f.timeout),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range q.Results() {
			e.report(r, *f.asJSON)
		}
	}()

	e.out.header("watching " + strings.Join(roots, ", "))
	seq := 0
loop:
	for {
		select {
		case path, ok := <-events:
			if !ok {
				break loop
			}
			// A file edited in place keeps its path; drop the cached result.
			docs.Invalidate(path)
			seq++
			if err := q.Enqueue(ctx, async.Job{Seq: seq, Path: path, Options: opts}); err != nil {
				e.logger.Warn("enqueue failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Warn("watcher error", "error", err)
		case <-ctx.Done():
			break loop
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)
	<-done
	return nil
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlags("history", "")
	limit := fs.Int("limit", 20, "number of records")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repo, err := e.historyRepo(ctx, true)
	if err != nil {
		return err
	}
	records, err := repo.List(ctx, *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return e.out.emitJSON(records)
	}
	var b strings.Builder
	b.WriteString("| 시각 | 파일 | 유형 | 방법 | 피드백 | ID |\n|---|---|---|---|---|---|\n")
	for _, r := range records {
		fb := "-"
		if r.FeedbackScore != nil {
			fb = fmt.Sprint(*r.FeedbackScore)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Filename, r.DocumentType, r.Method, fb, r.ID)
	}
	e.out.renderMarkdown(b.String())
	return nil
}
