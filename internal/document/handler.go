package document

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/internal/cache"
)

// DefaultResultTTL is how long a processed document stays cached.
const DefaultResultTTL = time.Hour

type resultKey struct {
	Path    string
	Options ProcessingOptions
}

// Handler is the entry point for document processing: it validates options
// and memoizes extractor output per (path, options).
type Handler struct {
	extractor Extractor
	results   *cache.TTL[resultKey, ProcessedDocument]
	ttl       time.Duration
	logger    *slog.Logger
}

type handlerConfig struct {
	ttl   time.Duration
	clock cache.Clock
}

// HandlerOption configures a Handler.
type HandlerOption func(*handlerConfig)

func WithTTL(d time.Duration) HandlerOption {
	return func(c *handlerConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithClock(clock cache.Clock) HandlerOption {
	return func(c *handlerConfig) { c.clock = clock }
}

func NewHandler(ex Extractor, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := handlerConfig{ttl: DefaultResultTTL, clock: cache.SystemClock}
	for _, o := range opts {
		o(&cfg)
	}
	return &Handler{
		extractor: ex,
		results: cache.New[resultKey, ProcessedDocument](cfg.ttl,
			cache.WithClock(cfg.clock),
			cache.WithLogger(logger),
			cache.WithName("documents"),
		),
		ttl:    cfg.ttl,
		logger: logger,
	}
}

// Process returns the extraction result for path, reusing a cached value
// younger than the TTL. The path is compared verbatim.
func (h *Handler) Process(ctx context.Context, path string, opts ProcessingOptions) (ProcessedDocument, error) {
	if err := opts.Validate(); err != nil {
		return ProcessedDocument{}, err
	}
	start := time.Now()
	computed := false
	doc, err := h.results.GetOrCompute(resultKey{Path: path, Options: opts}, h.ttl, func() (ProcessedDocument, error) {
		computed = true
		return h.extractor.Extract(ctx, path, opts)
	})
	if err != nil {
		return ProcessedDocument{}, err
	}
	h.logger.Info("document.process.ok",
		"path", path,
		"cached", !computed,
		"mode", doc.Capability.Mode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// Capability reports the strategy selected at startup.
func (h *Handler) Capability() Capability {
	return h.extractor.Capability()
}

func (h *Handler) CacheStats() cache.Stats {
	return h.results.Stats()
}

// ClearCache drops every memoized result.
func (h *Handler) ClearCache() {
	h.results.Clear()
}

// SweepCache removes expired results and reports how many were dropped.
func (h *Handler) SweepCache() int {
	return h.results.Sweep()
}

// Invalidate drops the cached results for path under every option set. Use
// it when the file changed in place.
func (h *Handler) Invalidate(path string) int {
	n := h.results.DeleteFunc(func(k resultKey) bool { return k.Path == path })
	if n > 0 {
		h.logger.Debug("document.cache.invalidated", "path", path, "entries", n)
	}
	return n
}
