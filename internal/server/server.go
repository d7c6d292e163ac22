// Package server exposes document processing and analysis over HTTP and
// reports health over gRPC.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/export"
	"github.com/joseph-ayodele/hwp-analyzer/internal/ingest"
	"github.com/joseph-ayodele/hwp-analyzer/internal/repository"
)

// Version is reported by /api/status.
var Version = "1.0.0"

type Config struct {
	MaxUploadBytes        int64
	MaxConcurrentRequests int64
	RequestTimeout        time.Duration
	RateLimitPerMinute    int
	RateLimitBurst        int
	MaxJSONBodyBytes      int64
}

func (c *Config) applyDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = 8
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Minute
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 60
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.MaxJSONBodyBytes <= 0 {
		c.MaxJSONBodyBytes = 16 << 20
	}
}

// Deps are the services behind the API. Analyzer and History are optional;
// their endpoints answer 503 when unset.
type Deps struct {
	Documents *document.Handler
	Uploads   *ingest.UploadStore
	Exporter  *export.Service
	Analyzer  analysis.Service
	History   repository.HistoryRepository
}

type Server struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger

	requestSem *semaphore.Weighted
	limiters   *limiterSet

	mu       sync.Mutex
	requests int64
	active   int64
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(logger)
	}
	return &Server{
		deps:       deps,
		cfg:        cfg,
		logger:     logger,
		requestSem: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		limiters:   newLimiterSet(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}
}

// Handler builds the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	heavy := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withRateLimit(s.withConcurrencyLimit(s.withTimeout(h)))
	}
	mux.HandleFunc("POST /api/process-document", heavy(s.handleProcessDocument))
	mux.HandleFunc("POST /api/extract-text", heavy(s.handleExtractText))
	mux.HandleFunc("POST /api/extract-metadata", heavy(s.handleExtractMetadata))
	mux.HandleFunc("POST /api/export-tables", heavy(s.handleExportTables))
	mux.HandleFunc("POST /api/export-markdown", heavy(s.handleExportMarkdown))
	mux.HandleFunc("POST /api/analyze", heavy(s.handleAnalyze))
	mux.HandleFunc("POST /api/insights", heavy(s.handleInsights))
	mux.HandleFunc("POST /api/ask", heavy(s.handleAsk))
	mux.HandleFunc("POST /api/compare", heavy(s.handleCompare))
	mux.HandleFunc("POST /api/freshness", heavy(s.handleFreshness))

	mux.HandleFunc("GET /api/history", s.withRateLimit(s.handleListHistory))
	mux.HandleFunc("GET /api/history/{id}", s.withRateLimit(s.handleGetHistory))
	mux.HandleFunc("POST /api/history/{id}/feedback", s.withRateLimit(s.handleFeedback))
	mux.HandleFunc("GET /api/learning-dataset", s.withRateLimit(s.handleLearningDataset))

	return s.withRequestID(s.withLogging(s.withRecovery(mux)))
}

// SweepLimiters drops per-client limiters idle for longer than idle.
func (s *Server) SweepLimiters(idle time.Duration) int {
	return s.limiters.sweep(idle)
}

func (s *Server) incActive() {
	s.mu.Lock()
	s.active++
	s.requests++
	s.mu.Unlock()
}

func (s *Server) decActive() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *Server) counters() (total, active int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.active
}
