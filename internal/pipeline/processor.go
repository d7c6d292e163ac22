// Package pipeline runs extraction, optional analysis and history recording
// for one document.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/repository"
)

// Documents is the part of document.Handler the pipeline needs.
type Documents interface {
	Process(ctx context.Context, path string, opts document.ProcessingOptions) (document.ProcessedDocument, error)
}

// Options selects the stages run for one document.
type Options struct {
	Extract document.ProcessingOptions
	Analyze bool
	Method  constants.AnalysisMethod
	// VerifyRounds > 0 runs the verification loop after analysis.
	VerifyRounds int
}

// Outcome is what one run produced. Analysis and RecordID are empty when
// the stage did not run.
type Outcome struct {
	Path     string                     `json:"path"`
	Document document.ProcessedDocument `json:"document"`
	Analysis *analysis.Result           `json:"analysis,omitempty"`
	RecordID uuid.UUID                  `json:"record_id,omitempty"`
}

// Processor coordinates extraction then analysis then history.
type Processor struct {
	Logger   *slog.Logger
	Docs     Documents
	Analyzer analysis.Service            // optional
	History  repository.HistoryRepository // optional
}

func NewProcessor(logger *slog.Logger, docs Documents, analyzer analysis.Service, history repository.HistoryRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Docs: docs, Analyzer: analyzer, History: history}
}

// Run processes path. A history write failure is logged and does not fail
// the run.
func (p *Processor) Run(ctx context.Context, path string, opts Options) (Outcome, error) {
	start := time.Now()
	out := Outcome{Path: path}

	doc, err := p.Docs.Process(ctx, path, opts.Extract)
	if err != nil {
		p.Logger.Error("pipeline.extract.failed", "path", path, "error", err)
		return out, err
	}
	out.Document = doc
	p.Logger.Info("pipeline.extract.ok",
		"path", path,
		"mode", doc.Capability.Mode,
		"degraded", doc.Capability.Degraded,
		"text_len", len(doc.Text),
	)

	if !opts.Analyze || p.Analyzer == nil {
		return out, nil
	}

	res, err := p.analyze(ctx, doc.Text, opts)
	if err != nil {
		p.Logger.Error("pipeline.analyze.failed", "path", path, "error", err)
		return out, err
	}
	out.Analysis = &res

	if p.History != nil {
		id, err := p.History.Save(ctx, HistoryRecord(filepath.Base(path), doc, res))
		if err != nil {
			p.Logger.Warn("pipeline.history.failed", "path", path, "error", err)
		} else {
			out.RecordID = id
		}
	}

	p.Logger.Info("pipeline.run.ok",
		"path", path,
		"document_type", res.DocumentType,
		"record_id", out.RecordID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) analyze(ctx context.Context, text string, opts Options) (analysis.Result, error) {
	if opts.VerifyRounds > 0 {
		return p.Analyzer.AnalyzeWithVerification(ctx, text, opts.Method, opts.VerifyRounds)
	}
	return p.Analyzer.Analyze(ctx, text, opts.Method)
}

// TextHash identifies the analyzed text in history rows.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
