package document

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// FallbackTextOnly runs where the native converter is unavailable. It reads
// text and metadata in process and always reports a degraded capability;
// images and tables are empty.
type FallbackTextOnly struct {
	cfg    Config
	reason string
	logger *slog.Logger
}

// NewFallback builds the text-only strategy directly.
func NewFallback(cfg Config, reason string, logger *slog.Logger) *FallbackTextOnly {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	if reason == "" {
		reason = "native document automation unavailable"
	}
	return &FallbackTextOnly{cfg: cfg, reason: reason, logger: logger}
}

func (f *FallbackTextOnly) Capability() Capability {
	return Capability{Mode: constants.ModeFallback, Degraded: true, Reason: f.reason}
}

func (f *FallbackTextOnly) Extract(ctx context.Context, p string, opts ProcessingOptions) (ProcessedDocument, error) {
	start := time.Now()
	format, err := DetectFormat(p)
	if err != nil {
		f.logger.Error("document.fallback.detect_failed", "path", p, "error", err)
		return ProcessedDocument{}, err
	}

	doc := newResult(f.Capability())
	switch format {
	case constants.HWP:
		pkg, err := readHWP(ctx, p, f.cfg.MaxStreamBytes)
		if err != nil {
			f.logger.Error("document.fallback.failed", "path", p, "error", err)
			return ProcessedDocument{}, err
		}
		if pkg.bodyLocked() {
			if _, err := pkg.lockedText(p); err != nil {
				return ProcessedDocument{}, err
			}
		}
		text, source := pkg.text()
		doc.Text = Normalize(text)
		doc.Metadata = pkg.metadata(p)
		if source == "prvtext" {
			doc.note("body text unavailable: returned the preview text stream")
		}
		for _, w := range pkg.warnings {
			doc.note(w)
		}
	default:
		pkg, err := readHWPX(ctx, p, false, f.cfg.MaxStreamBytes)
		if err != nil {
			f.logger.Error("document.fallback.failed", "path", p, "error", err)
			return ProcessedDocument{}, err
		}
		doc.Text = Normalize(pkg.text)
		doc.Metadata = pkg.metadata(p)
		for _, w := range pkg.warnings {
			doc.note(w)
		}
	}

	if opts.IncludeImages {
		doc.note("image extraction unavailable: " + f.reason)
	}
	doc.note("table extraction unavailable: " + f.reason)

	f.logger.Info("document.fallback.ok",
		"path", p,
		"format", format,
		"text_len", len(doc.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
