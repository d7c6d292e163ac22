package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// Extractor turns a document on disk into a ProcessedDocument.
type Extractor interface {
	Extract(ctx context.Context, path string, opts ProcessingOptions) (ProcessedDocument, error)
	Capability() Capability
}

// Config controls extractor selection and limits.
type Config struct {
	Converter      string // native converter binary; default "hwp5html"
	WorkDir        string // scratch space for converter output; default os.TempDir()
	ForceFallback  bool   // PLATFORM=linux or HWP_FEATURE_LIMITED=true
	RequireNative  bool   // fail instead of degrading when the converter is missing
	MaxStreamBytes int64  // per-stream read cap; default 64MB
}

func (c *Config) applyDefaults() {
	if c.Converter == "" {
		c.Converter = "hwp5html"
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.MaxStreamBytes <= 0 {
		c.MaxStreamBytes = defaultMaxStreamBytes
	}
}

// LookPathFunc resolves an executable name.
type LookPathFunc func(file string) (string, error)

// DetectionResult records which strategy the environment supports.
type DetectionResult struct {
	Mode          constants.CapabilityMode
	ConverterPath string
	Reason        string
}

// DetectCapability decides between native and fallback extraction once, at startup.
func DetectCapability(cfg Config, lookPath LookPathFunc) DetectionResult {
	cfg.applyDefaults()
	if cfg.ForceFallback {
		return DetectionResult{Mode: constants.ModeFallback, Reason: "limited feature mode forced by environment"}
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	p, err := lookPath(cfg.Converter)
	if err != nil {
		return DetectionResult{Mode: constants.ModeFallback, Reason: fmt.Sprintf("native converter %q not available", cfg.Converter)}
	}
	return DetectionResult{Mode: constants.ModeNative, ConverterPath: p}
}

type extractorDeps struct {
	runner   Runner
	lookPath LookPathFunc
}

// ExtractorOption overrides collaborators, mostly for tests.
type ExtractorOption func(*extractorDeps)

func WithRunner(r Runner) ExtractorOption {
	return func(d *extractorDeps) {
		if r != nil {
			d.runner = r
		}
	}
}

func WithLookPath(fn LookPathFunc) ExtractorOption {
	return func(d *extractorDeps) {
		if fn != nil {
			d.lookPath = fn
		}
	}
}

// NewExtractor checks the environment and returns the NativeAutomation or
// FallbackTextOnly strategy. It fails only when cfg.RequireNative is set and
// the converter is missing.
func NewExtractor(cfg Config, logger *slog.Logger, opts ...ExtractorOption) (Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	deps := extractorDeps{runner: ExecRunner{Logger: logger}, lookPath: exec.LookPath}
	for _, o := range opts {
		o(&deps)
	}

	res := DetectCapability(cfg, deps.lookPath)
	logger.Info("document.capability",
		"mode", res.Mode,
		"converter", cfg.Converter,
		"converter_path", res.ConverterPath,
		"reason", res.Reason,
	)
	if res.Mode == constants.ModeNative {
		return &NativeAutomation{cfg: cfg, converter: res.ConverterPath, runner: deps.runner, logger: logger}, nil
	}
	if cfg.RequireNative && !cfg.ForceFallback {
		return nil, &ExtractionError{Kind: KindDependencyMissing, Err: errors.New(res.Reason)}
	}
	return &FallbackTextOnly{cfg: cfg, reason: res.Reason, logger: logger}, nil
}
