package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// NativeAutomation is the full-fidelity strategy. HWP bodies are rendered by
// the external converter; HWPX packages are parsed in process.
type NativeAutomation struct {
	cfg       Config
	converter string
	runner    Runner
	logger    *slog.Logger
}

func (n *NativeAutomation) Capability() Capability {
	return Capability{Mode: constants.ModeNative}
}

func (n *NativeAutomation) Extract(ctx context.Context, p string, opts ProcessingOptions) (ProcessedDocument, error) {
	start := time.Now()
	format, err := DetectFormat(p)
	if err != nil {
		n.logger.Error("document.native.detect_failed", "path", p, "error", err)
		return ProcessedDocument{}, err
	}
	n.logger.Debug("document.native.start", "path", p, "format", format, "include_images", opts.IncludeImages)

	var doc ProcessedDocument
	switch format {
	case constants.HWP:
		doc, err = n.extractHWP(ctx, p, opts)
	default:
		doc, err = n.extractHWPX(ctx, p, opts)
	}
	if err != nil {
		n.logger.Error("document.native.failed", "path", p, "format", format, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return ProcessedDocument{}, err
	}
	n.logger.Info("document.native.ok",
		"path", p,
		"format", format,
		"text_len", len(doc.Text),
		"images", len(doc.Images),
		"tables", len(doc.Tables),
		"degraded", doc.Capability.Degraded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (n *NativeAutomation) extractHWPX(ctx context.Context, p string, opts ProcessingOptions) (ProcessedDocument, error) {
	wantImages := opts.IncludeImages && opts.ImageLimit > 0
	pkg, err := readHWPX(ctx, p, wantImages, n.cfg.MaxStreamBytes)
	if err != nil {
		return ProcessedDocument{}, err
	}
	doc := newResult(n.Capability())
	doc.Text = Normalize(pkg.text)
	doc.Metadata = pkg.metadata(p)
	if pkg.tables != nil {
		doc.Tables = pkg.tables
	}
	for _, w := range pkg.warnings {
		doc.note(w)
	}
	images, note := selectImages(fromBytes(pkg.orderedImages()), opts)
	doc.Images = images
	if note != "" {
		doc.note(note)
	}
	return doc, nil
}

func (n *NativeAutomation) extractHWP(ctx context.Context, p string, opts ProcessingOptions) (ProcessedDocument, error) {
	pkg, err := readHWP(ctx, p, n.cfg.MaxStreamBytes)
	if err != nil {
		return ProcessedDocument{}, err
	}
	doc := newResult(n.Capability())
	doc.Metadata = pkg.metadata(p)
	for _, w := range pkg.warnings {
		doc.note(w)
	}

	if pkg.bodyLocked() {
		text, err := pkg.lockedText(p)
		if err != nil {
			return ProcessedDocument{}, err
		}
		doc.Text = Normalize(text)
		doc.Capability.Degraded = true
		doc.Capability.Reason = "document body is encrypted"
		doc.note("password or distribution protected document: only preview text is available")
		if opts.IncludeImages {
			doc.note("image extraction unavailable: document body is encrypted")
		}
		return doc, nil
	}

	outDir, err := os.MkdirTemp(n.cfg.WorkDir, "hwp5html-*")
	if err != nil {
		return ProcessedDocument{}, fmt.Errorf("create converter workdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outDir); err != nil {
			n.logger.Warn("document.native.cleanup_failed", "dir", outDir, "error", err)
		}
	}()

	_, stderr, runErr := n.runner.Run(ctx, n.converter, "--output", outDir, p)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ProcessedDocument{}, ctxErr
		}
		if errors.Is(runErr, exec.ErrNotFound) {
			return ProcessedDocument{}, &ExtractionError{Kind: KindDependencyMissing, Path: p, Err: runErr}
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = runErr.Error()
		}
		return n.degrade(pkg, doc, fmt.Sprintf("%s failed: %s", filepath.Base(n.converter), truncate(msg, 200))), nil
	}

	out, err := parseConverterOutput(outDir)
	if err != nil {
		return n.degrade(pkg, doc, err.Error()), nil
	}

	doc.Text = Normalize(out.text)
	if doc.Text == "" {
		text, _ := pkg.text()
		doc.Text = Normalize(text)
	}
	doc.Tables = out.tables

	if opts.IncludeImages {
		images, note := selectImages(n.imageSources(pkg, outDir, out.imageSrcs), opts)
		doc.Images = images
		if note != "" {
			doc.note(note)
		}
	}
	return doc, nil
}

// degrade keeps the in-process text when the converter cannot be used for
// this file; images and tables stay empty.
func (n *NativeAutomation) degrade(pkg *hwpPackage, doc ProcessedDocument, why string) ProcessedDocument {
	n.logger.Warn("document.native.degraded", "reason", why)
	text, _ := pkg.text()
	doc.Text = Normalize(text)
	doc.Capability.Degraded = true
	doc.Capability.Reason = "converter failed"
	doc.note(why + "; returned text only")
	return doc
}

// imageSources resolves each img src to the matching BinData stream, or to
// the file the converter wrote when the stream is missing.
func (n *NativeAutomation) imageSources(pkg *hwpPackage, outDir string, srcs []string) []imageSource {
	out := make([]imageSource, 0, len(srcs))
	for _, src := range srcs {
		out = append(out, func() ([]byte, error) {
			if data, ok := pkg.binItem(path.Base(src)); ok {
				return data, nil
			}
			f, err := os.Open(filepath.Join(outDir, filepath.FromSlash(src)))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return io.ReadAll(io.LimitReader(f, n.cfg.MaxStreamBytes))
		})
	}
	return out
}
