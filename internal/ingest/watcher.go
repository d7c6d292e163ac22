package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts
	Buffer      int           // event channel size; default 256
}

// StartWatcher emits the paths of new or changed HWP/HWPX files under the
// roots. Both channels close when ctx is done. When the event buffer is full
// the path is dropped and logged.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	evCh := make(chan string, cfg.Buffer)
	errCh := make(chan error, 1)

	emit := func(p string) {
		select {
		case evCh <- p:
		default:
			logger.Warn("watcher buffer full, dropping event", "path", p)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	addDir := func(root string, scan bool) error {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && IsHidden(path) {
				return filepath.SkipDir
			}
			return w.Add(path)
		})
		if err != nil || !scan {
			return err
		}
		paths, stats, err := ScanDirectory(root, true)
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			logger.Warn("watcher scan skipped unreadable entries", "root", root, "failed", stats.Failed)
		}
		for _, p := range paths {
			emit(p)
		}
		return nil
	}
	for _, r := range cfg.Roots {
		if err := addDir(r, cfg.InitialScan); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("watcher started", "roots", cfg.Roots, "debounce", cfg.Debounce)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		// pending is only touched by this goroutine; the timer just signals.
		pending := map[string]struct{}{}
		timer := time.NewTimer(time.Hour)
		timer.Stop()

		flush := func() {
			for p := range pending {
				emit(p)
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) && !IsHidden(e.Name) {
					// New directories are watched too, and files already in them are picked up.
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := addDir(e.Name, true); err != nil {
							logger.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !candidate(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce > 0 {
					timer.Reset(cfg.Debounce)
				} else {
					flush()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
