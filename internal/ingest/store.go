package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

// ErrTooLarge is returned when an upload exceeds the store's size limit.
var ErrTooLarge = common.NewAppError("FILE_TOO_LARGE", "uploaded file is too large", common.ErrInvalidInput)

// StoredFile is an upload saved under its content hash.
type StoredFile struct {
	Path         string
	HashHex      string
	Size         int64
	Ext          string
	Deduplicated bool
}

// UploadStore keeps uploads as <dir>/<sha256>.<ext> so identical content
// maps to the same path, and therefore the same result cache entry.
type UploadStore struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadStore(dir string, maxBytes int64, logger *slog.Logger) (*UploadStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &UploadStore{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

func (s *UploadStore) Dir() string { return s.dir }

// Save copies r into the store. filename only supplies the extension, which
// must be hwp or hwpx.
func (s *UploadStore) Save(r io.Reader, filename string) (StoredFile, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if !AllowedExt(ext) {
		return StoredFile{}, common.NewAppError("UNSUPPORTED_FILE_TYPE",
			"only .hwp and .hwpx files are supported", common.ErrUnsupported)
	}

	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), src)
	if err != nil {
		return StoredFile{}, fmt.Errorf("write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return StoredFile{}, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return StoredFile{}, fmt.Errorf("close upload: %w", err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	out := StoredFile{
		Path:    filepath.Join(s.dir, sum+"."+ext),
		HashHex: sum,
		Size:    n,
		Ext:     ext,
	}
	if _, err := os.Stat(out.Path); err == nil {
		out.Deduplicated = true
		now := time.Now()
		if err := os.Chtimes(out.Path, now, now); err != nil {
			s.logger.Warn("upload touch failed", "path", out.Path, "error", err)
		}
		s.logger.Debug("upload deduplicated", "hash", sum)
		return out, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return StoredFile{}, err
	}
	if err := os.Rename(tmp.Name(), out.Path); err != nil {
		return StoredFile{}, fmt.Errorf("store upload: %w", err)
	}
	s.logger.Debug("upload stored", "hash", sum, "size", n)
	return out, nil
}

// Prune removes stored uploads and abandoned temp files whose modification
// time is older than olderThan. Save refreshes the time of deduplicated
// uploads, so files still being uploaded again are kept.
func (s *UploadStore) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("upload prune failed", "path", p, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("uploads pruned", "removed", removed)
	}
	return removed, nil
}
