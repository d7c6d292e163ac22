package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	return &common.Config{
		Document: common.DocumentConfig{Platform: "linux", WorkDir: t.TempDir()},
		Cache:    common.CacheConfig{TTL: time.Minute},
		History:  common.HistoryConfig{Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "h.db")},
		LLM:      common.LLMConfig{Provider: "openai"},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDocumentsForcedFallback(t *testing.T) {
	h, err := Documents(testConfig(t), quiet())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if c := h.Capability(); c.Mode != constants.ModeFallback || !c.Degraded {
		t.Errorf("capability = %+v", c)
	}
}

func TestNewAnalysisWithoutKey(t *testing.T) {
	_, err := NewAnalysis(context.Background(), testConfig(t), quiet())
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestHistoryOpens(t *testing.T) {
	logger := quiet()
	db, repo, err := History(context.Background(), testConfig(t), logger)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	defer db.Close(logger)
	n, err := repo.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestAnalysisCloseNil(t *testing.T) {
	var a *Analysis
	if err := a.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}
