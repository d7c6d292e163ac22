package document

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

func TestDetectCapability(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		lookPath LookPathFunc
		want     constants.CapabilityMode
	}{
		{"converter present", Config{}, foundPath("hwp5html"), constants.ModeNative},
		{"converter missing", Config{}, missingPath, constants.ModeFallback},
		{"forced fallback", Config{ForceFallback: true}, foundPath("hwp5html"), constants.ModeFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DetectCapability(tt.cfg, tt.lookPath)
			if res.Mode != tt.want {
				t.Errorf("mode = %s, want %s", res.Mode, tt.want)
			}
			if res.Mode == constants.ModeFallback && res.Reason == "" {
				t.Error("fallback without reason")
			}
		})
	}
}

func TestNewExtractor(t *testing.T) {
	t.Run("native", func(t *testing.T) {
		ex, err := NewExtractor(Config{}, quietLogger(), WithLookPath(foundPath("hwp5html")))
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := ex.(*NativeAutomation); !ok {
			t.Fatalf("got %T, want *NativeAutomation", ex)
		}
		if c := ex.Capability(); c.Mode != constants.ModeNative || c.Degraded {
			t.Errorf("capability = %+v", c)
		}
	})
	t.Run("fallback", func(t *testing.T) {
		ex, err := NewExtractor(Config{}, quietLogger(), WithLookPath(missingPath))
		if err != nil {
			t.Fatal(err)
		}
		if c := ex.Capability(); c.Mode != constants.ModeFallback || !c.Degraded || c.Reason == "" {
			t.Errorf("capability = %+v", c)
		}
	})
	t.Run("require native", func(t *testing.T) {
		_, err := NewExtractor(Config{RequireNative: true}, quietLogger(), WithLookPath(missingPath))
		var ee *ExtractionError
		if !asExtractionError(err, &ee) || ee.Kind != KindDependencyMissing {
			t.Fatalf("err = %v, want dependency_missing", err)
		}
		if !errors.Is(err, common.ErrDependency) {
			t.Error("want common.ErrDependency")
		}
	})
}

func nativeExtractor(t *testing.T, r Runner) Extractor {
	t.Helper()
	ex, err := NewExtractor(Config{WorkDir: t.TempDir()}, quietLogger(),
		WithLookPath(foundPath("hwp5html")), WithRunner(r))
	if err != nil {
		t.Fatal(err)
	}
	return ex
}

func TestNativeHWP(t *testing.T) {
	dir := t.TempDir()
	bin := pngBytes(t, 160, 160)
	extra := pngBytes(t, 220, 110)
	p := writeHWP(t, dir, "plan.hwp", hwpFixture{
		paragraphs: []string{"body text"},
		binData:    map[string][]byte{"BIN0001.png": bin},
	})
	html := `<html><body><p>사업 개요</p>
<table><tr><td>a</td><td>b</td></tr></table>
<p><img src="bindata/BIN0001.png"/><img src="bindata/BIN0002.png"/></p></body></html>`
	runner := &fakeRunner{write: writeIndex(html, map[string][]byte{"bindata/BIN0002.png": extra})}
	ex := nativeExtractor(t, runner)

	doc, err := ex.Extract(context.Background(), p, ProcessingOptions{IncludeImages: true, ImageLimit: 10, ImageMinSize: 100})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "사업 개요" {
		t.Errorf("text = %q", doc.Text)
	}
	if !reflect.DeepEqual(doc.Tables, []Table{{{"a", "b"}}}) {
		t.Errorf("tables = %#v", doc.Tables)
	}
	if len(doc.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(doc.Images))
	}
	if doc.Images[0].Width != 160 || doc.Images[1].Width != 220 {
		t.Errorf("image order: %dx%d then %dx%d", doc.Images[0].Width, doc.Images[0].Height, doc.Images[1].Width, doc.Images[1].Height)
	}
	if doc.Capability.Mode != constants.ModeNative || doc.Capability.Degraded {
		t.Errorf("capability = %+v", doc.Capability)
	}
	if doc.Metadata[MetaFileType] != constants.HWP {
		t.Errorf("metadata = %v", doc.Metadata)
	}
	if runner.callCount() != 1 {
		t.Errorf("converter ran %d times", runner.callCount())
	}
}

func TestNativeHWPConverterFailureDegrades(t *testing.T) {
	p := writeHWP(t, t.TempDir(), "plan.hwp", hwpFixture{paragraphs: []string{"본문 내용"}})
	runner := &fakeRunner{err: errors.New("exit status 1"), errb: []byte("Traceback: boom")}
	ex := nativeExtractor(t, runner)

	doc, err := ex.Extract(context.Background(), p, ProcessingOptions{IncludeImages: true, ImageLimit: 3})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "본문 내용" {
		t.Errorf("text = %q", doc.Text)
	}
	if !doc.Capability.Degraded || len(doc.Images) != 0 || len(doc.Tables) != 0 {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Notes) == 0 || !strings.Contains(doc.Notes[len(doc.Notes)-1], "hwp5html failed: Traceback: boom") {
		t.Errorf("notes = %v", doc.Notes)
	}
}

func TestNativeHWPConverterNotFound(t *testing.T) {
	p := writeHWP(t, t.TempDir(), "plan.hwp", hwpFixture{paragraphs: []string{"x"}})
	runner := &fakeRunner{err: &exec.Error{Name: "hwp5html", Err: exec.ErrNotFound}}
	_, err := nativeExtractor(t, runner).Extract(context.Background(), p, DefaultOptions())
	var ee *ExtractionError
	if !asExtractionError(err, &ee) || ee.Kind != KindDependencyMissing {
		t.Fatalf("err = %v, want dependency_missing", err)
	}
}

func TestNativeHWPLockedSkipsConverter(t *testing.T) {
	p := writeHWP(t, t.TempDir(), "locked.hwp", hwpFixture{flags: hwpFlagDistribute, prvText: "배포용 문서"})
	runner := &fakeRunner{}
	opts := DefaultOptions()
	opts.IncludeImages = true
	doc, err := nativeExtractor(t, runner).Extract(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "배포용 문서" || !doc.Capability.Degraded {
		t.Errorf("doc = %+v", doc)
	}
	if runner.callCount() != 0 {
		t.Error("converter should not run for a locked body")
	}
	if len(doc.Images) != 0 {
		t.Errorf("images = %d, want none", len(doc.Images))
	}
	found := false
	for _, n := range doc.Notes {
		if strings.Contains(n, "image extraction unavailable") {
			found = true
		}
	}
	if !found {
		t.Errorf("notes = %v, want image extraction note", doc.Notes)
	}
}

func TestNativeHWPX(t *testing.T) {
	dir := t.TempDir()
	img1 := pngBytes(t, 150, 150)
	img2 := pngBytes(t, 200, 120)
	p := writeHWPX(t, dir, "plan.hwpx",
		zipEntry{"BinData/image1.png", img1},
		zipEntry{"BinData/image2.png", img2},
	)
	runner := &fakeRunner{}
	doc, err := nativeExtractor(t, runner).Extract(context.Background(), p, ProcessingOptions{IncludeImages: true, ImageLimit: 1, ImageMinSize: 100})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Images) != 1 || doc.Images[0].Width != 200 {
		t.Errorf("images = %+v", doc.Images)
	}
	if len(doc.Tables) != 1 {
		t.Errorf("tables = %d, want 1", len(doc.Tables))
	}
	if doc.Metadata[MetaAuthor] != "홍길동" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
	if runner.callCount() != 0 {
		t.Error("hwpx should be parsed in process")
	}
}

func TestFallbackTextOnly(t *testing.T) {
	dir := t.TempDir()
	hwp := writeHWP(t, dir, "a.hwp", hwpFixture{paragraphs: []string{"제목", "내용"}})
	hwpx := writeHWPX(t, dir, "b.hwpx", zipEntry{"BinData/image1.png", pngBytes(t, 300, 300)})
	empty := writeHWP(t, dir, "empty.hwp", hwpFixture{})

	ex, err := NewExtractor(Config{ForceFallback: true}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	opts := ProcessingOptions{IncludeImages: true, ImageLimit: 10, ImageMinSize: 1}

	t.Run("hwp", func(t *testing.T) {
		doc, err := ex.Extract(context.Background(), hwp, opts)
		if err != nil {
			t.Fatal(err)
		}
		if doc.Text != "제목\n내용" {
			t.Errorf("text = %q", doc.Text)
		}
		assertDegradedTextOnly(t, doc)
	})
	t.Run("hwpx", func(t *testing.T) {
		doc, err := ex.Extract(context.Background(), hwpx, opts)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(doc.Text, "연구 개요") {
			t.Errorf("text = %q", doc.Text)
		}
		if doc.Metadata[MetaTitle] != "국가연구개발 과제 계획서" {
			t.Errorf("metadata = %v", doc.Metadata)
		}
		assertDegradedTextOnly(t, doc)
	})
	t.Run("empty document", func(t *testing.T) {
		doc, err := ex.Extract(context.Background(), empty, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if doc.Text != "" {
			t.Errorf("text = %q, want empty", doc.Text)
		}
	})
	t.Run("unsupported", func(t *testing.T) {
		_, err := ex.Extract(context.Background(), writeZip(t, dir, "x.hwpx", zipEntry{"a.txt", nil}), opts)
		if !errors.Is(err, common.ErrUnsupported) {
			t.Errorf("err = %v, want unsupported", err)
		}
	})
}

func assertDegradedTextOnly(t *testing.T, doc ProcessedDocument) {
	t.Helper()
	if doc.Capability.Mode != constants.ModeFallback || !doc.Capability.Degraded {
		t.Errorf("capability = %+v", doc.Capability)
	}
	if doc.Images == nil || len(doc.Images) != 0 || doc.Tables == nil || len(doc.Tables) != 0 {
		t.Errorf("images=%v tables=%v, want empty", doc.Images, doc.Tables)
	}
	var sawImages, sawTables bool
	for _, n := range doc.Notes {
		sawImages = sawImages || strings.HasPrefix(n, "image extraction unavailable")
		sawTables = sawTables || strings.HasPrefix(n, "table extraction unavailable")
	}
	if !sawImages || !sawTables {
		t.Errorf("notes = %v", doc.Notes)
	}
}

func TestLockedWithoutPreviewIsUnreadable(t *testing.T) {
	p := writeHWP(t, t.TempDir(), "locked.hwp", hwpFixture{flags: hwpFlagPassword, paragraphs: []string{"secret"}})
	for name, ex := range map[string]Extractor{
		"native":   nativeExtractor(t, &fakeRunner{}),
		"fallback": NewFallback(Config{}, "", quietLogger()),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Extract(context.Background(), p, DefaultOptions())
			var ee *ExtractionError
			if !asExtractionError(err, &ee) || ee.Kind != KindUnreadable {
				t.Fatalf("err = %v, want unreadable", err)
			}
		})
	}
}
