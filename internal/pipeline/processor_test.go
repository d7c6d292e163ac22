package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/entity"
)

type fakeDocs struct {
	err error
}

func (f fakeDocs) Process(_ context.Context, path string, _ document.ProcessingOptions) (document.ProcessedDocument, error) {
	if f.err != nil {
		return document.ProcessedDocument{}, f.err
	}
	return document.ProcessedDocument{
		Text:     "국책과제 본문",
		Metadata: map[string]string{document.MetaFilename: "plan.hwp", document.MetaFileType: "HWP"},
	}, nil
}

type fakeAnalyzer struct {
	analysis.Service
	verified int
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string, method constants.AnalysisMethod) (analysis.Result, error) {
	if f.err != nil {
		return analysis.Result{}, f.err
	}
	return analysis.Result{DocumentType: constants.DocTypeProject, Method: method, Summary: "요약"}, nil
}

func (f *fakeAnalyzer) AnalyzeWithVerification(ctx context.Context, text string, method constants.AnalysisMethod, rounds int) (analysis.Result, error) {
	f.verified = rounds
	return f.Analyze(ctx, text, method)
}

type fakeHistory struct {
	saved []*entity.AnalysisRecord
	err   error
}

func (f *fakeHistory) Save(_ context.Context, rec *entity.AnalysisRecord) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.saved = append(f.saved, rec)
	return uuid.New(), nil
}

func (f *fakeHistory) Get(context.Context, uuid.UUID) (*entity.AnalysisRecord, error) { return nil, nil }
func (f *fakeHistory) List(context.Context, int) ([]*entity.AnalysisRecord, error)   { return nil, nil }
func (f *fakeHistory) Count(context.Context) (int, error)                             { return len(f.saved), nil }
func (f *fakeHistory) RecordFeedback(context.Context, uuid.UUID, int, string) error   { return nil }
func (f *fakeHistory) LearningDataset(context.Context, int) ([]entity.LearningExample, error) {
	return nil, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunExtractOnly(t *testing.T) {
	an := &fakeAnalyzer{}
	hist := &fakeHistory{}
	p := NewProcessor(quietLogger(), fakeDocs{}, an, hist)

	out, err := p.Run(context.Background(), "/in/plan.hwp", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Document.Text != "국책과제 본문" || out.Analysis != nil || out.RecordID != uuid.Nil {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(hist.saved) != 0 {
		t.Error("history must not be written without analysis")
	}
}

func TestRunWithAnalysis(t *testing.T) {
	an := &fakeAnalyzer{}
	hist := &fakeHistory{}
	p := NewProcessor(quietLogger(), fakeDocs{}, an, hist)

	out, err := p.Run(context.Background(), "/in/plan.hwp", Options{Analyze: true, Method: constants.MethodCoT, VerifyRounds: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Analysis == nil || out.Analysis.Method != constants.MethodCoT {
		t.Fatalf("expected cot analysis, got %+v", out.Analysis)
	}
	if an.verified != 2 {
		t.Errorf("expected verification with 2 rounds, got %d", an.verified)
	}
	if out.RecordID == uuid.Nil || len(hist.saved) != 1 {
		t.Fatalf("expected one history row, got %d", len(hist.saved))
	}
	rec := hist.saved[0]
	if rec.Filename != "plan.hwp" || rec.FileType != "HWP" || rec.TextHash != TextHash("국책과제 본문") || rec.Method != "cot" {
		t.Errorf("unexpected history record %+v", rec)
	}
}

func TestRunErrors(t *testing.T) {
	extractErr := errors.New("bad file")
	analyzeErr := errors.New("model down")

	tests := []struct {
		name    string
		docs    fakeDocs
		an      *fakeAnalyzer
		hist    *fakeHistory
		wantErr error
		wantDoc bool
	}{
		{name: "extract fails", docs: fakeDocs{err: extractErr}, an: &fakeAnalyzer{}, hist: &fakeHistory{}, wantErr: extractErr},
		{name: "analysis fails", an: &fakeAnalyzer{err: analyzeErr}, hist: &fakeHistory{}, wantErr: analyzeErr, wantDoc: true},
		{name: "history fails", an: &fakeAnalyzer{}, hist: &fakeHistory{err: errors.New("disk full")}, wantDoc: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(quietLogger(), tt.docs, tt.an, tt.hist)
			out, err := p.Run(context.Background(), "plan.hwp", Options{Analyze: true})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantDoc != (out.Document.Text != "") {
				t.Errorf("document presence = %v, want %v", out.Document.Text != "", tt.wantDoc)
			}
		})
	}
}

func TestRunWithoutAnalyzer(t *testing.T) {
	p := NewProcessor(quietLogger(), fakeDocs{}, nil, nil)
	out, err := p.Run(context.Background(), "plan.hwp", Options{Analyze: true})
	if err != nil || out.Analysis != nil {
		t.Fatalf("expected extract-only run, got %+v, %v", out, err)
	}
}
