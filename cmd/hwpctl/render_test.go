package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
)

func TestAnalysisMarkdown(t *testing.T) {
	reward := 0.72
	md := analysisMarkdown(analysis.Result{
		DocumentType: constants.DocTypeProject,
		Method:       constants.MethodRL,
		Summary:      "요약 내용",
		Analysis:     "분석 내용",
		Reward:       &reward,
		Verification: &analysis.Verification{Accuracy: 8, Completeness: 6, Consistency: 7, Issues: []string{"예산 누락"}},
	})
	for _, want := range []string{"국책과제", "## 요약", "요약 내용", "0.72", "| 8 | 6 | 7 | 7.0 |", "- 예산 누락"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## 권장사항") {
		t.Error("empty sections should be skipped")
	}
}

func TestAnswerMarkdown(t *testing.T) {
	md := answerMarkdown(analysis.Answer{
		Question: "예산은?",
		Answer:   "5억원",
		Sources:  []analysis.Passage{{Index: 2, Text: "총 사업비는\n5억원이다"}},
	})
	if !strings.Contains(md, "# 예산은?") || !strings.Contains(md, "> [3] 총 사업비는 5억원이다") {
		t.Errorf("markdown = %s", md)
	}
}

func TestFreshnessMarkdown(t *testing.T) {
	f := analysis.Freshness{
		Score:         4,
		Assessment:    "일부 정보가 오래됨",
		Outdated:      []string{"2021년 예산"},
		KeyTerms:      []string{"인공지능", "연구개발"},
		ReferenceDate: "2025-03-04",
	}
	md := freshnessMarkdown(f, nil)
	for _, want := range []string{"2025-03-04 기준", "4/10", "- 2021년 예산", "인공지능, 연구개발"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "추가되어야 할") || strings.Contains(md, "종합 권장사항") {
		t.Errorf("empty sections should be skipped:\n%s", md)
	}

	md = freshnessMarkdown(f, &analysis.UpdateSuggestions{Figures: []string{"3억원"}, Recommendation: "예산을 갱신하세요"})
	if !strings.Contains(md, "## 수치 데이터\n\n- 3억원") || !strings.Contains(md, "예산을 갱신하세요") {
		t.Errorf("suggestions missing:\n%s", md)
	}
}

func TestComparisonMarkdown(t *testing.T) {
	md := comparisonMarkdown(analysis.Comparison{First: "a.hwp", Second: "b.hwpx", Differences: "예산", Similarities: "목표", Evaluation: "a 우수"})
	for _, want := range []string{"a.hwp / b.hwpx", "## 주요 차이점\n\n예산", "## 종합 평가\n\na 우수"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a  b\nc", 10, "a b c"},
		{"가나다라마", 3, "가나다…"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := oneLine(tt.in, tt.n); got != tt.want {
			t.Errorf("oneLine(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true)
	if err := p.emitJSON(map[string]string{"html": "<b>"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"<b>"`) {
		t.Errorf("HTML should not be escaped: %s", buf.String())
	}
}

func TestInsightsMarkdown(t *testing.T) {
	md := insightsMarkdown([]string{"첫째", "둘째"})
	if !strings.Contains(md, "1. 첫째") || !strings.Contains(md, "2. 둘째") {
		t.Errorf("markdown = %s", md)
	}
}
