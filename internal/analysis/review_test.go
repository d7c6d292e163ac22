package analysis

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const (
	freshnessReply = `{"freshness_score":"4","outdated":["2021년 예산 기준"],"missing_updates":["2025년 지원사업 공고"],"assessment":"일부 정보가 오래됨"}`
	updatesReply   = `{"revise":["2021년 예산 삭제"],"additions":["신규 지원사업"],"figures":["3억원 재확인"],"references":["2025 시행계획"],"recommendation":"예산과 일정을 갱신하세요"}`
)

func fixedNow() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }

func TestCompare(t *testing.T) {
	chat := &scriptedChat{replies: []string{`{"differences":"예산 차이","similarities":"목표 유사","evaluation":"문서 1이 구체적"}`}}
	a := newTestAnalyzer(chat, Config{MaxPromptRunes: 40})

	long := strings.Repeat("가", 100)
	got, err := a.Compare(context.Background(), Subject{Name: "a.hwp", Text: projectText}, Subject{Text: long})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	want := Comparison{First: "a.hwp", Second: "문서 2", Differences: "예산 차이", Similarities: "목표 유사", Evaluation: "문서 1이 구체적"}
	if got != want {
		t.Errorf("Compare() = %+v, want %+v", got, want)
	}
	if strings.Contains(chat.prompts[0], strings.Repeat("가", 21)) {
		t.Error("each document should be cut to half the prompt budget")
	}
	if !strings.Contains(chat.prompts[0], "## 문서 1: a.hwp") {
		t.Errorf("prompt does not name the first document: %q", chat.prompts[0])
	}

	if _, err := a.Compare(context.Background(), Subject{Text: "가"}, Subject{Text: "  "}); !errors.Is(err, errEmptyText) {
		t.Errorf("expected empty text error, got %v", err)
	}
}

func TestCheckFreshnessWithSearch(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"key_terms":["인공지능","문서 분석","인공지능"]}`,
		freshnessReply,
	}}
	search := &scriptedChat{replies: []string{"2025년 인공지능 지원 정책 발표"}}
	a := newTestAnalyzer(chat, Config{}, WithSearcher(search), WithNow(fixedNow))

	md := map[string]string{"title": "연구개발 계획서", "author": "홍길동"}
	f, err := a.CheckFreshness(context.Background(), projectText, md)
	if err != nil {
		t.Fatalf("CheckFreshness failed: %v", err)
	}
	if f.Score != 4 {
		t.Errorf("score = %d, want 4", f.Score)
	}
	if !f.WebSearch || f.LatestInfo != "2025년 인공지능 지원 정책 발표" {
		t.Errorf("expected search result, got %+v", f)
	}
	if want := []string{"인공지능", "문서 분석"}; !reflect.DeepEqual(f.KeyTerms, want) {
		t.Errorf("key terms = %v, want %v", f.KeyTerms, want)
	}
	if f.ReferenceDate != "2025-03-04" {
		t.Errorf("reference date = %q", f.ReferenceDate)
	}
	if len(f.Outdated) != 1 || len(f.Missing) != 1 || f.Assessment != "일부 정보가 오래됨" {
		t.Errorf("unexpected evaluation: %+v", f)
	}
	if f.Metadata["title"] != "연구개발 계획서" {
		t.Errorf("metadata not carried: %v", f.Metadata)
	}
	if !strings.Contains(search.prompts[0], "인공지능 문서 분석") {
		t.Errorf("search prompt = %q", search.prompts[0])
	}
	eval := chat.prompts[1]
	for _, want := range []string{"2025-03-04", "연구개발 계획서", "홍길동", "알 수 없음", "2025년 인공지능 지원 정책 발표"} {
		if !strings.Contains(eval, want) {
			t.Errorf("evaluation prompt missing %q", want)
		}
	}
}

func TestCheckFreshnessFallbacks(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"핵심 용어를 찾지 못했습니다",
		"일반적인 정책 동향",
		freshnessReply,
	}}
	search := &scriptedChat{err: errors.New("search quota exceeded")}
	a := newTestAnalyzer(chat, Config{}, WithSearcher(search), WithNow(fixedNow))

	f, err := a.CheckFreshness(context.Background(), projectText, nil)
	if err != nil {
		t.Fatalf("CheckFreshness failed: %v", err)
	}
	if !reflect.DeepEqual(f.KeyTerms, defaultKeyTerms) {
		t.Errorf("key terms = %v, want defaults", f.KeyTerms)
	}
	if f.WebSearch {
		t.Error("fallback answer must not be marked as web search")
	}
	if !strings.HasPrefix(f.LatestInfo, searchFallbackNote) || !strings.HasSuffix(f.LatestInfo, "일반적인 정책 동향") {
		t.Errorf("latest info = %q", f.LatestInfo)
	}
	if chat.calls() != 3 {
		t.Errorf("expected 3 chat calls, got %d", chat.calls())
	}
}

func TestCheckFreshnessEmpty(t *testing.T) {
	a := newTestAnalyzer(&scriptedChat{}, Config{})
	if _, err := a.CheckFreshness(context.Background(), " \n", nil); !errors.Is(err, errEmptyText) {
		t.Errorf("expected empty text error, got %v", err)
	}
}

func TestSuggestUpdates(t *testing.T) {
	chat := &scriptedChat{replies: []string{updatesReply}}
	a := newTestAnalyzer(chat, Config{})

	text := "사업기간: 2021.03.01 ~ 2023년 2월 28일\n총 사업비 3억원, 정부출연금 150,000,000원\n2021.03.01 착수"
	f := Freshness{Score: 4, Assessment: "일부 정보가 오래됨", Outdated: []string{"2021년 예산 기준"}}
	got, err := a.SuggestUpdates(context.Background(), text, f)
	if err != nil {
		t.Fatalf("SuggestUpdates failed: %v", err)
	}
	if got.Recommendation != "예산과 일정을 갱신하세요" || len(got.Revise) != 1 || len(got.References) != 1 {
		t.Errorf("unexpected suggestions: %+v", got)
	}
	if want := []string{"2021.03.01", "2023년 2월 28일"}; !reflect.DeepEqual(got.Dates, want) {
		t.Errorf("dates = %v, want %v", got.Dates, want)
	}
	if want := []string{"3억원", "150,000,000원"}; !reflect.DeepEqual(got.Amounts, want) {
		t.Errorf("amounts = %v, want %v", got.Amounts, want)
	}
	for _, want := range []string{"[최신성 평가] 4점", "2021년 예산 기준", "2023년 2월 28일", "150,000,000원"} {
		if !strings.Contains(chat.prompts[0], want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFindFigures(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		dates, amounts []string
	}{
		{"none", "숫자가 없는 문서", []string{}, []string{}},
		{"date forms", "2024-01-15, 2024/2/3, 24.05.06", []string{"2024-01-15", "2024/2/3", "24.05.06"}, []string{}},
		{"currencies", "5만 원, 1,200달러, 700원", []string{}, []string{"5만 원", "1,200달러", "700원"}},
		{"capped", strings.Repeat("2024.01.01 ", 3) + "2024.01.02 2024.01.03 2024.01.04 2024.01.05 2024.01.06 2024.01.07 2024.01.08 2024.01.09 2024.01.10 2024.01.11 2024.01.12",
			[]string{"2024.01.01", "2024.01.02", "2024.01.03", "2024.01.04", "2024.01.05", "2024.01.06", "2024.01.07", "2024.01.08", "2024.01.09", "2024.01.10"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDates(tt.text); !reflect.DeepEqual(got, tt.dates) {
				t.Errorf("FindDates() = %v, want %v", got, tt.dates)
			}
			if got := FindAmounts(tt.text); !reflect.DeepEqual(got, tt.amounts) {
				t.Errorf("FindAmounts() = %v, want %v", got, tt.amounts)
			}
		})
	}
}
