package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/async"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
)

type styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Err   lipgloss.Style
	Faint lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Bold(true),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
		OK:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		Err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
		Faint: lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).Italic(true),
	}
}

// printer writes either JSON or styled terminal output.
type printer struct {
	w        io.Writer
	json     bool
	st       styles
	markdown *glamour.TermRenderer
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	md, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0),
	)
	return &printer{w: w, json: asJSON, st: defaultStyles(), markdown: md}
}

func (p *printer) emitJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderMarkdown falls back to the raw text when glamour cannot render.
func (p *printer) renderMarkdown(md string) {
	if p.markdown != nil {
		if out, err := p.markdown.Render(md); err == nil {
			fmt.Fprint(p.w, out)
			return
		}
	}
	fmt.Fprintln(p.w, md)
}

func (p *printer) header(title string) {
	fmt.Fprintln(p.w, p.st.Title.Render(title))
}

func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.w, "%s %v\n", p.st.Label.Render(label+":"), value)
}

func (p *printer) capability(c document.Capability) {
	mode := p.st.OK.Render(string(c.Mode))
	if c.Degraded {
		mode = p.st.Warn.Render(string(c.Mode) + " (degraded)")
	}
	p.field("mode", mode)
	if c.Reason != "" {
		p.field("reason", p.st.Faint.Render(c.Reason))
	}
}

func (p *printer) notes(notes []string) {
	for _, n := range notes {
		fmt.Fprintln(p.w, p.st.Faint.Render("· "+n))
	}
}

func (p *printer) metadata(md map[string]string) {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.field(k, md[k])
	}
}

// analysisMarkdown lays out a Result as a markdown report.
func analysisMarkdown(r analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 분석 결과 (%s, %s)\n\n", r.DocumentType, r.Method)
	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, body)
	}
	section("요약", r.Summary)
	section("상세 분석", r.Analysis)
	section("권장사항", r.Recommendations)
	section("추론 과정", r.ThinkingProcess)
	if r.Reward != nil {
		fmt.Fprintf(&b, "**보상 점수:** %.2f\n\n", *r.Reward)
	}
	section("품질 피드백", r.RLFeedback)
	if v := r.Verification; v != nil {
		fmt.Fprintf(&b, "## 검증\n\n| 정확성 | 완전성 | 일관성 | 평균 |\n|---|---|---|---|\n| %d | %d | %d | %.1f |\n\n",
			v.Accuracy, v.Completeness, v.Consistency, v.Average())
		for _, i := range v.Issues {
			fmt.Fprintf(&b, "- %s\n", i)
		}
	}
	return b.String()
}

func insightsMarkdown(items []string) string {
	var b strings.Builder
	b.WriteString("# 핵심 인사이트\n\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it)
	}
	return b.String()
}

func answerMarkdown(a analysis.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", a.Question, a.Answer)
	if len(a.Sources) > 0 {
		b.WriteString("## 근거\n\n")
		for _, s := range a.Sources {
			fmt.Fprintf(&b, "> [%d] %s\n\n", s.Index+1, oneLine(s.Text, 160))
		}
	}
	return b.String()
}

func comparisonMarkdown(c analysis.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 문서 비교: %s / %s\n\n", c.First, c.Second)
	fmt.Fprintf(&b, "## 주요 차이점\n\n%s\n\n## 유사점\n\n%s\n\n## 종합 평가\n\n%s\n", c.Differences, c.Similarities, c.Evaluation)
	return b.String()
}

// freshnessMarkdown renders a freshness check; sug may be nil.
func freshnessMarkdown(f analysis.Freshness, sug *analysis.UpdateSuggestions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 최신성 평가 (%s 기준)\n\n**점수:** %d/10\n\n%s\n\n", f.ReferenceDate, f.Score, f.Assessment)
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
		b.WriteString("\n")
	}
	list("업데이트가 필요한 정보", f.Outdated)
	list("추가되어야 할 최신 정보", f.Missing)
	if len(f.KeyTerms) > 0 {
		fmt.Fprintf(&b, "**핵심 키워드:** %s\n\n", strings.Join(f.KeyTerms, ", "))
	}
	if sug == nil {
		return b.String()
	}
	list("수정 또는 삭제", sug.Revise)
	list("추가할 내용", sug.Additions)
	list("수치 데이터", sug.Figures)
	list("참고 자료", sug.References)
	if sug.Recommendation != "" {
		fmt.Fprintf(&b, "## 종합 권장사항\n\n%s\n", sug.Recommendation)
	}
	return b.String()
}

func (p *printer) batchResult(r async.Result) {
	name := r.Job.Path
	if r.Err != nil {
		fmt.Fprintf(p.w, "%s %s %s\n", p.st.Err.Render("✗"), name, p.st.Faint.Render(r.Err.Error()))
		return
	}
	doc := r.Outcome.Document
	line := fmt.Sprintf("%s %s %s", p.st.OK.Render("✓"), name,
		p.st.Faint.Render(fmt.Sprintf("%d chars, %d tables, %s", len([]rune(doc.Text)), len(doc.Tables), r.Elapsed.Round(time.Millisecond))))
	if a := r.Outcome.Analysis; a != nil {
		line += " " + p.st.Label.Render(string(a.DocumentType))
	}
	fmt.Fprintln(p.w, line)
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
