package analysis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

const (
	maxKeyTerms        = 5
	freshnessRunes     = 3000
	maxFigures         = 10
	searchFallbackNote = "[참고: 실시간 웹 검색을 이용할 수 없어 일반적인 정보를 제공합니다]"
)

var defaultKeyTerms = []string{"국책과제", "연구개발", "정부지원", "기술혁신"}

var (
	datePattern   = regexp.MustCompile(`\d{4}[./-]\d{1,2}[./-]\d{1,2}|\d{4}년\s*\d{1,2}월\s*\d{1,2}일|\b\d{2}[./-]\d{1,2}[./-]\d{1,2}`)
	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\s*원|\d+\s*(?:만|억|조)\s*원|\d+원|\d{1,3}(?:,\d{3})*\s*(?:달러|유로|엔)`)
)

// Compare contrasts two documents. Each side is cut to half the prompt budget.
func (a *Analyzer) Compare(ctx context.Context, x, y Subject) (Comparison, error) {
	x.Text, y.Text = strings.TrimSpace(x.Text), strings.TrimSpace(y.Text)
	if x.Text == "" || y.Text == "" {
		return Comparison{}, errEmptyText
	}
	half := a.cfg.MaxPromptRunes / 2
	prompt := BuildComparePrompt(
		Subject{Name: subjectName(x.Name, 1), Text: TruncateRunes(x.Text, half)},
		Subject{Name: subjectName(y.Name, 2), Text: TruncateRunes(y.Text, half)},
	)
	var out Comparison
	if err := a.generateJSON(ctx, "compare", DetectDocType(x.Text+"\n"+y.Text), prompt, compareSchema(), &out); err != nil {
		return Comparison{}, err
	}
	out.First, out.Second = subjectName(x.Name, 1), subjectName(y.Name, 2)
	return out, nil
}

func subjectName(name string, i int) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fmt.Sprintf("문서 %d", i)
}

// CheckFreshness rates how current text is. Key terms drive a web search
// whose summary is handed to the evaluation prompt with today's date.
func (a *Analyzer) CheckFreshness(ctx context.Context, text string, metadata map[string]string) (Freshness, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Freshness{}, errEmptyText
	}
	logger := common.LoggerFromContext(ctx, a.logger)
	sample := TruncateRunes(text, a.cfg.MaxPromptRunes)
	docType := DetectDocType(sample)

	terms := a.keyTerms(ctx, sample)
	latest, searched, err := a.searchWeb(ctx, terms)
	if err != nil {
		logger.Warn("analysis.freshness.search_failed", "error", err)
		latest = ""
	}

	date := a.now().Format("2006-01-02")
	var out struct {
		Score      int      `json:"freshness_score"`
		Outdated   []string `json:"outdated"`
		Missing    []string `json:"missing_updates"`
		Assessment string   `json:"assessment"`
	}
	prompt := BuildFreshnessPrompt(TruncateRunes(sample, freshnessRunes), metadata, terms, latest, date)
	if err := a.generateJSON(ctx, "freshness", docType, prompt, freshnessSchema(), &out); err != nil {
		return Freshness{}, err
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return Freshness{
		Score:         out.Score,
		Outdated:      nonNil(out.Outdated),
		Missing:       nonNil(out.Missing),
		Assessment:    strings.TrimSpace(out.Assessment),
		KeyTerms:      terms,
		LatestInfo:    latest,
		WebSearch:     searched,
		ReferenceDate: date,
		Metadata:      md,
	}, nil
}

// keyTerms falls back to a fixed list when extraction fails.
func (a *Analyzer) keyTerms(ctx context.Context, sample string) []string {
	var out struct {
		Terms []string `json:"key_terms"`
	}
	err := a.generateJSON(ctx, "key_terms", DetectDocType(sample), BuildKeyTermsPrompt(sample), keyTermsSchema(), &out)
	if err != nil {
		common.LoggerFromContext(ctx, a.logger).Warn("analysis.key_terms.fallback", "error", err)
		return append([]string(nil), defaultKeyTerms...)
	}
	terms := unique(out.Terms, maxKeyTerms)
	if len(terms) == 0 {
		return append([]string(nil), defaultKeyTerms...)
	}
	return terms
}

// searchWeb asks the search model about terms. When there is none, or it
// fails, the chat model answers instead and the reply is prefixed with a notice.
func (a *Analyzer) searchWeb(ctx context.Context, terms []string) (string, bool, error) {
	if a.searcher != nil {
		reply, err := a.generateText(ctx, a.searcher, "search", searchSystemPrompt, BuildSearchPrompt(terms))
		if err == nil {
			return reply, true, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		common.LoggerFromContext(ctx, a.logger).Warn("analysis.search.fallback", "error", err)
	}
	reply, err := a.generateText(ctx, a.chat, "search_fallback", searchSystemPrompt, BuildSearchFallbackPrompt(terms))
	if err != nil {
		return "", false, err
	}
	return searchFallbackNote + "\n\n" + reply, false, nil
}

// SuggestUpdates turns a freshness check into edits, using the dates and
// amounts found in the first part of text.
func (a *Analyzer) SuggestUpdates(ctx context.Context, text string, f Freshness) (UpdateSuggestions, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return UpdateSuggestions{}, errEmptyText
	}
	sample := TruncateRunes(text, a.cfg.MaxPromptRunes)
	dates := FindDates(sample)
	amounts := FindAmounts(sample)

	var out UpdateSuggestions
	if err := a.generateJSON(ctx, "suggest_updates", DetectDocType(sample), BuildUpdatesPrompt(f, dates, amounts), updatesSchema(), &out); err != nil {
		return UpdateSuggestions{}, err
	}
	out.Revise = nonNil(out.Revise)
	out.Additions = nonNil(out.Additions)
	out.Figures = nonNil(out.Figures)
	out.References = nonNil(out.References)
	out.Recommendation = strings.TrimSpace(out.Recommendation)
	out.Dates, out.Amounts = dates, amounts
	return out, nil
}

// FindDates returns up to ten distinct dates in order of appearance.
func FindDates(text string) []string {
	return unique(datePattern.FindAllString(text, -1), maxFigures)
}

// FindAmounts returns up to ten distinct money amounts in order of appearance.
func FindAmounts(text string) []string {
	return unique(amountPattern.FindAllString(text, -1), maxFigures)
}

func unique(items []string, limit int) []string {
	out := make([]string, 0, min(len(items), limit))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// generateText is a plain completion with no JSON contract.
func (a *Analyzer) generateText(ctx context.Context, m model.BaseChatModel, op, system, user string) (string, error) {
	logger := common.LoggerFromContext(ctx, a.logger)
	start := time.Now()
	callCtx, cancel := common.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	msg, err := m.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}, model.WithTemperature(a.cfg.Temperature))
	if err != nil {
		logger.Error("analysis.generate.error", "op", op, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", common.NewAppError("LLM_ERROR", op+" request failed", fmt.Errorf("%w: %w", common.ErrUpstream, err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", common.NewAppError("LLM_ERROR", op+" returned no content", common.ErrUpstream)
	}
	logger.Info("analysis.generate.ok", "op", op, "reply_len", len(msg.Content), "elapsed_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(msg.Content), nil
}
