package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

type rewardWeight struct {
	key    string
	desc   string
	weight float64
}

// rewardWeights sum to 1 and turn the quality rubric into a 0..1 reward.
var rewardWeights = []rewardWeight{
	{"structure", "문서의 구조를 얼마나 잘 파악했는지", 0.2},
	{"consistency", "분석 과정에서 논리적 모순이 없는지", 0.3},
	{"evidence", "원문 인용 등 근거를 얼마나 제시했는지", 0.25},
	{"coverage", "문서의 핵심 정보를 누락없이 포함했는지", 0.15},
	{"practicality", "제안 사항이 실제로 적용 가능한지", 0.1},
}

const highRewardNote = "분석 결과가 이미 높은 품질로 평가되어 추가 개선이 필요하지 않습니다."

// Config tunes prompt sizes and refinement thresholds.
type Config struct {
	Temperature     float32
	Timeout         time.Duration // per model call
	MaxPromptRunes  int           // insights, verification; default 10000
	MaxAnalyzeRunes int           // longer text is reduced to its first chunks; default 30000
	ChunkRunes      int           // default 4000
	ChunkOverlap    int           // default 200
	MaxChunks       int           // chunks kept for analysis; default 5
	TopK            int           // passages used by Ask; default 3
	RewardThreshold float64       // rl/hybrid refine below this; default 0.8
	VerifyThreshold float64       // verification loop stops at this average; default 8.5
	ClassifyWithLLM bool          // add a model vote to keyword doc type scoring
}

func (c *Config) applyDefaults() {
	if c.MaxPromptRunes <= 0 {
		c.MaxPromptRunes = 10000
	}
	if c.MaxAnalyzeRunes <= 0 {
		c.MaxAnalyzeRunes = 30000
	}
	if c.ChunkRunes <= 0 {
		c.ChunkRunes = 4000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkRunes {
		c.ChunkOverlap = 200
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 5
	}
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.RewardThreshold <= 0 {
		c.RewardThreshold = 0.8
	}
	if c.VerifyThreshold <= 0 {
		c.VerifyThreshold = 8.5
	}
}

// Analyzer implements Service on top of an eino chat model.
type Analyzer struct {
	chat     model.BaseChatModel
	embedder embedding.Embedder
	searcher model.BaseChatModel
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithEmbedder enables embedding retrieval for Ask.
func WithEmbedder(e embedding.Embedder) Option {
	return func(a *Analyzer) { a.embedder = e }
}

// WithSearcher sets the web search model used by CheckFreshness. Without one
// the chat model answers from its own knowledge.
func WithSearcher(m model.BaseChatModel) Option {
	return func(a *Analyzer) { a.searcher = m }
}

// WithNow overrides the reference date source.
func WithNow(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(chat model.BaseChatModel, cfg Config, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	a := &Analyzer{chat: chat, cfg: cfg, logger: logger, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

var errEmptyText = common.NewAppError("INVALID_INPUT", "document text is empty", common.ErrInvalidInput)

func (a *Analyzer) Analyze(ctx context.Context, text string, method constants.AnalysisMethod) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, errEmptyText
	}
	if method == "" {
		method = constants.MethodHybrid
	}
	if _, ok := constants.ParseMethod(string(method)); !ok {
		return Result{}, common.NewAppError("INVALID_INPUT", fmt.Sprintf("unknown analysis method %q", method), common.ErrInvalidInput)
	}
	start := time.Now()

	if len([]rune(text)) > a.cfg.MaxAnalyzeRunes {
		chunks := SplitText(text, a.cfg.ChunkRunes, a.cfg.ChunkOverlap)
		text = strings.Join(chunks[:min(len(chunks), a.cfg.MaxChunks)], " ")
	}
	docType := a.detectDocType(ctx, text)

	prompt := BuildAnalysisPrompt(method, docType, text)
	if method == constants.MethodRL {
		prompt = BuildAnalysisPrompt(constants.MethodStandard, docType, text)
	}
	res, err := a.generateAnalysis(ctx, "analyze", docType, prompt)
	if err != nil {
		return Result{}, err
	}
	res.DocumentType = docType
	res.Method = method

	if method == constants.MethodRL || method == constants.MethodHybrid {
		res = a.applyReward(ctx, res, text)
	}

	a.logger.Info("analysis.analyze.ok",
		"method", method,
		"document_type", docType,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// detectDocType scores keywords and, when enabled, adds a bonus to the
// family the model picks. A failed model vote is ignored.
func (a *Analyzer) detectDocType(ctx context.Context, text string) constants.DocType {
	scores := ScoreDocTypes(text)
	if a.cfg.ClassifyWithLLM {
		var out struct {
			DocumentType string `json:"document_type"`
		}
		err := a.generateJSON(ctx, "classify", constants.DocTypeProject,
			BuildDocTypePrompt(TruncateRunes(text, 5000)), docTypeSchema(), &out)
		if err != nil {
			a.logger.Warn("analysis.classify.skipped", "error", err)
		} else if t, ok := constants.ParseDocType(out.DocumentType); ok {
			scores[t] += classifierBonus
		}
	}
	return pickDocType(scores)
}

func (a *Analyzer) generateAnalysis(ctx context.Context, op string, docType constants.DocType, prompt string) (Result, error) {
	var out struct {
		Analysis        string `json:"analysis"`
		Summary         string `json:"summary"`
		Recommendations string `json:"recommendations"`
		ThinkingProcess string `json:"thinking_process"`
	}
	if err := a.generateJSON(ctx, op, docType, prompt, analysisSchema(), &out); err != nil {
		return Result{}, err
	}
	return Result{
		Analysis:        out.Analysis,
		Summary:         out.Summary,
		Recommendations: out.Recommendations,
		ThinkingProcess: out.ThinkingProcess,
	}, nil
}

// applyReward scores the analysis with the quality rubric and rewrites it
// once when the weighted reward is below the threshold. Failures keep the
// original analysis.
func (a *Analyzer) applyReward(ctx context.Context, res Result, text string) Result {
	reward, feedback, err := a.evaluateQuality(ctx, res, text)
	if err != nil {
		a.logger.Warn("analysis.reward.skipped", "error", err)
		return res
	}
	a.logger.Info("analysis.reward", "reward", reward, "threshold", a.cfg.RewardThreshold)
	if reward >= a.cfg.RewardThreshold {
		res.Reward, res.RLFeedback = &reward, highRewardNote
		return res
	}
	improved, err := a.generateAnalysis(ctx, "improve", res.DocumentType,
		BuildImprovePrompt(text, res.DocumentType, res, feedback))
	if err != nil {
		a.logger.Warn("analysis.improve.skipped", "error", err)
		res.Reward, res.RLFeedback = &reward, feedback
		return res
	}
	improved.DocumentType, improved.Method = res.DocumentType, res.Method
	if improved.ThinkingProcess == "" {
		improved.ThinkingProcess = res.ThinkingProcess
	}
	improved.Reward, improved.RLFeedback = &reward, feedback
	return improved
}

func (a *Analyzer) evaluateQuality(ctx context.Context, res Result, text string) (float64, string, error) {
	var raw map[string]any
	err := a.generateJSON(ctx, "quality", res.DocumentType,
		BuildQualityPrompt(TruncateRunes(text, 5000), res.DocumentType, res), qualitySchema(), &raw)
	if err != nil {
		return 0, "", err
	}
	reward := 0.0
	for _, w := range rewardWeights {
		score, _ := raw[w.key].(float64)
		reward += min(max(score/10, 0), 1) * w.weight
	}
	feedback, _ := raw["feedback"].(string)
	return reward, strings.TrimSpace(feedback), nil
}

// KeyInsights returns up to n one-sentence insights; n is clamped to 1..10
// and defaults to 5.
func (a *Analyzer) KeyInsights(ctx context.Context, text string, n int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}
	if n <= 0 {
		n = 5
	}
	n = min(n, 10)
	var out struct {
		Insights []string `json:"insights"`
	}
	prompt := BuildInsightsPrompt(TruncateRunes(text, a.cfg.MaxPromptRunes), n)
	if err := a.generateJSON(ctx, "insights", DetectDocType(text), prompt, insightsSchema(), &out); err != nil {
		return nil, err
	}
	insights := make([]string, 0, n)
	for _, s := range out.Insights {
		if s = strings.TrimSpace(s); s != "" && len(insights) < n {
			insights = append(insights, s)
		}
	}
	return insights, nil
}

func (a *Analyzer) Verify(ctx context.Context, text string, r Result) (Verification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Verification{}, errEmptyText
	}
	var v Verification
	docType := r.DocumentType
	if docType == "" {
		docType = DetectDocType(text)
	}
	prompt := BuildVerificationPrompt(TruncateRunes(text, a.cfg.MaxPromptRunes), r)
	if err := a.generateJSON(ctx, "verify", docType, prompt, verificationSchema(), &v); err != nil {
		return Verification{}, err
	}
	if v.Issues == nil {
		v.Issues = []string{}
	}
	if v.Suggestions == nil {
		v.Suggestions = []string{}
	}
	return v, nil
}

// AnalyzeWithVerification analyzes text, then verifies and revises the result
// up to rounds times, stopping once the average score reaches the threshold.
func (a *Analyzer) AnalyzeWithVerification(ctx context.Context, text string, method constants.AnalysisMethod, rounds int) (Result, error) {
	res, err := a.Analyze(ctx, text, method)
	if err != nil {
		return Result{}, err
	}
	if rounds <= 0 {
		rounds = 1
	}
	for i := 0; i < rounds; i++ {
		v, err := a.Verify(ctx, text, res)
		if err != nil {
			a.logger.Warn("analysis.verify.failed", "round", i+1, "error", err)
			break
		}
		res.Verification = &v
		avg := v.Average()
		a.logger.Info("analysis.verify.round", "round", i+1, "rounds", rounds, "average", avg)
		if avg >= a.cfg.VerifyThreshold {
			break
		}
		feedback := verificationFeedback(v)
		improved, err := a.generateAnalysis(ctx, "improve", res.DocumentType,
			BuildImprovePrompt(TruncateRunes(text, a.cfg.MaxPromptRunes), res.DocumentType, res, feedback))
		if err != nil {
			a.logger.Warn("analysis.improve.failed", "round", i+1, "error", err)
			break
		}
		improved.DocumentType, improved.Method = res.DocumentType, res.Method
		improved.Reward, improved.RLFeedback = res.Reward, res.RLFeedback
		improved.Verification = res.Verification
		res = improved
	}
	return res, nil
}

func verificationFeedback(v Verification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "정확성 %d점, 완전성 %d점, 논리적 일관성 %d점\n", v.Accuracy, v.Completeness, v.Consistency)
	if len(v.Issues) > 0 {
		b.WriteString("발견된 문제점:\n- " + strings.Join(v.Issues, "\n- ") + "\n")
	}
	if len(v.Suggestions) > 0 {
		b.WriteString("개선 제안:\n- " + strings.Join(v.Suggestions, "\n- ") + "\n")
	}
	return b.String()
}

// Ask answers question from the passages of text that best match it.
func (a *Analyzer) Ask(ctx context.Context, text, question string) (Answer, error) {
	text, question = strings.TrimSpace(text), strings.TrimSpace(question)
	if text == "" {
		return Answer{}, errEmptyText
	}
	if question == "" {
		return Answer{}, common.NewAppError("INVALID_INPUT", "question is empty", common.ErrInvalidInput)
	}
	chunks := SplitText(text, a.cfg.ChunkRunes, a.cfg.ChunkOverlap)
	passages := a.rankPassages(ctx, chunks, question, a.cfg.TopK)

	var out struct {
		Answer string `json:"answer"`
	}
	if err := a.generateJSON(ctx, "ask", DetectDocType(text), BuildQuestionPrompt(question, passages), answerSchema(), &out); err != nil {
		return Answer{}, err
	}
	return Answer{Question: question, Answer: strings.TrimSpace(out.Answer), Sources: passages}, nil
}

// generateJSON runs one chat completion and decodes the validated JSON reply
// into out. Near-miss replies are sanitized once before giving up.
func (a *Analyzer) generateJSON(ctx context.Context, op string, docType constants.DocType, user string, sch map[string]any, out any) error {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()
	logger := common.LoggerFromContext(ctx, a.logger)

	msgs := []*schema.Message{
		schema.SystemMessage(BuildSystemPrompt(docType, sch)),
		schema.UserMessage(user),
	}
	logger.Info("analysis.generate.start", "req_id", rid, "op", op, "prompt_len", len(user))

	callCtx, cancel := common.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	msg, err := a.chat.Generate(callCtx, msgs, model.WithTemperature(a.cfg.Temperature))
	if err != nil {
		logger.Error("analysis.generate.error", "req_id", rid, "op", op, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return common.NewAppError("LLM_ERROR", op+" request failed", fmt.Errorf("%w: %w", common.ErrUpstream, err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		logger.Error("analysis.generate.empty", "req_id", rid, "op", op)
		return common.NewAppError("LLM_ERROR", op+" returned no content", common.ErrUpstream)
	}

	content := extractJSON(msg.Content)
	if err := ValidateJSONAgainstSchema(sch, content); err != nil {
		cleaned, touched, sErr := SanitizeResponse(sch, content)
		if sErr != nil {
			logger.Error("analysis.generate.bad_json", "req_id", rid, "op", op, "error", sErr,
				"content", TruncateRunes(msg.Content, 500))
			return common.NewAppError("LLM_BAD_RESPONSE", op+" reply is not JSON", fmt.Errorf("%w: %w", common.ErrUpstream, sErr))
		}
		if vErr := ValidateJSONAgainstSchema(sch, cleaned); vErr != nil {
			logger.Error("analysis.generate.schema_validation_failed", "req_id", rid, "op", op, "error", vErr,
				"content", TruncateRunes(msg.Content, 500))
			return common.NewAppError("LLM_BAD_RESPONSE", op+" reply does not match schema", fmt.Errorf("%w: %w", common.ErrUpstream, vErr))
		}
		logger.Warn("analysis.generate.sanitized", "req_id", rid, "op", op, "touched", touched)
		content = cleaned
	}
	if err := json.Unmarshal(content, out); err != nil {
		return common.NewAppError("LLM_BAD_RESPONSE", op+" reply could not be decoded", fmt.Errorf("%w: %w", common.ErrUpstream, err))
	}

	logger.Info("analysis.generate.ok", "req_id", rid, "op", op,
		"reply_len", len(msg.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
