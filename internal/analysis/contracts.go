package analysis

import (
	"context"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// Result is the structured analysis of one document.
type Result struct {
	DocumentType    constants.DocType        `json:"document_type"`
	Method          constants.AnalysisMethod `json:"method"`
	Analysis        string                   `json:"analysis"`
	Summary         string                   `json:"summary"`
	Recommendations string                   `json:"recommendations"`
	ThinkingProcess string                   `json:"thinking_process,omitempty"`

	// Set by the rl and hybrid methods.
	Reward     *float64 `json:"rl_reward,omitempty"`
	RLFeedback string   `json:"rl_feedback,omitempty"`

	Verification *Verification `json:"verification,omitempty"`
}

// Verification scores an analysis against its source, 1..10 per axis.
type Verification struct {
	Accuracy     int      `json:"accuracy_score"`
	Completeness int      `json:"completeness_score"`
	Consistency  int      `json:"consistency_score"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
}

// Average ignores axes the model did not score.
func (v Verification) Average() float64 {
	sum, n := 0, 0
	for _, s := range []int{v.Accuracy, v.Completeness, v.Consistency} {
		if s > 0 {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// Passage is a chunk of the document used to answer a question.
type Passage struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type Answer struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []Passage `json:"sources"`
}

// Subject is one side of a comparison.
type Subject struct {
	Name string `json:"filename"`
	Text string `json:"text"`
}

// Comparison contrasts two documents. Each field is markdown.
type Comparison struct {
	First        string `json:"first"`
	Second       string `json:"second"`
	Differences  string `json:"differences"`
	Similarities string `json:"similarities"`
	Evaluation   string `json:"evaluation"`
}

// Freshness rates how current a document is on the reference date.
type Freshness struct {
	Score         int               `json:"freshness_score"` // 1..10
	Outdated      []string          `json:"outdated"`
	Missing       []string          `json:"missing_updates"`
	Assessment    string            `json:"assessment"`
	KeyTerms      []string          `json:"key_terms"`
	LatestInfo    string            `json:"latest_info"`
	WebSearch     bool              `json:"web_search"` // LatestInfo came from a search model
	ReferenceDate string            `json:"reference_date"`
	Metadata      map[string]string `json:"metadata"`
}

// UpdateSuggestions turns a freshness check into concrete edits.
type UpdateSuggestions struct {
	Revise         []string `json:"revise"`
	Additions      []string `json:"additions"`
	Figures        []string `json:"figures"`
	References     []string `json:"references"`
	Recommendation string   `json:"recommendation"`
	Dates          []string `json:"dates"`   // found in the document
	Amounts        []string `json:"amounts"` // found in the document
}

// Service is what the HTTP layer and the CLI depend on.
type Service interface {
	Analyze(ctx context.Context, text string, method constants.AnalysisMethod) (Result, error)
	KeyInsights(ctx context.Context, text string, n int) ([]string, error)
	Verify(ctx context.Context, text string, r Result) (Verification, error)
	AnalyzeWithVerification(ctx context.Context, text string, method constants.AnalysisMethod, rounds int) (Result, error)
	Ask(ctx context.Context, text, question string) (Answer, error)
	Compare(ctx context.Context, a, b Subject) (Comparison, error)
	CheckFreshness(ctx context.Context, text string, metadata map[string]string) (Freshness, error)
	SuggestUpdates(ctx context.Context, text string, f Freshness) (UpdateSuggestions, error)
}
