package analysis

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

var errVectorCount = errors.New("embedder returned an unexpected number of vectors")

// rankPassages returns the k chunks closest to question. Embedding
// similarity is used when an embedder is configured; keyword overlap is the
// fallback. Results keep their chunk index and are ordered by score.
func (a *Analyzer) rankPassages(ctx context.Context, chunks []string, question string, k int) []Passage {
	if len(chunks) == 0 {
		return []Passage{}
	}
	var scores []float64
	if a.embedder != nil {
		s, err := embeddingScores(ctx, a.embedder, chunks, question)
		if err != nil {
			a.logger.Warn("analysis.retrieval.embedding_failed", "error", err, "fallback", "keyword")
		} else {
			scores = s
		}
	}
	if scores == nil {
		scores = keywordScores(chunks, question)
	}

	passages := make([]Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = Passage{Index: i, Text: c, Score: scores[i]}
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages
}

func embeddingScores(ctx context.Context, e embedding.Embedder, chunks []string, question string) ([]float64, error) {
	vecs, err := e.EmbedStrings(ctx, append(append([]string{}, chunks...), question))
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunks)+1 {
		return nil, errVectorCount
	}
	q := vecs[len(vecs)-1]
	scores := make([]float64, len(chunks))
	for i := range chunks {
		scores[i] = cosine(vecs[i], q)
	}
	return scores, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// keywordScores counts question terms found in each chunk. Korean particles
// are attached to words, so a term also matches without its last syllable.
func keywordScores(chunks []string, question string) []float64 {
	terms := queryTerms(question)
	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		lc := strings.ToLower(c)
		for _, t := range terms {
			switch {
			case strings.Contains(lc, t):
				scores[i] += 1
			case len([]rune(t)) >= 3 && strings.Contains(lc, string([]rune(t)[:len([]rune(t))-1])):
				scores[i] += 0.5
			}
		}
	}
	return scores
}

func queryTerms(q string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
