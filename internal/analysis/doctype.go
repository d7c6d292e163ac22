package analysis

import (
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

const (
	docTypeSampleRunes = 10000
	identifierWeight   = 1.5
	structureWeight    = 5
	classifierBonus    = 10
)

// ScoreDocTypes scores every known document family against the first 10k
// runes of text: identifiers count per occurrence, structure words once.
func ScoreDocTypes(text string) map[constants.DocType]float64 {
	sample := string([]rune(text)[:min(len([]rune(text)), docTypeSampleRunes)])
	scores := make(map[constants.DocType]float64, len(constants.DocTypeProfiles))
	for _, p := range constants.DocTypeProfiles {
		score := 0.0
		for _, id := range p.Identifiers {
			score += float64(strings.Count(sample, id)) * identifierWeight
		}
		for _, s := range p.Structure {
			if strings.Contains(sample, s) {
				score += structureWeight
			}
		}
		scores[p.Type] = score
	}
	return scores
}

// pickDocType returns the best scoring family; ties and all-zero scores go
// to the earliest profile, which is the project proposal family.
func pickDocType(scores map[constants.DocType]float64) constants.DocType {
	best := constants.DocTypeProject
	bestScore := -1.0
	for _, p := range constants.DocTypeProfiles {
		if s := scores[p.Type]; s > bestScore {
			best, bestScore = p.Type, s
		}
	}
	return best
}

// DetectDocType classifies text by keyword scoring alone.
func DetectDocType(text string) constants.DocType {
	return pickDocType(ScoreDocTypes(text))
}
