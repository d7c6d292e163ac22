package analysis

import "github.com/joseph-ayodele/hwp-analyzer/constants"

// Response schemas. They are sent to the model with the prompt and used to
// validate what comes back.

func analysisSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"analysis":         nonEmptyString(),
			"summary":          nonEmptyString(),
			"recommendations":  nonEmptyString(),
			"thinking_process": map[string]any{"type": "string"},
		},
		"required": []string{"analysis", "summary", "recommendations"},
	}
}

func insightsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"insights": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    nonEmptyString(),
			},
		},
		"required": []string{"insights"},
	}
}

func verificationSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"accuracy_score":     scoreProp(1, 10),
			"completeness_score": scoreProp(1, 10),
			"consistency_score":  scoreProp(1, 10),
			"issues":             stringList(),
			"suggestions":        stringList(),
		},
		"required": []string{"accuracy_score", "completeness_score", "consistency_score"},
	}
}

// qualitySchema is the reward rubric used by the rl and hybrid methods.
func qualitySchema() map[string]any {
	props := map[string]any{"feedback": map[string]any{"type": "string"}}
	required := []string{"feedback"}
	for _, w := range rewardWeights {
		props[w.key] = scoreProp(0, 10)
		required = append(required, w.key)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func docTypeSchema() map[string]any {
	types := make([]string, 0, len(constants.DocTypeProfiles))
	for _, p := range constants.DocTypeProfiles {
		types = append(types, string(p.Type))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string", "enum": types},
		},
		"required": []string{"document_type"},
	}
}

func answerSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"answer": nonEmptyString(),
		},
		"required": []string{"answer"},
	}
}

func compareSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"differences":  nonEmptyString(),
			"similarities": nonEmptyString(),
			"evaluation":   nonEmptyString(),
		},
		"required": []string{"differences", "similarities", "evaluation"},
	}
}

func keyTermsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"key_terms": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": maxKeyTerms,
				"items":    nonEmptyString(),
			},
		},
		"required": []string{"key_terms"},
	}
}

func freshnessSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"freshness_score": scoreProp(1, 10),
			"outdated":        stringList(),
			"missing_updates": stringList(),
			"assessment":      nonEmptyString(),
		},
		"required": []string{"freshness_score", "assessment"},
	}
}

func updatesSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"revise":         stringList(),
			"additions":      stringList(),
			"figures":        stringList(),
			"references":     stringList(),
			"recommendation": nonEmptyString(),
		},
		"required": []string{"recommendation"},
	}
}

func nonEmptyString() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func scoreProp(min, max int) map[string]any {
	return map[string]any{"type": "integer", "minimum": min, "maximum": max}
}
