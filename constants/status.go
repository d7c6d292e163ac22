package constants

// CapabilityMode names the extractor strategy chosen at startup.
type CapabilityMode string

// Stable values (reported in API responses and stored with history rows).
const (
	ModeNative   CapabilityMode = "native"   // full text, images, tables
	ModeFallback CapabilityMode = "fallback" // text and metadata only
)

// AnalysisMethod selects the prompt template used for project analysis.
type AnalysisMethod string

const (
	MethodStandard AnalysisMethod = "standard"
	MethodCoT      AnalysisMethod = "cot"
	MethodRL       AnalysisMethod = "rl"
	MethodHybrid   AnalysisMethod = "hybrid"
)

var allMethods = []AnalysisMethod{MethodStandard, MethodCoT, MethodRL, MethodHybrid}

// ParseMethod maps user input to an AnalysisMethod, defaulting to hybrid.
func ParseMethod(s string) (AnalysisMethod, bool) {
	if s == "" {
		return MethodHybrid, true
	}
	for _, m := range allMethods {
		if string(m) == s {
			return m, true
		}
	}
	return MethodHybrid, false
}
