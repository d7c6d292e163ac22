package constants

// DocType is the coarse document family used to pick analysis prompts.
type DocType string

const (
	DocTypeLaw     DocType = "법률"
	DocTypePaper   DocType = "논문"
	DocTypeProject DocType = "국책과제"
)

// DocTypeProfile lists the keywords that identify a document family.
// Identifiers score per occurrence; structure words score once when present.
type DocTypeProfile struct {
	Type        DocType
	Identifiers []string
	Structure   []string
}

// DocTypeProfiles is ordered; ties resolve to the earliest entry.
var DocTypeProfiles = []DocTypeProfile{
	{
		Type:        DocTypeProject,
		Identifiers: []string{"국책과제", "연구개발", "과제번호", "주관기관", "참여기관", "연구비", "사업비", "정부출연금"},
		Structure:   []string{"연구개발의 목표", "추진체계", "기대효과", "활용방안", "연구개발 내용"},
	},
	{
		Type:        DocTypeLaw,
		Identifiers: []string{"법률", "조항", "시행령", "시행규칙", "제1조", "부칙", "법령"},
		Structure:   []string{"목적", "정의", "벌칙", "부칙"},
	},
	{
		Type:        DocTypePaper,
		Identifiers: []string{"논문", "초록", "참고문헌", "연구방법", "Abstract", "Keywords"},
		Structure:   []string{"서론", "본론", "결론", "참고문헌"},
	},
}

// ParseDocType returns the DocType for s, or DocTypeProject when unknown.
func ParseDocType(s string) (DocType, bool) {
	for _, p := range DocTypeProfiles {
		if string(p.Type) == s {
			return p.Type, true
		}
	}
	return DocTypeProject, false
}
