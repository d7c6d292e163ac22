package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// focusPoints steers the analysis per document family.
var focusPoints = map[constants.DocType][]string{
	constants.DocTypeLaw:     {"법적 유효성", "위험 요소", "의무 사항", "책임 소재"},
	constants.DocTypePaper:   {"연구 목적", "방법론 타당성", "결과 신뢰성", "결론 일관성"},
	constants.DocTypeProject: {"목표 명확성", "예산 효율성", "성과 측정", "진행 상황"},
}

var expertRole = map[constants.DocType]string{
	constants.DocTypeLaw:     "법률 문서 분석 전문가",
	constants.DocTypePaper:   "학술 논문 심사 전문가",
	constants.DocTypeProject: "국책과제 전문가",
}

// BuildSystemPrompt fixes the role, the output language and the JSON contract.
func BuildSystemPrompt(docType constants.DocType, schema map[string]any) string {
	role, ok := expertRole[docType]
	if !ok {
		role = expertRole[constants.DocTypeProject]
	}
	parts := []string{
		"당신은 " + role + " AI입니다.",
		"모든 답변은 한국어로 작성합니다.",
		"반드시 아래 JSON Schema에 맞는 JSON 객체 하나만 출력하고, 다른 텍스트는 출력하지 마세요.",
		"문자열 필드 안에서는 마크다운 형식을 사용할 수 있습니다.",
		"값이 없으면 필드를 생략하고 null을 출력하지 마세요.",
		"JSON Schema:\n" + mustJSON(schema),
	}
	return strings.Join(parts, "\n")
}

const outputSections = `다음 항목을 작성해주세요:
- analysis: 상세 분석 (목적, 배경, 주요 내용, 예산, 기간, 참여 기관, 기대 효과 등)
- summary: 핵심 내용의 간결한 요약
- recommendations: 성공적인 수행을 위한 권장사항`

const cotSteps = `단계별로 생각해보겠습니다:

1. 문서 구조 파악: 전체 구조와 주요 섹션은 무엇인가?
2. 핵심 정보 추출: 목적, 배경 및 필요성, 주요 내용, 예산 및 기간, 참여 기관과 역할, 기대 효과는 무엇인가?
3. 정보 분석 및 연결: 정보 간의 연관성, 강점과 약점, 성공 가능성에 영향을 주는 요소는 무엇인가?
4. 결론 도출: 전반적인 평가와 권장사항은 무엇인가?

추론 과정은 thinking_process 필드에 간략히 정리해주세요.`

const rlGuidelines = `다음 지침을 따르면 높은 보상을 받습니다:
1. 분석의 정확성과 완전성을 최우선으로 합니다.
2. 문서의 모든 중요한 측면을 포함합니다.
3. 객관적이고 균형 잡힌 분석을 제공합니다.
4. 명확하고 구조화된 형식으로 정보를 제시합니다.
5. 실행 가능하고 구체적인 권장사항을 제공합니다.

중요한 정보 누락, 부정확한 정보, 모호한 분석, 비구조화된 형식, 실행 불가능한 권장사항은 낮은 보상을 받습니다.`

// BuildAnalysisPrompt renders the user prompt for one analysis method.
// The rl method starts from the standard prompt and is refined afterwards.
func BuildAnalysisPrompt(method constants.AnalysisMethod, docType constants.DocType, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "다음 %s 문서를 분석해주세요.\n\n", docType)
	if fp := focusPoints[docType]; len(fp) > 0 {
		fmt.Fprintf(&b, "특히 다음 관점에 주목하세요: %s\n\n", strings.Join(fp, ", "))
	}
	b.WriteString("문서 내용:\n")
	b.WriteString(text)
	b.WriteString("\n\n")

	switch method {
	case constants.MethodCoT:
		b.WriteString(cotSteps)
		b.WriteString("\n\n")
	case constants.MethodHybrid:
		b.WriteString(cotSteps)
		b.WriteString("\n\n")
		b.WriteString(rlGuidelines)
		b.WriteString("\n\n")
	}
	b.WriteString(outputSections)
	return b.String()
}

func BuildInsightsPrompt(text string, n int) string {
	return fmt.Sprintf(`다음 문서에서 가장 중요한 인사이트 %d개를 추출해주세요.
각 인사이트는 한 문장으로 간결하게 작성하되 충분한 정보를 포함해야 합니다.
insights 배열에 중요한 순서대로 담아주세요.

문서 내용:
%s`, n, text)
}

func BuildVerificationPrompt(text string, r Result) string {
	return fmt.Sprintf(`다음은 문서 내용과 이에 대한 분석 결과입니다. 분석 결과가 정확하고 완전한지 검증해주세요.

## 문서 내용 (일부):
%s

## 분석 결과:
분석: %s

요약: %s

권장사항: %s

## 검증 지침:
1. 분석이 문서의 핵심 내용을 모두 포함하는지 확인하세요.
2. 사실 관계에 오류가 있는지 확인하세요.
3. 논리적 일관성이 있는지 확인하세요.
4. 개선이 필요한 부분을 찾으세요.

accuracy_score(정확성), completeness_score(완전성), consistency_score(논리적 일관성)는 1-10점 정수로,
issues에는 발견된 문제점을, suggestions에는 개선 제안을 작성해주세요.`,
		text, orNone(r.Analysis), orNone(r.Summary), orNone(r.Recommendations))
}

func BuildQualityPrompt(text string, docType constants.DocType, r Result) string {
	var rubric strings.Builder
	for i, w := range rewardWeights {
		fmt.Fprintf(&rubric, "%d. %s (0-10점): %s\n", i+1, w.key, w.desc)
	}
	return fmt.Sprintf(`다음은 문서 분석 결과입니다. 품질을 평가하고 항목별로 0-10점 정수 점수를 부여해주세요.

원본 문서 일부:
%s

문서 유형: %s

분석 결과:
요약: %s
상세 분석: %s
권장사항: %s

평가 항목:
%s
feedback에는 분석 결과를 개선하기 위한 구체적인 피드백을 작성해주세요.`,
		text, docType, orNone(r.Summary), orNone(r.Analysis), orNone(r.Recommendations), rubric.String())
}

// BuildImprovePrompt asks for a revised analysis given reviewer feedback.
func BuildImprovePrompt(text string, docType constants.DocType, r Result, feedback string) string {
	return fmt.Sprintf(`다음 %s 문서에 대한 기존 분석 결과를 피드백에 따라 개선해주세요.

문서 내용:
%s

기존 분석 결과:
분석: %s
요약: %s
권장사항: %s

피드백:
%s

피드백을 반영하여 더 정확하고 완전한 분석을 작성해주세요.
%s`, docType, text, orNone(r.Analysis), orNone(r.Summary), orNone(r.Recommendations), feedback, outputSections)
}

func BuildDocTypePrompt(text string) string {
	return fmt.Sprintf(`다음 문서 텍스트의 유형을 분류해주세요. 가능한 유형은 '법률', '논문', '국책과제' 중 하나입니다.

텍스트:
%s

각 유형의 특성:
- 법률: 조항, 계약 조건, 법적 규정, 판례 등이 포함됨
- 논문: 학술적 연구, 초록, 서론, 방법, 결과, 고찰 등의 구조를 가짐
- 국책과제: 정부 지원 과제, 사업 계획, 예산, 추진 내용, 성과 등을 다룸

가장 적합한 유형 하나를 document_type에 작성해주세요.`, text)
}

func BuildQuestionPrompt(question string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("다음은 문서에서 질문과 관련된 부분입니다.\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[발췌 %d]\n%s\n\n", i+1, p.Text)
	}
	fmt.Fprintf(&b, "질문: %s\n\n", question)
	b.WriteString("발췌 내용에 근거하여 answer에 답변을 작성해주세요. 문서에서 답을 찾을 수 없으면 그렇다고 답해주세요.")
	return b.String()
}

func BuildComparePrompt(a, b Subject) string {
	return fmt.Sprintf(`다음 두 문서를 비교 분석해주세요.

## 문서 1: %s
%s

## 문서 2: %s
%s

다음 세 가지 측면에서 비교 결과를 작성해주세요:
- differences: 두 문서 간의 주요 차이점 (목표, 예산, 기간, 추진 체계 등)
- similarities: 두 문서 간의 유사점
- evaluation: 각 문서의 강점과 약점을 비교하고 어떤 측면에서 어느 문서가 더 우수한지에 대한 종합 평가`,
		a.Name, a.Text, b.Name, b.Text)
}

func BuildKeyTermsPrompt(text string) string {
	return fmt.Sprintf(`다음 문서에서 최신 동향 검색에 사용할 핵심 용어를 최대 %d개 추출해주세요.
각 용어는 검색에 사용되므로 구체적이고 문서와 관련성이 높아야 합니다.
key_terms 배열에 중요한 순서대로 담아주세요.

문서 내용:
%s`, maxKeyTerms, text)
}

const searchSystemPrompt = "You are a helpful assistant that provides accurate, current information about Korean government projects, policies, laws and research trends. Answer in Korean."

func BuildSearchPrompt(terms []string) string {
	return fmt.Sprintf(`다음 주제에 대한 최신 정보를 검색해주세요: %s 최신 동향 정책.
관련된 최신 정책, 제도 변화, 지원 사항, 기술 동향을 중심으로 검색하고 결과를 요약해주세요.`, strings.Join(terms, " "))
}

// BuildSearchFallbackPrompt is used when no search model is available.
func BuildSearchFallbackPrompt(terms []string) string {
	return fmt.Sprintf(`다음 주제에 대한 정보를 제공해주세요: %s
실시간 웹 검색은 할 수 없으므로, 알고 있는 범위에서 관련 정책 방향, 지원 프로그램, 제도와 기술 동향을 정리해주세요.`,
		strings.Join(terms, " "))
}

func BuildFreshnessPrompt(text string, md map[string]string, terms []string, latest, date string) string {
	return fmt.Sprintf(`다음은 문서에서 추출한 메타데이터와 내용 일부입니다.

## 메타데이터
- 제목: %s
- 작성자: %s
- 생성일자: %s
- 수정일자: %s

## 문서 내용 (일부)
%s

## 핵심 키워드
%s

## 참고할 최신 정보
%s

이 문서의 내용이 현재(%s) 기준으로 최신 정보인지 평가해주세요. 특히 다음을 확인하세요:
1. 문서에 언급된 정책이나 제도가 현재도 유효한지
2. 최신 동향과 부합하는지
3. 최근 변경된 정책이나 법규가 반영되었는지
4. 해당 분야의 최신 기술 트렌드가 반영되었는지

freshness_score에는 최신성 점수(1-10 정수), outdated에는 업데이트가 필요한 정보,
missing_updates에는 추가되어야 할 최신 정보, assessment에는 전반적인 평가 의견을 작성해주세요.`,
		metaOr(md, "title"), metaOr(md, "author"), metaOr(md, "created"), metaOr(md, "modified"),
		text, strings.Join(terms, ", "), orNone(latest), date)
}

func BuildUpdatesPrompt(f Freshness, dates, amounts []string) string {
	return fmt.Sprintf(`다음은 문서의 최신성 평가 결과와 최신 정보입니다.

[최신성 평가] %d점
%s

[업데이트가 필요한 정보]
%s

[최신 정보]
%s

[문서에서 발견된 주요 날짜]
%s

[문서에서 발견된 주요 금액]
%s

[핵심 키워드]
%s

이 정보를 바탕으로 문서를 최신 정보로 업데이트하기 위한 구체적인 제안을 작성해주세요:
- revise: 삭제 또는 수정이 필요한 내용
- additions: 추가해야 할 최신 정보 (최근 정책, 지원사항, 법규 등)
- figures: 수정이 필요한 수치 데이터 (날짜, 금액, 비율 등)
- references: 참고해야 할 최신 자료
- recommendation: 문서 업데이트를 위한 종합 권장사항`,
		f.Score, orNone(f.Assessment), listOr(f.Outdated, "(없음)"), orNone(f.LatestInfo),
		listOr(dates, "주요 날짜를 찾을 수 없음"), listOr(amounts, "주요 금액을 찾을 수 없음"),
		listOr(f.KeyTerms, "(없음)"))
}

func metaOr(md map[string]string, key string) string {
	if v := strings.TrimSpace(md[key]); v != "" {
		return v
	}
	return "알 수 없음"
}

func listOr(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return "- " + strings.Join(items, "\n- ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(없음)"
	}
	return s
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
