package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/entity"
	"github.com/joseph-ayodele/hwp-analyzer/internal/pipeline"
)

const (
	msgAnalyzed    = "문서 분석이 완료되었습니다."
	msgAnalyzeFail = "문서 분석 중 오류가 발생했습니다"
	msgHistoryFail = "분석 이력 처리 중 오류가 발생했습니다"

	maxVerifyRounds = 5
	maxInsights     = 20
)

var (
	errNoDocuments = common.NewAppError("DOCUMENTS_DISABLED", "document handler is not configured", common.ErrDependency)
	errNoAnalyzer  = common.NewAppError("ANALYSIS_DISABLED", "no LLM provider is configured", common.ErrDependency)
	errNoHistory   = common.NewAppError("HISTORY_DISABLED", "analysis history is not configured", common.ErrDependency)
	errEmptyText   = common.NewAppError("EMPTY_TEXT", "document contains no text", common.ErrInvalidInput)
)

// analysisRequest is the JSON body accepted by the analysis endpoints when
// no file is uploaded. Multipart requests carry the same names as form fields.
type analysisRequest struct {
	Text         string `json:"text"`
	Filename     string `json:"filename,omitempty"`
	Method       string `json:"method,omitempty"`
	VerifyRounds int    `json:"verify_rounds,omitempty"`
	Count        int    `json:"count,omitempty"`
	Question     string `json:"question,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
	Suggest  *bool             `json:"suggest,omitempty"`
}

// analysisInput resolves the document text from either an upload or JSON.
// doc is nil for JSON requests.
func (s *Server) analysisInput(w http.ResponseWriter, r *http.Request) (analysisRequest, *document.ProcessedDocument, error) {
	if s.deps.Analyzer == nil {
		return analysisRequest{}, nil, errNoAnalyzer
	}
	if !isMultipart(r) {
		req, err := parseJSON[analysisRequest](r, s.cfg.MaxJSONBodyBytes)
		if err != nil {
			return req, nil, err
		}
		if strings.TrimSpace(req.Text) == "" {
			return req, nil, errEmptyText
		}
		return req, nil, nil
	}

	up, doc, err := s.processUpload(w, r, true)
	if err != nil {
		return analysisRequest{}, nil, err
	}
	req := analysisRequest{
		Text:     doc.Text,
		Filename: up.Filename,
		Method:   up.Fields["method"],
		Question: up.Fields["question"],
	}
	if req.VerifyRounds, err = formInt(up.Fields["verify_rounds"], 0); err != nil {
		return req, nil, common.NewAppError("INVALID_INPUT", "verify_rounds must be an integer", common.ErrInvalidInput)
	}
	if req.Count, err = formInt(up.Fields["count"], 0); err != nil {
		return req, nil, common.NewAppError("INVALID_INPUT", "count must be an integer", common.ErrInvalidInput)
	}
	if v := up.Fields["suggest"]; v != "" {
		b, err := formBool(v, true)
		if err != nil {
			return req, nil, common.NewAppError("INVALID_INPUT", "suggest must be a boolean", common.ErrInvalidInput)
		}
		req.Suggest = &b
	}
	req.Metadata = doc.Metadata
	if strings.TrimSpace(req.Text) == "" {
		return req, nil, errEmptyText
	}
	return req, &doc, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, doc, err := s.analysisInput(w, r)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	method, ok := constants.ParseMethod(req.Method)
	if !ok {
		s.fail(w, r, msgAnalyzeFail, common.NewAppError("INVALID_INPUT", "unknown analysis method "+req.Method, common.ErrInvalidInput))
		return
	}
	if req.VerifyRounds < 0 || req.VerifyRounds > maxVerifyRounds {
		s.fail(w, r, msgAnalyzeFail, common.NewAppError("INVALID_INPUT", "verify_rounds must be between 0 and 5", common.ErrInvalidInput))
		return
	}

	ctx := r.Context()
	var res analysis.Result
	if req.VerifyRounds > 0 {
		res, err = s.deps.Analyzer.AnalyzeWithVerification(ctx, req.Text, method, req.VerifyRounds)
	} else {
		res, err = s.deps.Analyzer.Analyze(ctx, req.Text, method)
	}
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}

	data := map[string]any{"filename": req.Filename, "result": res}
	if id, ok := s.saveHistory(ctx, req, doc, res); ok {
		data["record_id"] = id
	}
	writeOK(w, msgAnalyzed, data)
}

// saveHistory records the analysis; failures are logged and never fail the request.
func (s *Server) saveHistory(ctx context.Context, req analysisRequest, doc *document.ProcessedDocument, res analysis.Result) (uuid.UUID, bool) {
	if s.deps.History == nil {
		return uuid.Nil, false
	}
	d := document.ProcessedDocument{Text: req.Text, Metadata: map[string]string{}}
	if doc != nil {
		d = *doc
	}
	id, err := s.deps.History.Save(ctx, pipeline.HistoryRecord(req.Filename, d, res))
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Warn("history.save_failed", "error", err)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.analysisInput(w, r)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	n := req.Count
	if n <= 0 {
		n = 5
	}
	if n > maxInsights {
		n = maxInsights
	}
	insights, err := s.deps.Analyzer.KeyInsights(r.Context(), req.Text, n)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	writeOK(w, msgAnalyzed, map[string]any{"filename": req.Filename, "insights": insights})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.analysisInput(w, r)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.fail(w, r, msgAnalyzeFail, common.NewAppError("INVALID_INPUT", "question is required", common.ErrInvalidInput))
		return
	}
	ans, err := s.deps.Analyzer.Ask(r.Context(), req.Text, req.Question)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	writeOK(w, "답변이 생성되었습니다.", ans)
}

type compareRequest struct {
	A analysis.Subject `json:"a"`
	B analysis.Subject `json:"b"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil {
		s.fail(w, r, msgAnalyzeFail, errNoAnalyzer)
		return
	}
	req, err := parseJSON[compareRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	if strings.TrimSpace(req.A.Text) == "" || strings.TrimSpace(req.B.Text) == "" {
		s.fail(w, r, msgAnalyzeFail, errEmptyText)
		return
	}
	cmp, err := s.deps.Analyzer.Compare(r.Context(), req.A, req.B)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	writeOK(w, "문서 비교가 완료되었습니다.", cmp)
}

// handleFreshness rates how current a document is and, unless suggest is
// false, follows up with concrete update suggestions.
func (s *Server) handleFreshness(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.analysisInput(w, r)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	ctx := r.Context()
	f, err := s.deps.Analyzer.CheckFreshness(ctx, req.Text, req.Metadata)
	if err != nil {
		s.fail(w, r, msgAnalyzeFail, err)
		return
	}
	data := map[string]any{"filename": req.Filename, "freshness": f}
	if req.Suggest == nil || *req.Suggest {
		sug, err := s.deps.Analyzer.SuggestUpdates(ctx, req.Text, f)
		if err != nil {
			s.fail(w, r, msgAnalyzeFail, err)
			return
		}
		data["suggestions"] = sug
	}
	writeOK(w, "최신성 검사가 완료되었습니다.", data)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.fail(w, r, msgHistoryFail, errNoHistory)
		return
	}
	limit, err := formInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		s.fail(w, r, msgHistoryFail, common.NewAppError("INVALID_INPUT", "limit must be an integer", common.ErrInvalidInput))
		return
	}
	records, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	total, err := s.deps.History.Count(r.Context())
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	if records == nil {
		records = []*entity.AnalysisRecord{}
	}
	writeOK(w, "분석 이력을 조회했습니다.", map[string]any{"records": records, "total": total})
}

func (s *Server) historyID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, common.NewAppError("INVALID_INPUT", "invalid record id", common.ErrInvalidInput)
	}
	return id, nil
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.fail(w, r, msgHistoryFail, errNoHistory)
		return
	}
	id, err := s.historyID(r)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	rec, err := s.deps.History.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	writeOK(w, "분석 이력을 조회했습니다.", rec)
}

type feedbackRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.fail(w, r, msgHistoryFail, errNoHistory)
		return
	}
	id, err := s.historyID(r)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	req, err := parseJSON[feedbackRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	if err := s.deps.History.RecordFeedback(r.Context(), id, req.Score, req.Comment); err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	writeOK(w, "피드백이 저장되었습니다.", map[string]any{"id": id, "score": req.Score})
}

func (s *Server) handleLearningDataset(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.fail(w, r, msgHistoryFail, errNoHistory)
		return
	}
	minScore, err := formInt(r.URL.Query().Get("min_score"), 4)
	if err != nil {
		s.fail(w, r, msgHistoryFail, common.NewAppError("INVALID_INPUT", "min_score must be an integer", common.ErrInvalidInput))
		return
	}
	examples, err := s.deps.History.LearningDataset(r.Context(), minScore)
	if err != nil {
		s.fail(w, r, msgHistoryFail, err)
		return
	}
	if examples == nil {
		examples = []entity.LearningExample{}
	}
	writeOK(w, "학습 데이터를 조회했습니다.", map[string]any{"examples": examples, "count": len(examples)})
}
