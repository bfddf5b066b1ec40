package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/leads"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

type submissionRequest struct {
	BankVersion string `json:"bank_version"`
	model.Submission
}

type questionsResponse struct {
	Version    string           `json:"version"`
	Categories []model.Category `json:"categories"`
	Questions  []model.Question `json:"questions"`
}

// resolveBank picks the requested bank version, or the active one.
func (s *Server) resolveBank(version string) (*bank.Bank, int, string) {
	if version != "" {
		b, ok := s.registry.Get(version)
		if !ok {
			return nil, http.StatusNotFound, "unknown bank version " + version
		}
		return b, 0, ""
	}
	b := s.registry.Current()
	if b == nil {
		return nil, http.StatusServiceUnavailable, "no question bank loaded"
	}
	return b, 0, ""
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	b, status, msg := s.resolveBank(r.URL.Query().Get("version"))
	if b == nil {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{
		Version:    b.Version(),
		Categories: b.Categories(),
		Questions:  b.Questions(),
	})
}

func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	b, status, msg := s.resolveBank(r.URL.Query().Get("version"))
	if b == nil {
		writeError(w, status, msg)
		return
	}
	q, ok := b.Question(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) submitAssessment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err := validateSubmission(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req submissionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, status, msg := s.resolveBank(req.BankVersion)
	if b == nil {
		if status == http.StatusNotFound {
			status = http.StatusBadRequest
		}
		writeError(w, status, msg)
		return
	}

	start := time.Now()
	result, diag, err := s.engine.Compute(b, req.Submission)
	if err != nil {
		zap.L().Error("api: compute assessment", zap.String("bank_version", b.Version()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "bank is not compatible with the engine configuration")
		return
	}
	s.metrics.observeCompute(result.OverallRiskTier, time.Since(start))
	if !diag.Empty() {
		zap.L().Warn("api: submission has data-quality issues",
			zap.String("assessment_id", result.ID),
			zap.Strings("unknown_questions", diag.UnknownQuestions),
			zap.Int("unknown_options", len(diag.UnknownOptions)),
			zap.Strings("ignored_answers", diag.IgnoredAnswers),
			zap.Strings("duplicate_answers", diag.DuplicateAnswers),
		)
	}

	lead := leads.FromResult(req.Submission, result, s.engine.Classifier(), s.engine.IssueFloor())
	if err := s.store.SaveSubmission(r.Context(), result, lead); err != nil {
		writeStoreError(w, err, "save submission")
		return
	}

	if s.syncer != nil {
		if _, err := s.syncer.Sync(r.Context(), lead); err != nil {
			s.metrics.syncFailures.Inc()
			zap.L().Warn("api: salesforce sync failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}

	zap.L().Info("api: assessment scored",
		zap.String("assessment_id", result.ID),
		zap.String("bank_version", result.BankVersion),
		zap.Float64("overall_percentage", result.OverallPercentage),
		zap.String("tier", string(result.OverallRiskTier)),
	)
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	f, err := leads.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.store.ListAssessments(r.Context(), store.AssessmentFilter{
		Since: f.Since,
		Until: f.Until,
		Limit: f.Limit,
	})
	if err != nil {
		writeStoreError(w, err, "list assessments")
		return
	}
	if results == nil {
		results = []model.AssessmentResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "get assessment")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	f, err := leads.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.store.ListLeads(r.Context(), f)
	if err != nil {
		writeStoreError(w, err, "list leads")
		return
	}
	if list == nil {
		list = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "get lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.LeadStatus `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Status = model.LeadStatus(strings.ToLower(string(req.Status)))
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(req.Status))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.UpdateLeadStatus(r.Context(), id, req.Status); err != nil {
		writeStoreError(w, err, "update lead")
		return
	}
	lead, err := s.store.GetLead(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "get lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) exportLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	f, err := leads.ParseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.store.ListLeads(r.Context(), f)
	if err != nil {
		writeStoreError(w, err, "export leads")
		return
	}

	name := "leads-" + time.Now().UTC().Format("20060102") + "." + format
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = leads.WriteXLSX(w, list)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		err = leads.WriteCSV(w, list)
	}
	if err != nil {
		zap.L().Error("api: write export", zap.String("format", format), zap.Error(err))
	}
}
