package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"spendtrend/internal/diagnosis"
	apierrors "spendtrend/internal/errors"
	"spendtrend/internal/middleware"
	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
	"spendtrend/internal/trend"
)

// Group filter values of GET /trends
const (
	GroupAll      = "all"
	GroupCategory = "category"
)

// ResultsHandler serves the stored pipeline output
type ResultsHandler struct {
	store        *ResultStore
	validator    *middleware.QueryValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewResultsHandler creates a results handler
func NewResultsHandler(store *ResultStore, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResultsHandler {
	return &ResultsHandler{
		store:        store,
		validator:    middleware.NewQueryValidator(logger),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "results_handler")),
	}
}

// Routes returns the results routes
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summary", h.withOutput(h.GetSummary))
	r.Get("/diagnosis", h.withOutput(h.GetDiagnosis))
	r.Get("/corrections", h.withOutput(h.GetCorrections))
	r.Get("/trends", h.withOutput(h.GetTrends))
	r.Get("/trends/{metric}", h.withOutput(h.GetMetricTrends))
	r.Get("/issues", h.withOutput(h.GetIssues))
	return r
}

type outputHandlerFunc func(w http.ResponseWriter, r *http.Request, out *pipeline.Output)

// withOutput answers 503 until a run has been stored
func (h *ResultsHandler) withOutput(next outputHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, ok := h.store.Latest()
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.ErrNoResults)
			return
		}
		next(w, r, out)
	}
}

// SummaryResponse is the body of GET /summary
type SummaryResponse struct {
	RunID             string                    `json:"run_id"`
	StartedAt         time.Time                 `json:"started_at"`
	FinishedAt        time.Time                 `json:"finished_at"`
	Panel             panel.Summary             `json:"panel"`
	BreakYearAlert    *pipeline.BreakYearAlert  `json:"break_year_alert,omitempty"`
	CorrectedEntities []string                  `json:"corrected_entities"`
	PostBreakAlerts   []diagnosis.YearDiagnosis `json:"post_break_alerts,omitempty"`
	TrendCount        int                       `json:"trend_count"`
	Insufficient      int                       `json:"insufficient_count"`
	IssueCount        int                       `json:"issue_count"`
	Steps             []*pipeline.StepState     `json:"steps"`
}

// GetSummary handles GET /summary
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	render.JSON(w, r, SummaryResponse{
		RunID:             out.RunID,
		StartedAt:         out.StartedAt,
		FinishedAt:        out.FinishedAt,
		Panel:             out.Summary,
		BreakYearAlert:    out.BreakYearAlert,
		CorrectedEntities: out.Corrections.CorrectedIDs(),
		PostBreakAlerts:   out.PostBreakAlerts,
		TrendCount:        len(out.Trends.Trends) + len(out.CategoryTrends.Trends),
		Insufficient:      len(out.Trends.Insufficient()) + len(out.CategoryTrends.Insufficient()),
		IssueCount:        len(out.Issues),
		Steps:             out.Steps,
	})
}

// DiagnosisResponse is the body of GET /diagnosis
type DiagnosisResponse struct {
	Before          diagnosis.Report          `json:"before_correction"`
	After           diagnosis.Report          `json:"after_correction"`
	BreakYearAlert  *pipeline.BreakYearAlert  `json:"break_year_alert,omitempty"`
	PostBreakAlerts []diagnosis.YearDiagnosis `json:"post_break_alerts,omitempty"`
}

// GetDiagnosis handles GET /diagnosis
func (h *ResultsHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	render.JSON(w, r, DiagnosisResponse{
		Before:          out.Diagnosis,
		After:           out.PostBreakDiagnosis,
		BreakYearAlert:  out.BreakYearAlert,
		PostBreakAlerts: out.PostBreakAlerts,
	})
}

// GetCorrections handles GET /corrections
func (h *ResultsHandler) GetCorrections(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	render.JSON(w, r, out.Corrections)
}

// TrendsQuery holds the filters of GET /trends
type TrendsQuery struct {
	Group       string `query:"group" validate:"omitempty,oneof=all category"`
	Status      string `query:"status" validate:"omitempty,oneof=ok insufficient_data"`
	Significant bool   `query:"significant"`
}

// TrendsResponse is the body of GET /trends and GET /trends/{metric}
type TrendsResponse struct {
	GroupBy string              `json:"group_by"`
	Count   int                 `json:"count"`
	Trends  []trend.MetricTrend `json:"trends"`
}

// GetTrends handles GET /trends
func (h *ResultsHandler) GetTrends(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	var q TrendsQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, group := out.Trends, GroupAll
	if q.Group == GroupCategory {
		res, group = out.CategoryTrends, GroupCategory
	}

	trends := make([]trend.MetricTrend, 0, len(res.Trends))
	for _, mt := range res.Trends {
		if q.Status != "" && string(mt.Status) != q.Status {
			continue
		}
		if q.Significant && (mt.Status != trend.StatusOK || mt.Significance == trend.TierNotSignificant) {
			continue
		}
		trends = append(trends, mt)
	}
	render.JSON(w, r, TrendsResponse{GroupBy: group, Count: len(trends), Trends: trends})
}

// GetMetricTrends handles GET /trends/{metric}: the overall trend of one
// metric followed by its per-category trends, when configured
func (h *ResultsHandler) GetMetricTrends(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	metric := chi.URLParam(r, "metric")
	if err := h.validator.ValidateColumn("metric", metric); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var trends []trend.MetricTrend
	for _, res := range []trend.Result{out.Trends, out.CategoryTrends} {
		for _, mt := range res.Trends {
			if mt.Metric == metric {
				trends = append(trends, mt)
			}
		}
	}
	if len(trends) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NewNotFoundError("metric "+metric).WithContext("metric", metric))
		return
	}
	render.JSON(w, r, TrendsResponse{GroupBy: metric, Count: len(trends), Trends: trends})
}

// IssuesQuery holds the filters of GET /issues
type IssuesQuery struct {
	Stage string `query:"stage" validate:"omitempty,column"`
	Limit int    `query:"limit" validate:"gte=0,lte=10000"`
}

// IssuesResponse is the body of GET /issues
type IssuesResponse struct {
	Total  int           `json:"total"`
	Issues []panel.Issue `json:"issues"`
}

// GetIssues handles GET /issues
func (h *ResultsHandler) GetIssues(w http.ResponseWriter, r *http.Request, out *pipeline.Output) {
	var q IssuesQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	issues := make([]panel.Issue, 0, len(out.Issues))
	for _, is := range out.Issues {
		if q.Stage == "" || is.Stage == q.Stage {
			issues = append(issues, is)
		}
	}
	total := len(issues)
	if q.Limit > 0 && len(issues) > q.Limit {
		issues = issues[:q.Limit]
	}
	render.JSON(w, r, IssuesResponse{Total: total, Issues: issues})
}
