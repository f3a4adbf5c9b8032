package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/Dan9191/credit-risk/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Analyzer is the part of the service the HTTP layer needs
type Analyzer interface {
	Login(username, password string) (string, error)
	Latest() (*service.Report, error)
	RunAnalysis(ctx context.Context, asOf time.Time) (*service.Report, error)
	Scenarios() []models.StressScenario
	RunScenario(key string) (models.StressResult, error)
	Sensitivity(parameter string, values []float64) (models.SensitivityResult, error)
}

type Handler struct {
	svc Analyzer
	log logrus.FieldLogger
	now func() time.Time
}

func NewHandler(svc Analyzer, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log, now: time.Now}
}

// Router wires every endpoint. Report endpoints are wrapped in auth; metrics
// is mounted only when non-nil.
func (h *Handler) Router(auth mux.MiddlewareFunc, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	// Protected routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(auth)
	api.HandleFunc("/runs", h.TriggerRun).Methods(http.MethodPost)
	api.HandleFunc("/report", h.Report).Methods(http.MethodGet)
	api.HandleFunc("/summary", h.Summary).Methods(http.MethodGet)
	api.HandleFunc("/ecl", h.ECL).Methods(http.MethodGet)
	api.HandleFunc("/ecl/aggregates", h.ECLAggregates).Methods(http.MethodGet)
	api.HandleFunc("/capital", h.Capital).Methods(http.MethodGet)
	api.HandleFunc("/large-exposures", h.LargeExposures).Methods(http.MethodGet)
	api.HandleFunc("/concentration/matrix", h.ConcentrationMatrix).Methods(http.MethodGet)
	api.HandleFunc("/concentration/{dimension}", h.Concentration).Methods(http.MethodGet)
	api.HandleFunc("/limits", h.Limits).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.Alerts).Methods(http.MethodGet)
	api.HandleFunc("/stress", h.Stress).Methods(http.MethodGet)
	api.HandleFunc("/stress/scenarios", h.StressScenarios).Methods(http.MethodGet)
	api.HandleFunc("/stress/sensitivity", h.Sensitivity).Methods(http.MethodGet)
	api.HandleFunc("/stress/{scenario}", h.StressScenario).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrUnknownScenario), errors.Is(err, models.ErrNoPortfolio):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNoReport):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithField("error", err).Error("Request failed")
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// withReport runs fn against the latest report
func (h *Handler) withReport(w http.ResponseWriter, fn func(*service.Report) interface{}) {
	report, err := h.svc.Latest()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fn(report))
}

// Login handles analyst authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &models.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	token, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerRun starts an analysis run for the as_of date in the body, today
// when omitted
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AsOf string `json:"as_of"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, &models.ValidationError{Field: "body", Reason: err.Error()})
			return
		}
	}
	asOf := h.now().UTC().Truncate(24 * time.Hour)
	if req.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, req.AsOf)
		if err != nil {
			h.writeError(w, &models.ValidationError{Field: "as_of", Reason: "expected YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	report, err := h.svc.RunAnalysis(r.Context(), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"run_id":    report.RunID,
		"as_of":     report.AsOf.Format(time.DateOnly),
		"contracts": report.Summary.Contracts,
		"alerts":    len(report.Alerts),
	})
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} { return rep })
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"summary":             rep.Summary,
			"rating_distribution": rep.RatingDistribution,
			"npl":                 rep.NPL,
			"delinquency":         rep.Delinquency,
			"vintage":             rep.Vintage,
			"portfolio_trend":     rep.PortfolioTrend,
			"default_trend":       rep.DefaultTrend,
			"loss_comparison":     rep.LossComparison,
		}
	})
}

func (h *Handler) ECL(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"summary":  rep.ECL.Summary,
			"details":  rep.ECL.Details,
			"warnings": rep.ECL.Warnings,
		}
	})
}

func (h *Handler) ECLAggregates(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"by_stage":    rep.ECL.ByStage,
			"by_rating":   rep.ECL.ByRating,
			"by_industry": rep.ECL.ByIndustry,
		}
	})
}

func (h *Handler) Capital(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"requirement":   rep.Capital,
			"metrics":       rep.CapitalMetrics,
			"rwa_by_rating": rep.RWAByRating,
			"capital_base":  rep.CapitalBase,
		}
	})
}

func (h *Handler) LargeExposures(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} { return rep.LargeExposures })
}

// Concentration returns the rows of one dimension
func (h *Handler) Concentration(w http.ResponseWriter, r *http.Request) {
	dim := models.Dimension(mux.Vars(r)["dimension"])
	if !slices.Contains(models.Dimensions, dim) {
		h.writeError(w, &models.ValidationError{Field: "dimension", Reason: fmt.Sprintf("unknown dimension %q", dim)})
		return
	}
	h.withReport(w, func(rep *service.Report) interface{} { return rep.Concentration[dim] })
}

func (h *Handler) ConcentrationMatrix(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"matrix":        rep.Matrix,
			"top_exposures": rep.TopExposures,
		}
	})
}

func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} { return rep.Limits })
}

// Alerts returns the alerts of the latest run, optionally filtered by
// ?severity=
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	severity := models.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !slices.Contains(models.Severities, severity) {
		h.writeError(w, &models.ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", severity)})
		return
	}
	h.withReport(w, func(rep *service.Report) interface{} {
		alerts := rep.Alerts
		if severity != "" {
			alerts = make([]models.Alert, 0, len(rep.Alerts))
			for _, a := range rep.Alerts {
				if a.Severity == severity {
					alerts = append(alerts, a)
				}
			}
		}
		return map[string]interface{}{
			"summary":  rep.AlertSummary,
			"alerts":   alerts,
			"failures": rep.CheckFailures,
		}
	})
}

func (h *Handler) Stress(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, func(rep *service.Report) interface{} {
		return map[string]interface{}{
			"comparison": rep.StressComparison,
			"results":    rep.Stress,
			"failures":   rep.StressFailures,
		}
	})
}

func (h *Handler) StressScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Scenarios())
}

// StressScenario reruns one scenario against the latest snapshot
func (h *Handler) StressScenario(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RunScenario(mux.Vars(r)["scenario"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sensitivity handles ?parameter=pd_multiplier&values=1,1.5,2
func (h *Handler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("values")
	if raw == "" {
		h.writeError(w, &models.ValidationError{Field: "values", Reason: "at least one value is required"})
		return
	}
	var values []float64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			h.writeError(w, &models.ValidationError{Field: "values", Reason: fmt.Sprintf("not a number: %q", part)})
			return
		}
		values = append(values, v)
	}

	res, err := h.svc.Sensitivity(q.Get("parameter"), values)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
