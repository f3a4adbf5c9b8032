// Package metrics exports the results of analysis runs as Prometheus gauges
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/Dan9191/credit-risk/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credit_risk"

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge

	exposure    prometheus.Gauge
	nplRatio    prometheus.Gauge
	eclByStage  *prometheus.GaugeVec
	totalRWA    prometheus.Gauge
	capitalReq  prometheus.Gauge
	largeExp    prometheus.Gauge
	alerts      *prometheus.GaugeVec
	limitUtil   *prometheus.GaugeVec
	stressECL   *prometheus.GaugeVec
	stressDelta *prometheus.GaugeVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_run_duration_seconds",
			Help:      "Duration of analysis runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the latest successful run",
		}),
		exposure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "exposure_eur",
			Help:      "Total portfolio exposure",
		}),
		nplRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "npl_ratio_percent",
			Help:      "Non-performing loan ratio",
		}),
		eclByStage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ifrs9",
			Name:      "ecl_eur",
			Help:      "Expected credit loss by stage",
		}, []string{"stage"}),
		totalRWA: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capital",
			Name:      "rwa_eur",
			Help:      "Total risk weighted assets",
		}),
		capitalReq: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capital",
			Name:      "requirement_eur",
			Help:      "Total capital requirement",
		}),
		largeExp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capital",
			Name:      "large_exposure_breaches",
			Help:      "Customers above the large exposure limit",
		}),
		alerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "early_warning",
			Name:      "alerts",
			Help:      "Alerts of the latest run by severity",
		}, []string{"severity"}),
		limitUtil: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "limits",
			Name:      "utilization_percent",
			Help:      "Risk limit utilization",
		}, []string{"limit_id", "type"}),
		stressECL: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stress",
			Name:      "ecl_eur",
			Help:      "Stressed expected credit loss by scenario",
		}, []string{"scenario"}),
		stressDelta: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stress",
			Name:      "capital_impact_eur",
			Help:      "Additional capital required under each scenario",
		}, []string{"scenario"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunFinished counts a run and its duration
func (m *Metrics) RunFinished(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// ObserveReport replaces the gauges with the figures of a report
func (m *Metrics) ObserveReport(r *service.Report) {
	m.lastRun.Set(float64(r.GeneratedAt.Unix()))
	m.exposure.Set(r.Summary.TotalExposure)
	m.nplRatio.Set(r.Summary.NPLRatio)
	m.totalRWA.Set(r.Capital.TotalRWA)
	m.capitalReq.Set(r.Capital.TotalCapitalRequirement)

	breaches := 0
	for _, le := range r.LargeExposures {
		if le.ExceedsLimit {
			breaches++
		}
	}
	m.largeExp.Set(float64(breaches))

	m.eclByStage.Reset()
	for _, stage := range []models.Stage{models.Stage1, models.Stage2, models.Stage3} {
		m.eclByStage.WithLabelValues(fmt.Sprint(int(stage))).Set(r.ECL.Summary.ByStage[stage].ECL)
	}

	m.alerts.Reset()
	for sev, n := range r.AlertSummary.BySeverity {
		m.alerts.WithLabelValues(string(sev)).Set(float64(n))
	}

	m.limitUtil.Reset()
	for _, l := range r.Limits {
		m.limitUtil.WithLabelValues(strconv.FormatInt(l.ID, 10), string(l.Type)).Set(l.UtilizationPct)
	}

	m.stressECL.Reset()
	m.stressDelta.Reset()
	for _, s := range r.Stress {
		m.stressECL.WithLabelValues(s.Scenario.Key).Set(s.StressedECL)
		m.stressDelta.WithLabelValues(s.Scenario.Key).Set(s.CapitalImpact)
	}
}
