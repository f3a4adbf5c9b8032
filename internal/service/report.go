package service

import (
	"time"

	"github.com/Dan9191/credit-risk/internal/earlywarning"
	"github.com/Dan9191/credit-risk/internal/models"
)

// Report is the complete output of one analysis run. A report is never
// modified after it has been published.
type Report struct {
	RunID       string    `json:"run_id"`
	AsOf        time.Time `json:"as_of"`
	GeneratedAt time.Time `json:"generated_at"`

	Summary            models.PortfolioSummary    `json:"summary"`
	RatingDistribution []models.RatingBucket      `json:"rating_distribution"`
	NPL                models.NPLMetrics          `json:"npl"`
	Delinquency        []models.DelinquencyBucket `json:"delinquency"`
	Vintage            []models.VintageCohort     `json:"vintage"`
	PortfolioTrend     []models.TrendPoint        `json:"portfolio_trend"`
	DefaultTrend       []models.DefaultTrendPoint `json:"default_trend"`
	LossComparison     []models.LossComparison    `json:"expected_vs_actual_loss"`

	ECL        models.ECLReport   `json:"ecl"`
	Provisions []models.Provision `json:"provisions"`

	Capital        models.CapitalRequirement `json:"capital"`
	CapitalMetrics []models.Metric           `json:"capital_metrics"`
	RWAByRating    []models.RWARatingRow     `json:"rwa_by_rating"`
	CapitalBase    float64                   `json:"capital_base"`
	LargeExposures []models.LargeExposure    `json:"large_exposures"`

	Concentration map[models.Dimension][]models.ConcentrationRow `json:"concentration"`
	TopExposures  []models.TopExposure                           `json:"top_exposures"`
	Matrix        models.ConcentrationMatrix                     `json:"concentration_matrix"`
	Limits        []models.RiskLimit                             `json:"limits"`

	Alerts        []models.Alert              `json:"alerts"`
	AlertSummary  models.AlertSummary         `json:"alert_summary"`
	CheckFailures []earlywarning.CheckFailure `json:"check_failures,omitempty"`

	Stress           []models.StressResult        `json:"stress"`
	StressComparison []models.StressComparisonRow `json:"stress_comparison"`
	StressFailures   []models.ScenarioFailure     `json:"stress_failures,omitempty"`

	// KeyRate is the ECB main refinancing rate in percent, zero when the
	// rate could not be fetched
	KeyRate float64 `json:"key_rate,omitempty"`
}
