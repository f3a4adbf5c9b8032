package earlywarning

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// Input is everything the rule battery looks at during one run
type Input struct {
	AsOf          time.Time
	Snapshot      models.Snapshot
	Payments      []models.PaymentRecord
	RatingChanges []models.RatingChange
	Limits        []models.RiskLimit
	Macro         []models.MacroObservation
}

// Config holds the rule thresholds plus the industry cap used by the
// concentration check
type Config struct {
	config.EarlyWarningConfig
	IndustryMax          float64 // percent of portfolio
	ConcentrationWarning float64 // percent of cap
}

// NewConfig picks the early warning settings out of the risk config
func NewConfig(risk config.RiskConfig) Config {
	return Config{
		EarlyWarningConfig:   risk.EarlyWarning,
		IndustryMax:          risk.Concentration.IndustryMax,
		ConcentrationWarning: risk.Concentration.WarningThreshold,
	}
}

// Check is one independent rule of the battery
type Check struct {
	Name string
	Run  func(in Input, cfg Config) ([]models.Alert, error)
}

// CheckFailure records a check that errored or panicked. The other checks
// still run.
type CheckFailure struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// Result is the outcome of one evaluation pass
type Result struct {
	Alerts   []models.Alert `json:"alerts"`
	Failures []CheckFailure `json:"failures,omitempty"`
}

// Engine runs the rule battery
type Engine struct {
	cfg    Config
	checks []Check
	log    logrus.FieldLogger
}

// NewEngine initializes a new early warning engine with the given checks
func NewEngine(cfg Config, checks []Check, log logrus.FieldLogger) *Engine {
	return &Engine{cfg: cfg, checks: checks, log: log}
}

// Evaluate runs every check in order and returns all alerts sorted from
// most to least severe. Alerts of equal severity keep discovery order.
func (e *Engine) Evaluate(in Input) Result {
	var res Result
	for _, check := range e.checks {
		alerts, err := runCheck(check, in, e.cfg)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"check": check.Name,
				"error": err,
			}).Error("Early warning check failed")
			res.Failures = append(res.Failures, CheckFailure{Check: check.Name, Reason: err.Error()})
			continue
		}
		e.log.WithFields(logrus.Fields{
			"check":  check.Name,
			"alerts": len(alerts),
		}).Debug("Early warning check completed")
		res.Alerts = append(res.Alerts, alerts...)
	}

	sort.SliceStable(res.Alerts, func(i, j int) bool {
		return res.Alerts[i].Severity.Rank() < res.Alerts[j].Severity.Rank()
	})

	e.log.WithFields(logrus.Fields{
		"alerts":   len(res.Alerts),
		"failures": len(res.Failures),
	}).Info("Early warning checks completed")
	return res
}

func runCheck(check Check, in Input, cfg Config) (alerts []models.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return check.Run(in, cfg)
}

// Summarize counts alerts by severity and category
func Summarize(alerts []models.Alert) models.AlertSummary {
	s := models.AlertSummary{
		Total:      len(alerts),
		BySeverity: make(map[models.Severity]int, len(models.Severities)),
		ByCategory: make(map[string]int),
	}
	for _, sev := range models.Severities {
		s.BySeverity[sev] = 0
	}
	for _, a := range alerts {
		s.BySeverity[a.Severity]++
		s.ByCategory[a.Category]++
	}
	return s
}
