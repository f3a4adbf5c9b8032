package stress

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/Dan9191/credit-risk/internal/capital"
	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/ifrs9"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SensitivityBase is the scenario varied by Sensitivity
const SensitivityBase = "recession_mild"

// Engine applies stress scenarios to a snapshot and compares the stressed
// portfolio against its baseline
type Engine struct {
	cfg       config.StressConfig
	staging   *ifrs9.Engine
	rwa       *capital.Engine
	log       logrus.FieldLogger
	keys      []string
	scenarios map[string]models.StressScenario
}

// NewEngine initializes a new stress engine. Scenarios from cfg are merged
// over the predefined catalogue.
func NewEngine(cfg config.StressConfig, staging *ifrs9.Engine, rwa *capital.Engine, log logrus.FieldLogger) *Engine {
	keys, scenarios := catalogue(cfg.Scenarios)
	return &Engine{
		cfg:       cfg,
		staging:   staging,
		rwa:       rwa,
		log:       log,
		keys:      keys,
		scenarios: scenarios,
	}
}

// Scenarios returns the configured scenarios in reporting order
func (e *Engine) Scenarios() []models.StressScenario {
	out := make([]models.StressScenario, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, e.scenarios[k])
	}
	return out
}

// Scenario looks up a scenario by key
func (e *Engine) Scenario(key string) (models.StressScenario, error) {
	s, ok := e.scenarios[key]
	if !ok {
		return models.StressScenario{}, &models.ConfigurationError{Name: key, Err: models.ErrUnknownScenario}
	}
	return s, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects scenarios whose parameters cannot be applied
func Validate(s models.StressScenario) error {
	if !finite(s.PDMultiplier) || s.PDMultiplier < 0 {
		return &models.ValidationError{Field: "pd_multiplier", Reason: fmt.Sprintf("must be a finite non-negative number, got %v", s.PDMultiplier)}
	}
	if !finite(s.LGDAdjustment) || s.LGDAdjustment < -1 || s.LGDAdjustment > 1 {
		return &models.ValidationError{Field: "lgd_adjustment", Reason: fmt.Sprintf("must be within [-1,1], got %v", s.LGDAdjustment)}
	}
	if !finite(s.RateShock) {
		return &models.ValidationError{Field: "rate_shock", Reason: fmt.Sprintf("must be finite, got %v", s.RateShock)}
	}
	for _, shocks := range []struct {
		field string
		m     map[string]float64
	}{
		{"industry_shocks", s.IndustryShocks},
		{"regional_shocks", s.RegionalShocks},
	} {
		for _, k := range slices.Sorted(maps.Keys(shocks.m)) {
			if v := shocks.m[k]; !finite(v) || v < 0 {
				return &models.ValidationError{
					Field:  fmt.Sprintf("%s[%s]", shocks.field, k),
					Reason: fmt.Sprintf("must be a finite non-negative number, got %v", v),
				}
			}
		}
	}
	return nil
}

// stressStage re-derives the stage from the PD shift alone
func (e *Engine) stressStage(stressedPD, baselinePD float64) models.Stage {
	switch {
	case stressedPD >= e.cfg.SevereStage3PD, stressedPD >= e.cfg.Stage3PD:
		return models.Stage3
	case stressedPD > baselinePD*e.cfg.Stage2Multiple, stressedPD-baselinePD > e.cfg.Stage2Delta:
		return models.Stage2
	}
	return models.Stage1
}

// Apply stresses every active and terminated contract. The snapshot and the
// scenario are left untouched. Apply does not validate the scenario.
func (e *Engine) Apply(snap models.Snapshot, s models.StressScenario) []models.StressedContract {
	contracts := snap.Filter(models.StatusActive, models.StatusTerminated)
	out := make([]models.StressedContract, 0, len(contracts))
	for _, c := range contracts {
		p, _ := e.staging.Params(c)
		rw := e.rwa.RiskWeight(c.Rating, capital.ExposureTypeOf(c))

		pd := p.PD * s.PDMultiplier
		if m, ok := s.IndustryShocks[c.Industry]; ok {
			pd *= m
		}
		if m, ok := s.RegionalShocks[c.Region]; ok {
			pd *= m
		}
		pd = math.Min(1, pd)
		lgd := math.Max(0, math.Min(1, p.LGD+s.LGDAdjustment))

		ead := p.EAD
		if s.RateShock != 0 && c.ProductType.IsRevolving() {
			ead = math.Max(0, ead*(1+e.cfg.RateSensitivity*s.RateShock))
		}

		// the floor keeps zero-PD contracts at a ratio of one
		ratio := math.Min(e.cfg.RWARatioCap,
			math.Max(pd, e.cfg.MinBaselinePD)/math.Max(p.PD, e.cfg.MinBaselinePD))

		baselineStage := e.staging.ClassifyStage(c)
		out = append(out, models.StressedContract{
			ContractID:    c.ContractID,
			Industry:      c.Industry,
			Region:        c.Region,
			Rating:        c.Rating,
			Exposure:      c.Exposure(),
			BaselinePD:    p.PD,
			BaselineLGD:   p.LGD,
			BaselineEAD:   p.EAD,
			BaselineECL:   p.EAD * p.PD * p.LGD,
			BaselineRWA:   p.EAD * rw,
			BaselineStage: baselineStage,
			StressedPD:    pd,
			StressedLGD:   lgd,
			StressedEAD:   ead,
			StressedECL:   ead * pd * lgd,
			StressedRWA:   ead * rw * (1 + (ratio-1)*e.cfg.RWASensitivity),
			StressedStage: max(baselineStage, e.stressStage(pd, p.PD)),
		})
	}
	return out
}

// Run validates and applies a scenario and summarizes the outcome
func (e *Engine) Run(snap models.Snapshot, s models.StressScenario) (models.StressResult, error) {
	if err := Validate(s); err != nil {
		return models.StressResult{}, fmt.Errorf("failed to run scenario %q: %w", s.Key, err)
	}
	rows := e.Apply(snap, s)

	res := models.StressResult{Scenario: s, AffectedContracts: len(rows)}
	for _, r := range rows {
		res.BaselineECL += r.BaselineECL
		res.StressedECL += r.StressedECL
		res.BaselineRWA += r.BaselineRWA
		res.StressedRWA += r.StressedRWA

		switch {
		case r.BaselineStage == models.Stage1 && r.StressedStage == models.Stage2:
			res.Migration.Stage1To2++
		case r.BaselineStage == models.Stage1 && r.StressedStage == models.Stage3:
			res.Migration.Stage1To3++
		case r.BaselineStage == models.Stage2 && r.StressedStage == models.Stage3:
			res.Migration.Stage2To3++
		}
	}
	res.ECLIncrease = res.StressedECL - res.BaselineECL
	res.ECLIncreasePct = models.SafeDiv(res.ECLIncrease, res.BaselineECL) * 100
	res.RWAIncrease = res.StressedRWA - res.BaselineRWA
	res.RWAIncreasePct = models.SafeDiv(res.RWAIncrease, res.BaselineRWA) * 100
	res.CapitalImpact = res.RWAIncrease * e.cfg.CapitalCharge

	res.ByIndustry = breakdown(rows, func(r models.StressedContract) string { return r.Industry }, byIncrease)
	res.ByRating = breakdown(rows, func(r models.StressedContract) string { return r.Rating.String() }, byRatingKey)

	e.log.WithFields(logrus.Fields{
		"scenario":       s.Key,
		"contracts":      res.AffectedContracts,
		"baseline_ecl":   res.BaselineECL,
		"stressed_ecl":   res.StressedECL,
		"capital_impact": res.CapitalImpact,
	}).Info("Stress scenario completed")
	return res, nil
}

// RunNamed runs a configured scenario by key
func (e *Engine) RunNamed(snap models.Snapshot, key string) (models.StressResult, error) {
	s, err := e.Scenario(key)
	if err != nil {
		return models.StressResult{}, err
	}
	return e.Run(snap, s)
}

func (e *Engine) runSafe(snap models.Snapshot, s models.StressScenario) (res models.StressResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Run(snap, s)
}

// RunAll runs every configured scenario, at most MaxParallel at a time.
// Results keep catalogue order regardless of scheduling. A failing scenario
// is reported in the failure list and does not stop the others; only a
// cancelled context aborts the batch.
func (e *Engine) RunAll(ctx context.Context, snap models.Snapshot) ([]models.StressResult, []models.ScenarioFailure, error) {
	results := make([]*models.StressResult, len(e.keys))
	errs := make([]error, len(e.keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.MaxParallel))
	for i, key := range e.keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.runSafe(snap, e.scenarios[key])
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to run stress scenarios: %w", err)
	}

	var (
		out      []models.StressResult
		failures []models.ScenarioFailure
	)
	for i, key := range e.keys {
		if errs[i] != nil {
			e.log.WithFields(logrus.Fields{
				"scenario": key,
				"error":    errs[i],
			}).Error("Stress scenario failed")
			failures = append(failures, models.ScenarioFailure{Scenario: key, Reason: errs[i].Error()})
			continue
		}
		out = append(out, *results[i])
	}
	return out, failures, nil
}

// Sensitivity varies one parameter of the base scenario over values. The
// parameter is one of pd_multiplier, lgd_adjustment or rate_shock; any other
// parameter is rejected before a value is run.
func (e *Engine) Sensitivity(snap models.Snapshot, parameter string, values []float64) (models.SensitivityResult, error) {
	res := models.SensitivityResult{Parameter: parameter, Points: make([]models.SensitivityPoint, 0, len(values))}
	base, err := e.Scenario(SensitivityBase)
	if err != nil {
		return res, err
	}

	var vary func(v float64) models.StressScenario
	switch parameter {
	case "pd_multiplier":
		vary = base.WithPDMultiplier
	case "lgd_adjustment":
		vary = base.WithLGDAdjustment
	case "rate_shock":
		vary = base.WithRateShock
	default:
		return res, &models.ValidationError{Field: "parameter", Reason: fmt.Sprintf("unsupported sensitivity parameter %q", parameter)}
	}

	for _, v := range values {
		s := vary(v).Renamed(
			fmt.Sprintf("sensitivity_%s_%g", parameter, v),
			fmt.Sprintf("Sensitivität %s = %g", parameter, v),
			models.ScenarioCustom,
		)
		run, err := e.runSafe(snap, s)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"scenario": s.Key,
				"error":    err,
			}).Warn("Sensitivity value skipped")
			res.Failures = append(res.Failures, models.ScenarioFailure{Scenario: s.Key, Reason: err.Error()})
			continue
		}
		res.Points = append(res.Points, models.SensitivityPoint{
			Parameter:      parameter,
			Value:          v,
			BaselineECL:    run.BaselineECL,
			StressedECL:    run.StressedECL,
			ECLIncreasePct: run.ECLIncreasePct,
			CapitalImpact:  run.CapitalImpact,
		})
	}
	return res, nil
}

// ComparisonTable flattens results into one row per scenario
func ComparisonTable(results []models.StressResult) []models.StressComparisonRow {
	rows := make([]models.StressComparisonRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, models.StressComparisonRow{
			Scenario:       r.Scenario.Name,
			Type:           r.Scenario.Type,
			BaselineECL:    r.BaselineECL,
			StressedECL:    r.StressedECL,
			ECLIncrease:    r.ECLIncrease,
			ECLIncreasePct: r.ECLIncreasePct,
			BaselineRWA:    r.BaselineRWA,
			StressedRWA:    r.StressedRWA,
			RWAIncrease:    r.RWAIncrease,
			CapitalImpact:  r.CapitalImpact,
			Stage1To2:      r.Migration.Stage1To2,
			Stage1To3:      r.Migration.Stage1To3,
			Stage2To3:      r.Migration.Stage2To3,
		})
	}
	return rows
}

func byIncrease(a, b models.StressBreakdown) bool {
	if a.ECLIncrease != b.ECLIncrease {
		return a.ECLIncrease > b.ECLIncrease
	}
	return a.Key < b.Key
}

func byRatingKey(a, b models.StressBreakdown) bool {
	return models.RatingKeyLess(a.Key, b.Key)
}

func breakdown(rows []models.StressedContract, key func(models.StressedContract) string, less func(a, b models.StressBreakdown) bool) []models.StressBreakdown {
	groups := make(map[string]*models.StressBreakdown)
	for _, r := range rows {
		k := key(r)
		g, ok := groups[k]
		if !ok {
			g = &models.StressBreakdown{Key: k}
			groups[k] = g
		}
		g.Contracts++
		g.Exposure += r.Exposure
		g.BaselineECL += r.BaselineECL
		g.StressedECL += r.StressedECL
	}

	out := make([]models.StressBreakdown, 0, len(groups))
	for _, g := range groups {
		g.ECLIncrease = g.StressedECL - g.BaselineECL
		g.ECLIncreasePct = models.SafeDiv(g.ECLIncrease, g.BaselineECL) * 100
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
