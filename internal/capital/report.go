package capital

import (
	"sort"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/shopspring/decimal"
)

// Metrics flattens a capital requirement into the metric/value/unit table.
// Amounts are rounded to cents, percentages to two places.
func Metrics(req models.CapitalRequirement) []models.Metric {
	eur := func(name string, v float64) models.Metric {
		return models.Metric{Name: name, Value: decimal.NewFromFloat(v).Round(2), Unit: "EUR"}
	}
	return []models.Metric{
		eur("Total Exposure", req.TotalExposure),
		eur("Total RWA", req.TotalRWA),
		eur("Credit Risk RWA", req.CreditRiskRWA),
		eur("Market Risk RWA", req.MarketRiskRWA),
		eur("Operational Risk RWA", req.OperationalRiskRWA),
		{Name: "RWA Density", Value: decimal.NewFromFloat(req.RWADensity).Round(2), Unit: "%"},
		eur("CET1 Requirement", req.CET1Requirement),
		eur("Tier 1 Requirement", req.Tier1Requirement),
		eur("Total Capital Requirement", req.TotalCapitalRequirement),
		eur("Conservation Buffer", req.Buffers["conservation_buffer"]),
		eur("Countercyclical Buffer", req.Buffers["countercyclical_buffer"]),
		eur("Systemic Buffer", req.Buffers["systemic_buffer"]),
	}
}

// CapitalBase returns the configured capital base, or the base implied by
// the total capital requirement when none is configured
func (e *Engine) CapitalBase(req models.CapitalRequirement) float64 {
	if e.reg.CapitalBase > 0 {
		return e.reg.CapitalBase
	}
	return models.SafeDiv(req.TotalCapitalRequirement, e.reg.TotalCapitalRatio)
}

// LargeExposures aggregates active exposure per customer and returns the
// customers at or above the large exposure threshold, largest first
func (e *Engine) LargeExposures(snap models.Snapshot, capitalBase float64) []models.LargeExposure {
	threshold := capitalBase * e.reg.LargeExposureThreshold
	limit := capitalBase * e.reg.LargeExposureLimit

	byCustomer := make(map[int64]*models.LargeExposure)
	var order []int64
	for _, c := range snap.Filter(models.StatusActive) {
		le, ok := byCustomer[c.CustomerID]
		if !ok {
			le = &models.LargeExposure{
				CustomerID:   c.CustomerID,
				CustomerName: c.CustomerName,
				Industry:     c.Industry,
				Rating:       c.Rating,
				Segment:      c.Segment,
			}
			byCustomer[c.CustomerID] = le
			order = append(order, c.CustomerID)
		}
		le.Contracts++
		le.GrossExposure += c.Exposure()
		le.Collateral += c.CollateralValue
	}

	var out []models.LargeExposure
	for _, id := range order {
		le := byCustomer[id]
		if capitalBase <= 0 || le.GrossExposure < threshold {
			continue
		}
		le.NetExposure = le.GrossExposure - le.Collateral
		le.CapitalBase = capitalBase
		le.Threshold = threshold
		le.ExposureRatio = models.SafeDiv(le.GrossExposure, capitalBase) * 100
		le.ExceedsLimit = le.GrossExposure > limit
		le.Headroom = limit - le.GrossExposure
		out = append(out, *le)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GrossExposure > out[j].GrossExposure
	})

	if len(out) > 0 {
		e.log.WithField("large_exposures", len(out)).Info("Large exposures identified")
	}
	return out
}
