package capital

import (
	"math"
	"sort"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine computes risk-weighted assets and capital requirements under the
// standardised approach
type Engine struct {
	cfg config.CapitalConfig
	reg config.RegulatoryConfig
	log logrus.FieldLogger
}

// NewEngine initializes a new capital engine
func NewEngine(cfg config.CapitalConfig, reg config.RegulatoryConfig, log logrus.FieldLogger) *Engine {
	return &Engine{cfg: cfg, reg: reg, log: log}
}

// ExposureTypeOf derives the Basel exposure class of a contract
func ExposureTypeOf(c models.Contract) models.ExposureType {
	switch {
	case c.ProductType == models.ProductMortgage:
		return models.ExposureMortgage
	case c.Segment == models.SegmentRetail:
		return models.ExposureRetail
	default:
		return models.ExposureCorporate
	}
}

// RiskWeight returns the regulatory risk weight. Retail and mortgage
// exposures have flat weights; otherwise the full rating with notch is looked
// up first, then its grade.
func (e *Engine) RiskWeight(r models.Rating, t models.ExposureType) float64 {
	switch t {
	case models.ExposureRetail:
		return e.cfg.RetailWeight
	case models.ExposureMortgage:
		return e.cfg.MortgageWeight
	}
	if !r.IsRated() {
		return e.cfg.UnratedWeight
	}
	if w, ok := e.cfg.RiskWeights[r.String()]; ok {
		return w
	}
	if w, ok := e.cfg.RiskWeights[r.Grade]; ok {
		return w
	}
	return e.cfg.UnratedWeight
}

// Haircut returns the collateral haircut for a collateral type
func (e *Engine) Haircut(t models.CollateralType) float64 {
	if h, ok := e.cfg.Haircuts[string(t)]; ok {
		return h
	}
	return e.cfg.DefaultHaircut
}

// NetExposure nets eligible collateral against EAD, never below zero
func (e *Engine) NetExposure(ead, collateral float64, t models.CollateralType) (eligible, net float64) {
	eligible = collateral * (1 - e.Haircut(t))
	return eligible, math.Max(0, ead-eligible)
}

// CreditRiskRWA weights every active contract
func (e *Engine) CreditRiskRWA(snap models.Snapshot) []models.RWARow {
	contracts := snap.Filter(models.StatusActive)
	rows := make([]models.RWARow, 0, len(contracts))
	for _, c := range contracts {
		ead := c.OutstandingBalance
		if c.EAD != nil {
			ead = *c.EAD
		}
		eligible, net := e.NetExposure(ead, c.CollateralValue, c.CollateralType)
		typ := ExposureTypeOf(c)
		rw := e.RiskWeight(c.Rating, typ)
		rows = append(rows, models.RWARow{
			ContractID:         c.ContractID,
			CustomerID:         c.CustomerID,
			CustomerName:       c.CustomerName,
			Rating:             c.Rating,
			ExposureType:       typ,
			Exposure:           c.OutstandingBalance,
			EAD:                ead,
			EligibleCollateral: eligible,
			NetExposure:        net,
			RiskWeight:         rw,
			RWA:                net * rw,
		})
	}
	return rows
}

// Requirements computes the capital requirement summary of the active
// portfolio
func (e *Engine) Requirements(snap models.Snapshot) models.CapitalRequirement {
	return e.RequirementsFromRows(e.CreditRiskRWA(snap))
}

// RequirementsFromRows aggregates already weighted contracts. Market and
// operational risk are fixed shares of credit risk RWA.
func (e *Engine) RequirementsFromRows(rows []models.RWARow) models.CapitalRequirement {
	var req models.CapitalRequirement
	for _, r := range rows {
		req.TotalExposure += r.Exposure
		req.CreditRiskRWA += r.RWA
	}
	req.MarketRiskRWA = req.CreditRiskRWA * e.cfg.MarketRiskShare
	req.OperationalRiskRWA = req.CreditRiskRWA * e.cfg.OperationalRiskShare
	req.TotalRWA = req.CreditRiskRWA + req.MarketRiskRWA + req.OperationalRiskRWA
	req.RWADensity = models.SafeDiv(req.TotalRWA, req.TotalExposure) * 100
	req.CET1Requirement = req.TotalRWA * e.reg.CET1Ratio
	req.Tier1Requirement = req.TotalRWA * e.reg.Tier1Ratio
	req.TotalCapitalRequirement = req.TotalRWA * e.reg.TotalCapitalRatio
	req.Buffers = map[string]float64{
		"conservation_buffer":    req.TotalRWA * e.reg.ConservationBuffer,
		"countercyclical_buffer": req.TotalRWA * e.reg.CountercyclicalBuffer,
		"systemic_buffer":        req.TotalRWA * e.reg.SystemicBuffer,
	}

	e.log.WithFields(logrus.Fields{
		"contracts": len(rows),
		"total_rwa": req.TotalRWA,
	}).Info("Capital requirements calculated")
	return req
}

// RWAByRating summarizes weighted contracts per rating along the scale
func RWAByRating(rows []models.RWARow) []models.RWARatingRow {
	groups := make(map[string]*models.RWARatingRow)
	order := make(map[string]int)
	for _, r := range rows {
		key := r.Rating.String()
		g, ok := groups[key]
		if !ok {
			g = &models.RWARatingRow{Rating: key}
			groups[key] = g
			idx := r.Rating.Index()
			if idx < 0 {
				idx = len(models.RatingScale)
			}
			order[key] = idx
		}
		g.GrossExposure += r.Exposure
		g.NetExposure += r.NetExposure
		g.RWA += r.RWA
		g.Contracts++
	}

	out := make([]models.RWARatingRow, 0, len(groups))
	for _, g := range groups {
		g.RWADensity = models.SafeDiv(g.RWA, g.NetExposure) * 100
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if order[out[i].Rating] != order[out[j].Rating] {
			return order[out[i].Rating] < order[out[j].Rating]
		}
		return out[i].Rating < out[j].Rating
	})
	return out
}
