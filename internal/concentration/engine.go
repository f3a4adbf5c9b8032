package concentration

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine aggregates exposure by dimension and compares it against caps
type Engine struct {
	cfg config.ConcentrationConfig
	log logrus.FieldLogger
}

// NewEngine initializes a new concentration engine
func NewEngine(cfg config.ConcentrationConfig, log logrus.FieldLogger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

type statusTier struct {
	min    float64
	status models.LimitStatus
}

// ClassifyUtilization maps a utilization in percent of a limit to its status.
// Concentration rows and stored limit records share this table.
func (e *Engine) ClassifyUtilization(pct float64) models.LimitStatus {
	tiers := []statusTier{
		{100, models.LimitBreached},
		{e.cfg.CriticalThreshold, models.LimitCritical},
		{e.cfg.WarningThreshold, models.LimitWarning},
	}
	for _, t := range tiers {
		if pct >= t.min {
			return t.status
		}
	}
	return models.LimitOK
}

func groupKey(c models.Contract, d models.Dimension) (string, error) {
	switch d {
	case models.DimensionCustomer:
		return strconv.FormatInt(c.CustomerID, 10), nil
	case models.DimensionIndustry:
		return c.Industry, nil
	case models.DimensionRegion:
		return c.Region, nil
	case models.DimensionProduct:
		return string(c.ProductType), nil
	}
	return "", &models.ValidationError{Field: "dimension", Reason: fmt.Sprintf("unknown dimension %q", d)}
}

type group struct {
	row       models.ConcentrationRow
	customers map[int64]struct{}
	score     float64
}

// Analyze returns the share of every group of a dimension in the active
// portfolio, largest first
func (e *Engine) Analyze(snap models.Snapshot, d models.Dimension) ([]models.ConcentrationRow, error) {
	contracts := snap.Filter(models.StatusActive)
	groups := make(map[string]*group)
	var total float64
	for _, c := range contracts {
		key, err := groupKey(c, d)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &group{row: models.ConcentrationRow{Dimension: d, Key: key}, customers: make(map[int64]struct{})}
			if d == models.DimensionCustomer {
				g.row.Key = c.CustomerName
			}
			groups[key] = g
		}
		exp := c.Exposure()
		total += exp
		g.row.Contracts++
		g.row.Exposure += exp
		g.customers[c.CustomerID] = struct{}{}
		g.score += c.CreditworthinessIndex
		if c.IsNonPerforming() {
			g.row.NPLExposure += exp
		}
	}

	limit := e.cfg.Cap(d)
	out := make([]models.ConcentrationRow, 0, len(groups))
	for _, g := range groups {
		r := g.row
		r.Customers = len(g.customers)
		r.Share = models.SafeDiv(r.Exposure, total) * 100
		r.Cap = limit
		r.Utilization = models.SafeDiv(r.Share, limit) * 100
		r.Status = e.ClassifyUtilization(r.Utilization)
		r.AvgCreditworth = models.SafeDiv(g.score, float64(r.Contracts))
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exposure != out[j].Exposure {
			return out[i].Exposure > out[j].Exposure
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// AnalyzeAll runs Analyze for every dimension
func (e *Engine) AnalyzeAll(snap models.Snapshot) (map[models.Dimension][]models.ConcentrationRow, error) {
	out := make(map[models.Dimension][]models.ConcentrationRow, len(models.Dimensions))
	for _, d := range models.Dimensions {
		rows, err := e.Analyze(snap, d)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze %s concentration: %w", d, err)
		}
		out[d] = rows
		for _, r := range rows {
			if r.Status != models.LimitOK {
				e.log.WithFields(logrus.Fields{
					"dimension":   d,
					"key":         r.Key,
					"share":       r.Share,
					"utilization": r.Utilization,
					"status":      r.Status,
				}).Warn("Concentration limit utilization elevated")
			}
		}
	}
	return out, nil
}
