package concentration

import (
	"math"
	"sort"
	"strconv"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// TopExposures returns the n customers with the highest active exposure
func (e *Engine) TopExposures(snap models.Snapshot, n int) []models.TopExposure {
	byCustomer := make(map[int64]*models.TopExposure)
	var total float64
	for _, c := range snap.Filter(models.StatusActive) {
		t, ok := byCustomer[c.CustomerID]
		if !ok {
			t = &models.TopExposure{
				CustomerID:   c.CustomerID,
				CustomerName: c.CustomerName,
				Industry:     c.Industry,
				Region:       c.Region,
				Rating:       c.Rating,
			}
			byCustomer[c.CustomerID] = t
		}
		t.Contracts++
		t.TotalLimit += c.CreditLimit
		t.Exposure += c.Exposure()
		t.Collateral += c.CollateralValue
		total += c.Exposure()
	}

	out := make([]models.TopExposure, 0, len(byCustomer))
	for _, t := range byCustomer {
		t.Unsecured = t.Exposure - t.Collateral
		t.PortfolioShare = models.SafeDiv(t.Exposure, total) * 100
		t.LimitUtilization = models.SafeDiv(t.Exposure, t.TotalLimit) * 100
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exposure != out[j].Exposure {
			return out[i].Exposure > out[j].Exposure
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Matrix pivots active exposure by industry and region
func (e *Engine) Matrix(snap models.Snapshot) models.ConcentrationMatrix {
	cells := make(map[[2]string]float64)
	industries := make(map[string]struct{})
	regions := make(map[string]struct{})
	for _, c := range snap.Filter(models.StatusActive) {
		cells[[2]string{c.Industry, c.Region}] += c.Exposure()
		industries[c.Industry] = struct{}{}
		regions[c.Region] = struct{}{}
	}

	m := models.ConcentrationMatrix{
		Industries: sortedKeys(industries),
		Regions:    sortedKeys(regions),
	}
	m.Exposure = make([][]float64, len(m.Industries))
	for i, ind := range m.Industries {
		m.Exposure[i] = make([]float64, len(m.Regions))
		for j, reg := range m.Regions {
			m.Exposure[i][j] = cells[[2]string{ind, reg}]
		}
	}
	return m
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// customerExposure is active exposure per customer, addressable by ID or by
// name. A name shared by several customers resolves to none of them.
type customerExposure struct {
	byID   map[int64]float64
	byName map[string][]int64
}

func (ce customerExposure) add(c models.Contract) {
	if _, seen := ce.byID[c.CustomerID]; !seen && c.CustomerName != "" {
		ce.byName[c.CustomerName] = append(ce.byName[c.CustomerName], c.CustomerID)
	}
	ce.byID[c.CustomerID] += c.Exposure()
}

// resolve finds the customer a single-name limit refers to: the stored
// customer ID first, then a numeric reference naming a known ID, then a
// unique customer name
func (ce customerExposure) resolve(l models.RiskLimit) (id int64, ok bool, ambiguous bool) {
	if l.ReferenceID != nil {
		return *l.ReferenceID, true, false
	}
	if n, err := strconv.ParseInt(l.Reference, 10, 64); err == nil {
		if _, known := ce.byID[n]; known {
			return n, true, false
		}
	}
	switch ids := ce.byName[l.Reference]; len(ids) {
	case 0:
		return 0, false, false
	case 1:
		return ids[0], true, false
	default:
		return 0, false, true
	}
}

// RevalueLimits recomputes the utilization of every limit record against the
// current active exposure. The input slice is not modified.
func (e *Engine) RevalueLimits(limits []models.RiskLimit, snap models.Snapshot) []models.RiskLimit {
	var total float64
	industry := make(map[string]float64)
	region := make(map[string]float64)
	customers := customerExposure{byID: make(map[int64]float64), byName: make(map[string][]int64)}
	for _, c := range snap.Filter(models.StatusActive) {
		exp := c.Exposure()
		total += exp
		industry[c.Industry] += exp
		region[c.Region] += exp
		customers.add(c)
	}

	out := make([]models.RiskLimit, len(limits))
	for i, l := range limits {
		switch l.Type {
		case models.LimitPortfolio:
			l.CurrentUtilization = total
		case models.LimitIndustry:
			l.CurrentUtilization = industry[l.Reference]
		case models.LimitRegion:
			l.CurrentUtilization = region[l.Reference]
		case models.LimitSingleName:
			id, ok, ambiguous := customers.resolve(l)
			if ambiguous {
				e.log.WithFields(logrus.Fields{
					"limit_id":  l.ID,
					"reference": l.Reference,
				}).Warn("Single-name limit matches several customers, not revalued")
			}
			l.CurrentUtilization = 0
			if ok {
				l.CurrentUtilization = customers.byID[id]
			}
		}
		l.UtilizationPct = models.SafeDiv(l.CurrentUtilization, l.LimitValue) * 100
		l.Excess = math.Max(0, l.CurrentUtilization-l.LimitValue)
		l.Status = e.ClassifyUtilization(l.UtilizationPct)
		l.Breached = l.Status == models.LimitBreached
		out[i] = l

		if l.Breached {
			e.log.WithFields(logrus.Fields{
				"limit_id":  l.ID,
				"name":      l.Name,
				"reference": l.Reference,
				"excess":    l.Excess,
			}).Warn("Risk limit breached")
		}
	}
	return out
}
