package analytics

import (
	"maps"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/Dan9191/credit-risk/internal/models"
)

const (
	// VintageMinContracts is the cohort size a vintage must exceed to be
	// reported
	VintageMinContracts = 5
	// VintageCohorts caps the number of reported cohorts, newest first
	VintageCohorts = 24
	// TrendMonths is the origination window of the portfolio trend
	TrendMonths = 12
	// DefaultTrendMonths is the window of the default trend
	DefaultTrendMonths = 24

	monthLayout = "2006-01"
	// accuracyFloor keeps model accuracy defined when no loss was expected
	accuracyFloor = 0.01
)

// Vintage groups every contract by origination month and reports how much of
// each cohort's original volume has defaulted. Cohorts with
// VintageMinContracts or fewer contracts are left out.
func Vintage(snap models.Snapshot) []models.VintageCohort {
	type acc struct {
		cohort  models.VintageCohort
		ageDays float64
	}
	groups := make(map[string]*acc)
	for _, c := range snap.Contracts {
		key := c.OriginationDate.Format(monthLayout)
		g, ok := groups[key]
		if !ok {
			g = &acc{cohort: models.VintageCohort{Cohort: key}}
			groups[key] = g
		}
		g.cohort.Contracts++
		g.cohort.OriginalVolume += c.CreditLimit
		if c.Status == models.StatusDefaulted {
			g.cohort.DefaultedVolume += c.OutstandingBalance
		}
		g.ageDays += snap.AsOf.Sub(c.OriginationDate).Hours() / 24
	}

	var out []models.VintageCohort
	for _, key := range slices.Backward(slices.Sorted(maps.Keys(groups))) {
		g := groups[key]
		if g.cohort.Contracts <= VintageMinContracts {
			continue
		}
		v := g.cohort
		v.DefaultRate = models.SafeDiv(v.DefaultedVolume, v.OriginalVolume) * 100
		v.AgeMonths = g.ageDays / float64(v.Contracts) / 30
		out = append(out, v)
		if len(out) == VintageCohorts {
			break
		}
	}
	return out
}

// PortfolioTrend reports new business per origination month over the last
// TrendMonths months, oldest first
func PortfolioTrend(snap models.Snapshot) []models.TrendPoint {
	since := snap.AsOf.AddDate(0, -TrendMonths, 0)
	type acc struct {
		point       models.TrendPoint
		creditworth float64
	}
	groups := make(map[string]*acc)
	for _, c := range snap.Contracts {
		if c.OriginationDate.Before(since) {
			continue
		}
		key := c.OriginationDate.Format(monthLayout)
		g, ok := groups[key]
		if !ok {
			g = &acc{point: models.TrendPoint{Month: key}}
			groups[key] = g
		}
		g.point.NewContracts++
		g.point.NewVolume += c.CreditLimit
		g.creditworth += c.CreditworthinessIndex
	}

	out := make([]models.TrendPoint, 0, len(groups))
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		g := groups[key]
		p := g.point
		p.AvgCreditworth = g.creditworth / float64(p.NewContracts)
		out = append(out, p)
	}
	return out
}

// DefaultTrend counts default events per month over the DefaultTrendMonths
// months before asOf, oldest first. Events without a recovery rate do not
// count towards the average rate.
func DefaultTrend(events []models.DefaultEvent, asOf time.Time) []models.DefaultTrendPoint {
	since := asOf.AddDate(0, -DefaultTrendMonths, 0)
	type acc struct {
		point models.DefaultTrendPoint
		rates float64
		rated int
	}
	groups := make(map[string]*acc)
	for _, e := range events {
		if e.DefaultDate.Before(since) {
			continue
		}
		key := e.DefaultDate.Format(monthLayout)
		g, ok := groups[key]
		if !ok {
			g = &acc{point: models.DefaultTrendPoint{Month: key}}
			groups[key] = g
		}
		g.point.Defaults++
		g.point.DefaultVolume += e.DefaultedAmount
		if e.RecoveryRate != nil {
			g.rates += *e.RecoveryRate
			g.rated++
		}
	}

	out := make([]models.DefaultTrendPoint, 0, len(groups))
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		g := groups[key]
		p := g.point
		p.AvgRecoveryRate = models.SafeDiv(g.rates, float64(g.rated))
		out = append(out, p)
	}
	return out
}

// ExpectedVsActualLoss compares PD × LGD × EAD with the net losses of the
// recorded defaults, per origination year and rating. Missing risk
// parameters are skipped rather than defaulted, so a contract only adds to
// expected loss when PD, LGD and EAD are all present.
func ExpectedVsActualLoss(snap models.Snapshot, events []models.DefaultEvent) []models.LossComparison {
	type key struct {
		year   int
		rating string
	}
	type acc struct {
		row       models.LossComparison
		pd, lgd   float64
		pdN, lgdN int
	}
	byContract := make(map[int64][]models.DefaultEvent)
	for _, e := range events {
		byContract[e.ContractID] = append(byContract[e.ContractID], e)
	}

	groups := make(map[key]*acc)
	for _, c := range snap.Contracts {
		k := key{c.OriginationDate.Year(), c.Rating.String()}
		g, ok := groups[k]
		if !ok {
			g = &acc{row: models.LossComparison{Year: k.year, Rating: k.rating}}
			groups[k] = g
		}
		g.row.Contracts++
		if c.EAD != nil {
			g.row.TotalEAD += *c.EAD
		}
		if c.PD != nil {
			g.pd += *c.PD
			g.pdN++
		}
		if c.LGD != nil {
			g.lgd += *c.LGD
			g.lgdN++
		}
		if c.PD != nil && c.LGD != nil && c.EAD != nil {
			g.row.ExpectedLoss += *c.EAD * *c.PD * *c.LGD
		}
		for _, e := range byContract[c.ContractID] {
			g.row.ActualLoss += e.DefaultedAmount
			g.row.Recovered += e.RecoveredAmount
		}
	}

	out := make([]models.LossComparison, 0, len(groups))
	for _, g := range groups {
		r := g.row
		r.AvgPD = models.SafeDiv(g.pd, float64(g.pdN))
		r.AvgLGD = models.SafeDiv(g.lgd, float64(g.lgdN))
		r.ActualNetLoss = r.ActualLoss - r.Recovered
		r.ELVsActual = r.ExpectedLoss - r.ActualNetLoss
		r.ModelAccuracy = 1 - math.Abs(r.ELVsActual)/(r.ExpectedLoss+accuracyFloor)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return models.RatingKeyLess(out[i].Rating, out[j].Rating)
	})
	return out
}
