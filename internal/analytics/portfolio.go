package analytics

import (
	"math"
	"sort"

	"github.com/Dan9191/credit-risk/internal/models"
)

// summaryStatuses are the contracts that make up the reported portfolio
var summaryStatuses = []models.ContractStatus{
	models.StatusActive,
	models.StatusDefaulted,
	models.StatusTerminated,
}

// Summary computes the headline figures of the portfolio
func Summary(snap models.Snapshot) models.PortfolioSummary {
	contracts := snap.Filter(summaryStatuses...)
	var s models.PortfolioSummary
	customers := make(map[int64]struct{})
	var rates, terms float64
	for _, c := range contracts {
		customers[c.CustomerID] = struct{}{}
		s.TotalLimit += c.CreditLimit
		s.TotalUtilized += c.UtilizedLimit
		s.TotalExposure += c.Exposure()
		s.TotalCollateral += c.CollateralValue
		rates += c.InterestRate
		terms += float64(c.TermMonths)
		if c.IsNonPerforming() {
			s.NPLVolume += c.Exposure()
		} else if c.Status == models.StatusActive {
			s.PerformingVolume += c.Exposure()
		}
	}
	s.Contracts = len(contracts)
	s.Customers = len(customers)
	s.UnsecuredExposure = math.Max(0, s.TotalExposure-s.TotalCollateral)
	s.AvgInterestRate = models.SafeDiv(rates, float64(len(contracts)))
	s.AvgTermMonths = models.SafeDiv(terms, float64(len(contracts)))
	s.NPLRatio = models.SafeDiv(s.NPLVolume, s.TotalExposure) * 100
	return s
}

// RatingDistribution buckets every contract by its customer's rating, along
// the rating scale with unrated last
func RatingDistribution(snap models.Snapshot) []models.RatingBucket {
	type acc struct {
		bucket      models.RatingBucket
		customers   map[int64]struct{}
		creditworth float64
	}
	groups := make(map[string]*acc)
	var total float64
	for _, c := range snap.Contracts {
		key := c.Rating.String()
		g, ok := groups[key]
		if !ok {
			g = &acc{bucket: models.RatingBucket{Rating: key}, customers: make(map[int64]struct{})}
			groups[key] = g
		}
		g.customers[c.CustomerID] = struct{}{}
		g.bucket.Contracts++
		g.bucket.Exposure += c.Exposure()
		g.creditworth += c.CreditworthinessIndex
		if c.Status == models.StatusDefaulted {
			g.bucket.Defaults++
		}
		total += c.Exposure()
	}

	out := make([]models.RatingBucket, 0, len(groups))
	for _, g := range groups {
		b := g.bucket
		b.Customers = len(g.customers)
		b.ExposureShare = models.SafeDiv(b.Exposure, total) * 100
		b.AvgCreditworth = models.SafeDiv(g.creditworth, float64(b.Contracts))
		b.DefaultRate = models.SafeDiv(float64(b.Defaults), float64(b.Contracts)) * 100
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.RatingKeyLess(out[i].Rating, out[j].Rating)
	})
	return out
}

// NPL measures non-performing exposure and how far collateral and the given
// provisions cover it
func NPL(snap models.Snapshot, provisions []models.Provision) models.NPLMetrics {
	var m models.NPLMetrics
	for _, c := range snap.Contracts {
		m.TotalExposure += c.Exposure()
		if c.IsNonPerforming() {
			m.NPLExposure += c.Exposure()
			m.NPLCollateral += c.CollateralValue
		}
	}
	for _, p := range provisions {
		m.Provisions += p.Amount
		if p.Stage == models.Stage3 {
			m.Stage3Provisions += p.Amount
		}
	}
	m.NPLRatio = models.SafeDiv(m.NPLExposure, m.TotalExposure) * 100
	m.NPLUnsecured = math.Max(0, m.NPLExposure-m.NPLCollateral)
	m.NPLCoverage = models.SafeDiv(m.NPLCollateral, m.NPLExposure) * 100
	m.CoverageRatio = models.SafeDiv(m.Provisions, m.NPLExposure) * 100
	m.Stage3Coverage = models.SafeDiv(m.Stage3Provisions, m.NPLExposure) * 100
	return m
}

// delinquencyBuckets are upper bounds in days, inclusive
var delinquencyBuckets = []struct {
	name string
	max  int
}{
	{"0 Tage (aktuell)", 0},
	{"1-30 Tage", 30},
	{"31-60 Tage", 60},
	{"61-90 Tage", 90},
	{"91-180 Tage", 180},
	{">180 Tage", math.MaxInt},
}

// Delinquency groups payments that are still open, delayed or defaulted by
// days past due. Payments settled late are not delinquent. Empty buckets are
// omitted.
func Delinquency(payments []models.PaymentRecord) []models.DelinquencyBucket {
	out := make([]models.DelinquencyBucket, len(delinquencyBuckets))
	var totalDue float64
	days := make([]int, len(delinquencyBuckets))
	for _, p := range payments {
		if !p.Outstanding {
			continue
		}
		i := sort.Search(len(delinquencyBuckets), func(i int) bool {
			return p.DaysLate <= delinquencyBuckets[i].max
		})
		b := &out[i]
		b.Payments++
		b.Due += p.Amount
		b.Paid += p.PaidAmount
		days[i] += max(0, p.DaysLate)
		totalDue += p.Amount
	}

	buckets := out[:0]
	for i, b := range out {
		if b.Payments == 0 {
			continue
		}
		b.Bucket = delinquencyBuckets[i].name
		b.Outstanding = b.Due - b.Paid
		b.AvgDaysLate = float64(days[i]) / float64(b.Payments)
		b.Share = models.SafeDiv(b.Due, totalDue) * 100
		buckets = append(buckets, b)
	}
	return buckets
}
