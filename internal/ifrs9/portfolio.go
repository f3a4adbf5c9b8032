package ifrs9

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// statuses in scope of the impairment calculation
var eclStatuses = []models.ContractStatus{
	models.StatusActive,
	models.StatusTerminated,
	models.StatusDefaulted,
}

// CalculatePortfolio computes ECL for every contract in scope and aggregates
// the results by stage, rating and industry
func (e *Engine) CalculatePortfolio(snap models.Snapshot) models.ECLReport {
	contracts := snap.Filter(eclStatuses...)
	report := models.ECLReport{
		Details: make([]models.ECLResult, 0, len(contracts)),
	}
	for _, c := range contracts {
		res, warnings := e.Calculate(c, snap.AsOf)
		report.Details = append(report.Details, res)
		report.Warnings = append(report.Warnings, warnings...)
	}

	report.Summary = summarize(report.Details, snap.AsOf)
	report.ByStage = aggregate(report.Details, func(r models.ECLResult) string {
		return fmt.Sprintf("Stage %d", r.Stage)
	}, byKey)
	report.ByRating = aggregate(report.Details, func(r models.ECLResult) string {
		return r.Rating.String()
	}, byRating)
	report.ByIndustry = aggregate(report.Details, func(r models.ECLResult) string {
		return r.Industry
	}, byECL)

	e.log.WithFields(logrus.Fields{
		"contracts": report.Summary.TotalContracts,
		"total_ecl": report.Summary.TotalECL,
		"warnings":  len(report.Warnings),
	}).Info("ECL calculation completed")
	return report
}

func summarize(details []models.ECLResult, asOf time.Time) models.ECLSummary {
	s := models.ECLSummary{
		ReportingDate:  asOf,
		TotalContracts: len(details),
		ByStage: map[models.Stage]models.StageTotals{
			models.Stage1: {},
			models.Stage2: {},
			models.Stage3: {},
		},
	}
	var sumPD, sumLGD float64
	for _, r := range details {
		s.TotalEAD += r.EAD
		s.TotalECL += r.FinalECL
		sumPD += r.PD12M
		sumLGD += r.LGD
		st := s.ByStage[r.Stage]
		st.Count++
		st.EAD += r.EAD
		st.ECL += r.FinalECL
		s.ByStage[r.Stage] = st
	}
	s.ECLRatio = models.SafeDiv(s.TotalECL, s.TotalEAD) * 100
	s.AvgPD = models.SafeDiv(sumPD, float64(len(details)))
	s.AvgLGD = models.SafeDiv(sumLGD, float64(len(details)))
	return s
}

type aggregateOrder func(a, b models.ECLAggregate) bool

func byKey(a, b models.ECLAggregate) bool { return a.Key < b.Key }

func byECL(a, b models.ECLAggregate) bool {
	if a.ECL != b.ECL {
		return a.ECL > b.ECL
	}
	return a.Key < b.Key
}

// byRating orders along the rating scale with unrated last
func byRating(a, b models.ECLAggregate) bool {
	return models.RatingKeyLess(a.Key, b.Key)
}

func aggregate(details []models.ECLResult, key func(models.ECLResult) string, less aggregateOrder) []models.ECLAggregate {
	groups := make(map[string]*models.ECLAggregate)
	for _, r := range details {
		k := key(r)
		g, ok := groups[k]
		if !ok {
			g = &models.ECLAggregate{Key: k}
			groups[k] = g
		}
		g.Contracts++
		g.EAD += r.EAD
		g.ECL += r.FinalECL
		g.AvgPD += r.PD12M
		g.AvgLGD += r.LGD
	}

	out := make([]models.ECLAggregate, 0, len(groups))
	for _, g := range groups {
		g.CoverageRatio = models.SafeDiv(g.ECL, g.EAD) * 100
		g.AvgPD = models.SafeDiv(g.AvgPD, float64(g.Contracts))
		g.AvgLGD = models.SafeDiv(g.AvgLGD, float64(g.Contracts))
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// BuildProvisions turns ECL results into dated provision records. prior maps
// contract IDs to the previous period's provision amount; contracts without
// a prior record start from zero.
func BuildProvisions(details []models.ECLResult, prior map[int64]float64, date time.Time) []models.Provision {
	out := make([]models.Provision, 0, len(details))
	for _, r := range details {
		out = append(out, models.Provision{
			ContractID:    r.ContractID,
			ReportingDate: date,
			Stage:         r.Stage,
			ECL12M:        r.ECL12M,
			ECLLifetime:   r.ECLLifetime,
			Amount:        r.FinalECL,
			PD:            r.PD12M,
			LGD:           r.LGD,
			EAD:           r.EAD,
			Delta:         r.FinalECL - prior[r.ContractID],
		})
	}
	return out
}
