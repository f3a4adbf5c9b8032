package earlywarning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Dan9191/credit-risk/internal/models"
)

// DefaultChecks returns the rule battery in evaluation order
func DefaultChecks() []Check {
	return []Check{
		{Name: "payment_delay", Run: checkPaymentDelay},
		{Name: "payment_trend", Run: checkPaymentTrend},
		{Name: "rating_downgrade", Run: checkRatingDowngrade},
		{Name: "limit_utilization", Run: checkLimitUtilization},
		{Name: "financial_deterioration", Run: checkFinancialDeterioration},
		{Name: "concentration_breach", Run: checkConcentrationBreach},
		{Name: "limit_breach", Run: checkLimitBreach},
		{Name: "macro_deterioration", Run: checkMacroDeterioration},
	}
}

// band is one row of a severity table. The first matching band wins.
type band struct {
	match    func(v float64) bool
	severity models.Severity
	category string
}

func above(t float64) func(float64) bool {
	return func(v float64) bool { return v > t }
}

func atLeast(t float64) func(float64) bool {
	return func(v float64) bool { return v >= t }
}

func always(float64) bool { return true }

func classify(bands []band, v float64) (band, bool) {
	for _, b := range bands {
		if b.match(v) {
			return b, true
		}
	}
	return band{}, false
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func byExposure(contracts []models.Contract) []models.Contract {
	out := append([]models.Contract(nil), contracts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Exposure() > out[j].Exposure()
	})
	return out
}

func paymentsByContract(payments []models.PaymentRecord) map[int64][]models.PaymentRecord {
	out := make(map[int64][]models.PaymentRecord)
	for _, p := range payments {
		out[p.ContractID] = append(out[p.ContractID], p)
	}
	return out
}

func checkPaymentDelay(in Input, cfg Config) ([]models.Alert, error) {
	bands := []band{
		{above(float64(cfg.PaymentDelayUrgent)), models.SeverityUrgent, fmt.Sprintf("Zahlungsverzug > %d Tage", cfg.PaymentDelayUrgent)},
		{above(float64(cfg.PaymentDelayCritical)), models.SeverityCritical, fmt.Sprintf("Zahlungsverzug > %d Tage", cfg.PaymentDelayCritical)},
		{always, models.SeverityWarning, fmt.Sprintf("Zahlungsverzug > %d Tage", cfg.PaymentDelayDays)},
	}
	payments := paymentsByContract(in.Payments)

	var alerts []models.Alert
	for _, c := range byExposure(in.Snapshot.Filter(models.StatusActive)) {
		if c.MaxDaysPastDue <= cfg.PaymentDelayDays {
			continue
		}
		delayed := 0
		for _, p := range payments[c.ContractID] {
			if p.DaysLate > cfg.PaymentDelayDays {
				delayed++
			}
		}
		b, _ := classify(bands, float64(c.MaxDaysPastDue))
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("PAY", id(c.ContractID), in.AsOf),
			Check:    "payment_delay",
			Severity: b.severity,
			Category: b.category,
			Title:    fmt.Sprintf("Zahlungsverzug bei %s", c.CustomerName),
			Description: fmt.Sprintf("Vertrag %d hat %d verzögerte Zahlungen mit max. %d Tagen Verzug. Exposure: %.2f EUR",
				c.ContractID, delayed, c.MaxDaysPastDue, c.Exposure()),
			AffectedEntity:    c.CustomerName,
			EntityID:          id(c.CustomerID),
			MetricValue:       float64(c.MaxDaysPastDue),
			Threshold:         float64(cfg.PaymentDelayDays),
			RecommendedAction: "Kundenberatung einleiten, Zahlungsplan prüfen, ggf. Mahnverfahren starten",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

func checkPaymentTrend(in Input, cfg Config) ([]models.Alert, error) {
	since := in.AsOf.AddDate(0, -cfg.TrendWindowMonths, 0)
	payments := paymentsByContract(in.Payments)

	var alerts []models.Alert
	for _, c := range byExposure(in.Snapshot.Filter(models.StatusActive)) {
		var total, delayed, daysLate int
		for _, p := range payments[c.ContractID] {
			if p.DueDate.Before(since) {
				continue
			}
			total++
			daysLate += p.DaysLate
			if p.DaysLate > 0 {
				delayed++
			}
		}
		ratio := models.SafeDiv(float64(delayed), float64(total))
		if delayed <= cfg.TrendMinDelayed || ratio <= cfg.TrendMinRatio {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("PAYTREND", id(c.ContractID), in.AsOf),
			Check:    "payment_trend",
			Severity: models.SeverityWarning,
			Category: "Verschlechterndes Zahlungsverhalten",
			Title:    fmt.Sprintf("Zahlungstrend-Verschlechterung bei %s", c.CustomerName),
			Description: fmt.Sprintf("%.1f%% der Zahlungen in den letzten %d Monaten waren verspätet (%d von %d). Durchschnittliche Verspätung: %.1f Tage",
				ratio*100, cfg.TrendWindowMonths, delayed, total, float64(daysLate)/float64(total)),
			AffectedEntity:    c.CustomerName,
			EntityID:          id(c.CustomerID),
			MetricValue:       ratio * 100,
			Threshold:         cfg.TrendMinRatio * 100,
			RecommendedAction: "Frühzeitige Kundenansprache, Ursachenanalyse durchführen",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

func checkRatingDowngrade(in Input, cfg Config) ([]models.Alert, error) {
	since := in.AsOf.AddDate(0, 0, -cfg.DowngradeWindowDays)
	weakIndex := models.ParseRating("CCC").Index()

	exposure := make(map[int64]float64)
	for _, c := range in.Snapshot.Filter(models.StatusActive) {
		exposure[c.CustomerID] += c.Exposure()
	}

	changes := append([]models.RatingChange(nil), in.RatingChanges...)
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangedAt.After(changes[j].ChangedAt)
	})

	var alerts []models.Alert
	for _, rc := range changes {
		if rc.ChangedAt.Before(since) {
			continue
		}
		notches := models.Notches(rc.OldRating, rc.NewRating)
		if notches <= 0 {
			continue
		}
		severity := models.SeverityInfo
		switch {
		case notches >= 3 || rc.NewRating.Index() >= weakIndex:
			severity = models.SeverityCritical
		case notches >= 2:
			severity = models.SeverityWarning
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("RATING", id(rc.CustomerID), in.AsOf),
			Check:    "rating_downgrade",
			Severity: severity,
			Category: "Rating Downgrade",
			Title:    fmt.Sprintf("Rating-Herabstufung: %s", rc.CustomerName),
			Description: fmt.Sprintf("Rating von %s auf %s geändert am %s. Grund: %s. Exposure: %.2f EUR",
				rc.OldRating, rc.NewRating, rc.ChangedAt.Format("2006-01-02"), rc.Reason, exposure[rc.CustomerID]),
			AffectedEntity:    rc.CustomerName,
			EntityID:          id(rc.CustomerID),
			MetricValue:       float64(notches),
			Threshold:         1,
			RecommendedAction: "Kredit-Review durchführen, Sicherheiten prüfen, PD/LGD Parameter aktualisieren",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

func checkLimitUtilization(in Input, cfg Config) ([]models.Alert, error) {
	bands := []band{
		{atLeast(cfg.UtilizationBreach), models.SeverityCritical, "Limitüberschreitung"},
		{atLeast(cfg.UtilizationWarning), models.SeverityWarning, "Kritische Limitauslastung (>95%)"},
		{above(cfg.UtilizationThreshold), models.SeverityInfo, "Hohe Limitauslastung (>80%)"},
	}

	var contracts []models.Contract
	for _, c := range in.Snapshot.Filter(models.StatusActive) {
		if c.CreditLimit > 0 && c.Utilization() > cfg.UtilizationThreshold {
			contracts = append(contracts, c)
		}
	}
	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].Utilization() > contracts[j].Utilization()
	})

	var alerts []models.Alert
	for _, c := range contracts {
		util := c.Utilization()
		b, ok := classify(bands, util)
		if !ok {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("LIMIT", id(c.ContractID), in.AsOf),
			Check:    "limit_utilization",
			Severity: b.severity,
			Category: b.category,
			Title:    fmt.Sprintf("Hohe Limitauslastung: %s", c.CustomerName),
			Description: fmt.Sprintf("Vertrag %d: %.1f%% Auslastung (%.2f von %.2f EUR). Rating: %s",
				c.ContractID, util, c.UtilizedLimit, c.CreditLimit, c.Rating),
			AffectedEntity:    c.CustomerName,
			EntityID:          id(c.CustomerID),
			MetricValue:       util,
			Threshold:         cfg.UtilizationThreshold,
			RecommendedAction: "Limiterhöhung prüfen oder Rückführungsplan erstellen",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

type customerProfile struct {
	id       int64
	name     string
	rating   models.Rating
	index    float64
	exposure float64
	delayed  int
}

func checkFinancialDeterioration(in Input, cfg Config) ([]models.Alert, error) {
	payments := paymentsByContract(in.Payments)
	profiles := make(map[int64]*customerProfile)
	var order []*customerProfile
	for _, c := range in.Snapshot.Filter(models.StatusActive) {
		p, ok := profiles[c.CustomerID]
		if !ok {
			p = &customerProfile{id: c.CustomerID, name: c.CustomerName, rating: c.Rating, index: c.CreditworthinessIndex}
			profiles[c.CustomerID] = p
			order = append(order, p)
		}
		p.exposure += c.Exposure()
		for _, pay := range payments[c.ContractID] {
			if pay.DaysLate > cfg.PaymentDelayDays {
				p.delayed++
			}
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].exposure > order[j].exposure })

	var alerts []models.Alert
	for _, p := range order {
		if p.index >= cfg.ScreeningIndex || (p.delayed == 0 && p.index >= cfg.LowCreditworthiness) {
			continue
		}
		score := 0
		var factors []string
		switch {
		case p.index < cfg.VeryLowCreditworthiness:
			score += 3
			factors = append(factors, "Sehr niedriger Bonitätsindex")
		case p.index < cfg.LowCreditworthiness:
			score += 2
			factors = append(factors, "Niedriger Bonitätsindex")
		}
		if p.delayed > cfg.DelayedPaymentsMax {
			score += 2
			factors = append(factors, fmt.Sprintf("%d verzögerte Zahlungen", p.delayed))
		}
		if p.rating.IsWeak() || p.rating.IsDefault() {
			score += 3
			factors = append(factors, fmt.Sprintf("Schwaches Rating (%s)", p.rating))
		}

		var severity models.Severity
		switch {
		case score >= 4:
			severity = models.SeverityCritical
		case score >= 2:
			severity = models.SeverityWarning
		default:
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("FIN", id(p.id), in.AsOf),
			Check:    "financial_deterioration",
			Severity: severity,
			Category: "Finanzielle Verschlechterung",
			Title:    fmt.Sprintf("Multiple Risikofaktoren: %s", p.name),
			Description: fmt.Sprintf("Risikofaktoren: %s. Exposure: %.2f EUR, Bonitätsindex: %.1f",
				strings.Join(factors, ", "), p.exposure, p.index),
			AffectedEntity:    p.name,
			EntityID:          id(p.id),
			MetricValue:       float64(score),
			Threshold:         2,
			RecommendedAction: "Umfassende Kundenanalyse, Risikominimierung prüfen",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

func checkConcentrationBreach(in Input, cfg Config) ([]models.Alert, error) {
	if cfg.IndustryMax <= 0 {
		return nil, &models.ValidationError{Field: "industry_max", Reason: "must be positive"}
	}
	var total float64
	exposure := make(map[string]float64)
	var industries []string
	for _, c := range in.Snapshot.Filter(models.StatusActive) {
		if _, ok := exposure[c.Industry]; !ok {
			industries = append(industries, c.Industry)
		}
		exposure[c.Industry] += c.Exposure()
		total += c.Exposure()
	}
	if total <= 0 {
		return nil, nil
	}
	sort.SliceStable(industries, func(i, j int) bool {
		return exposure[industries[i]] > exposure[industries[j]]
	})

	warnAt := cfg.IndustryMax * cfg.ConcentrationWarning / 100
	var alerts []models.Alert
	for _, ind := range industries {
		share := exposure[ind] / total * 100
		switch {
		case share > cfg.IndustryMax:
			alerts = append(alerts, models.Alert{
				ID:       models.AlertID("CONC_IND", ind, in.AsOf),
				Check:    "concentration_breach",
				Severity: models.SeverityCritical,
				Category: "Branchenkonzentration überschritten",
				Title:    fmt.Sprintf("Branchenlimit überschritten: %s", ind),
				Description: fmt.Sprintf("Branche %s hat %.1f%% Portfolioanteil (Limit: %.0f%%). Exposure: %.2f EUR",
					ind, share, cfg.IndustryMax, exposure[ind]),
				AffectedEntity:    ind,
				MetricValue:       share,
				Threshold:         cfg.IndustryMax,
				RecommendedAction: "Neugeschäft in dieser Branche einschränken, Portfolio diversifizieren",
				CreatedAt:         in.AsOf,
			})
		case share > warnAt:
			alerts = append(alerts, models.Alert{
				ID:       models.AlertID("CONC_IND_W", ind, in.AsOf),
				Check:    "concentration_breach",
				Severity: models.SeverityWarning,
				Category: "Branchenkonzentration Warnung",
				Title:    fmt.Sprintf("Branchenkonzentration hoch: %s", ind),
				Description: fmt.Sprintf("Branche %s nähert sich dem Limit mit %.1f%% (Limit: %.0f%%)",
					ind, share, cfg.IndustryMax),
				AffectedEntity:    ind,
				MetricValue:       share,
				Threshold:         warnAt,
				RecommendedAction: "Neugeschäft beobachten, Diversifikation planen",
				CreatedAt:         in.AsOf,
			})
		}
	}
	return alerts, nil
}

var limitTypeLabels = map[models.LimitType]string{
	models.LimitPortfolio:  "Gesamt",
	models.LimitIndustry:   "Branche",
	models.LimitRegion:     "Region",
	models.LimitSingleName: "Kunde",
}

func checkLimitBreach(in Input, cfg Config) ([]models.Alert, error) {
	var limits []models.RiskLimit
	for _, l := range in.Limits {
		if l.Breached || l.UtilizationPct > cfg.LimitWarning {
			limits = append(limits, l)
		}
	}
	sort.SliceStable(limits, func(i, j int) bool {
		return limits[i].UtilizationPct > limits[j].UtilizationPct
	})

	var alerts []models.Alert
	for _, l := range limits {
		label, ok := limitTypeLabels[l.Type]
		if !ok {
			label = string(l.Type)
		}
		severity, category := models.SeverityWarning, label+"-Limit Warnung"
		switch {
		case l.Breached:
			severity, category = models.SeverityUrgent, label+"-Limit überschritten"
		case l.UtilizationPct > cfg.LimitCritical:
			severity, category = models.SeverityCritical, label+"-Limit kritisch"
		}
		entity := l.Reference
		if entity == "" {
			entity = l.Name
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID("LIM", id(l.ID), in.AsOf),
			Check:    "limit_breach",
			Severity: severity,
			Category: category,
			Title:    fmt.Sprintf("Limit: %s", l.Name),
			Description: fmt.Sprintf("Auslastung: %.1f%% (%.2f von %.2f EUR). Überschreitung: %.2f EUR",
				l.UtilizationPct, l.CurrentUtilization, l.LimitValue, l.Excess),
			AffectedEntity:    entity,
			EntityID:          id(l.ID),
			MetricValue:       l.UtilizationPct,
			Threshold:         100,
			RecommendedAction: "Limit-Eskalation einleiten, Genehmigung einholen",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}

type macroAverage struct {
	n            int
	unemployment float64
	insolvency   float64
	confidence   float64
}

func checkMacroDeterioration(in Input, cfg Config) ([]models.Alert, error) {
	since := in.AsOf.AddDate(0, -cfg.MacroWindowMonths, 0)
	byRegion := make(map[string]*macroAverage)
	for _, o := range in.Macro {
		if o.Industry != "" || o.Date.Before(since) {
			continue
		}
		m, ok := byRegion[o.Region]
		if !ok {
			m = &macroAverage{}
			byRegion[o.Region] = m
		}
		m.n++
		m.unemployment += o.UnemploymentRate
		m.insolvency += o.InsolvencyRate
		m.confidence += o.ConfidenceIndex
	}
	regions := make([]string, 0, len(byRegion))
	for r := range byRegion {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	var alerts []models.Alert
	for _, region := range regions {
		m := byRegion[region]
		unemployment := m.unemployment / float64(m.n)
		insolvency := m.insolvency / float64(m.n)
		confidence := m.confidence / float64(m.n)

		var indicators []string
		if unemployment > cfg.UnemploymentMax {
			indicators = append(indicators, fmt.Sprintf("Hohe Arbeitslosigkeit (%.1f%%)", unemployment))
		}
		if insolvency > cfg.InsolvencyMax {
			indicators = append(indicators, fmt.Sprintf("Hohe Insolvenzquote (%.2f%%)", insolvency*100))
		}
		if confidence < cfg.ConfidenceMin {
			indicators = append(indicators, fmt.Sprintf("Schwache Konjunktur (Index: %.1f)", confidence))
		}
		if len(indicators) == 0 {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:                models.AlertID("ECON", region, in.AsOf),
			Check:             "macro_deterioration",
			Severity:          models.SeverityInfo,
			Category:          "Wirtschaftliche Warnindikatoren",
			Title:             fmt.Sprintf("Wirtschaftliche Risiken: %s", region),
			Description:       fmt.Sprintf("Region %s: %s", region, strings.Join(indicators, ", ")),
			AffectedEntity:    region,
			MetricValue:       unemployment,
			Threshold:         cfg.UnemploymentMax,
			RecommendedAction: "Portfolio-Exposure in dieser Region überprüfen",
			CreatedAt:         in.AsOf,
		})
	}
	return alerts, nil
}
