package ifrs9

import "github.com/Dan9191/credit-risk/internal/models"

// stageRule is one row of the staging decision table
type stageRule struct {
	name  string
	stage models.Stage
	match func(c models.Contract, pd float64) bool
}

// stageRules returns the staging table in evaluation order. The first
// matching rule decides; a contract matching none is stage 1.
func (e *Engine) stageRules() []stageRule {
	return []stageRule{
		{"defaulted", models.Stage3, func(c models.Contract, _ float64) bool {
			return c.Status == models.StatusDefaulted
		}},
		{"dpd_stage3", models.Stage3, func(c models.Contract, _ float64) bool {
			return c.MaxDaysPastDue >= e.cfg.Stage3MinDPD
		}},
		{"rating_default", models.Stage3, func(c models.Contract, _ float64) bool {
			return c.Rating.IsDefault()
		}},
		{"dpd_stage2", models.Stage2, func(c models.Contract, _ float64) bool {
			return c.MaxDaysPastDue >= e.cfg.Stage2MinDPD
		}},
		// Origination PD is not stored yet, OriginalPDFactor stands in for it
		{"sicr", models.Stage2, func(_ models.Contract, pd float64) bool {
			return pd-e.cfg.OriginalPDFactor*pd > e.cfg.SICRThreshold
		}},
		{"weak_rating", models.Stage2, func(c models.Contract, _ float64) bool {
			return c.Rating.IsWeak()
		}},
	}
}

// ClassifyStage assigns the impairment stage of a contract
func (e *Engine) ClassifyStage(c models.Contract) models.Stage {
	p, _ := e.Params(c)
	return e.stageFor(c, p.PD)
}

func (e *Engine) stageFor(c models.Contract, pd float64) models.Stage {
	for _, r := range e.rules {
		if r.match(c, pd) {
			return r.stage
		}
	}
	return models.Stage1
}
