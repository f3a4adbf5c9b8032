package ifrs9

import (
	"math"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine classifies contracts into impairment stages and computes
// expected credit loss
type Engine struct {
	cfg   config.IFRS9Config
	log   logrus.FieldLogger
	rules []stageRule
}

// NewEngine initializes a new staging and ECL engine
func NewEngine(cfg config.IFRS9Config, log logrus.FieldLogger) *Engine {
	e := &Engine{cfg: cfg, log: log}
	e.rules = e.stageRules()
	return e
}

// Params are the risk parameters used for a contract after defaults
type Params struct {
	PD  float64
	LGD float64
	EAD float64
}

// Params resolves PD, LGD and EAD of a contract. Missing values are replaced
// by the configured defaults and reported as warnings.
func (e *Engine) Params(c models.Contract) (Params, []models.DataQualityWarning) {
	var warnings []models.DataQualityWarning
	p := Params{PD: e.cfg.DefaultPD, LGD: e.cfg.DefaultLGD, EAD: c.OutstandingBalance}

	if c.PD != nil {
		p.PD = *c.PD
	} else {
		warnings = append(warnings, models.DataQualityWarning{
			ContractID: c.ContractID, Field: "pd", Default: p.PD,
			Message: "PD missing, default applied",
		})
	}
	if c.LGD != nil {
		p.LGD = *c.LGD
	} else {
		warnings = append(warnings, models.DataQualityWarning{
			ContractID: c.ContractID, Field: "lgd", Default: p.LGD,
			Message: "LGD missing, default applied",
		})
	}
	if c.EAD != nil {
		p.EAD = *c.EAD
	} else {
		warnings = append(warnings, models.DataQualityWarning{
			ContractID: c.ContractID, Field: "ead", Default: p.EAD,
			Message: "EAD missing, outstanding balance applied",
		})
	}

	p.PD = clamp01(p.PD)
	p.LGD = clamp01(p.LGD)
	if p.EAD < 0 || math.IsNaN(p.EAD) {
		p.EAD = 0
	}
	return p, warnings
}

// LifetimePD converts a 12-month PD into a lifetime PD assuming a constant
// monthly hazard rate
func LifetimePD(pd12m float64, remainingMonths int) float64 {
	if remainingMonths <= 12 {
		return pd12m
	}
	survival := math.Pow(1-clamp01(pd12m), 1.0/12)
	return math.Min(1, 1-math.Pow(survival, float64(remainingMonths)))
}

// DiscountFactor is the average of the monthly discount factors over the
// remaining term
func DiscountFactor(remainingMonths int, annualRate float64) float64 {
	if remainingMonths <= 0 {
		return 1
	}
	monthly := annualRate / 12
	var sum float64
	for m := 1; m <= remainingMonths; m++ {
		sum += 1 / math.Pow(1+monthly, float64(m))
	}
	return sum / float64(remainingMonths)
}

// Calculate computes the ECL detail of a single contract as of a date
func (e *Engine) Calculate(c models.Contract, asOf time.Time) (models.ECLResult, []models.DataQualityWarning) {
	p, warnings := e.Params(c)
	stage := e.stageFor(c, p.PD)
	months := c.RemainingMonths(asOf)

	rate := c.InterestRate
	if rate <= 0 {
		rate = e.cfg.EffectiveRate
	}
	df := DiscountFactor(months, rate)
	pdLifetime := LifetimePD(p.PD, months)

	res := models.ECLResult{
		ContractID:      c.ContractID,
		CustomerID:      c.CustomerID,
		CustomerName:    c.CustomerName,
		Rating:          c.Rating,
		Industry:        c.Industry,
		ProductType:     c.ProductType,
		Stage:           stage,
		EAD:             p.EAD,
		PD12M:           p.PD,
		PDLifetime:      pdLifetime,
		LGD:             p.LGD,
		DiscountFactor:  df,
		ECL12M:          p.EAD * p.PD * p.LGD * df,
		ECLLifetime:     p.EAD * pdLifetime * p.LGD * df,
		RemainingMonths: months,
	}
	if stage == models.Stage1 {
		res.FinalECL = res.ECL12M
	} else {
		res.FinalECL = res.ECLLifetime
	}

	for _, w := range warnings {
		e.log.WithFields(logrus.Fields{
			"contract_id": w.ContractID,
			"field":       w.Field,
			"default":     w.Default,
		}).Warn(w.Message)
	}
	return res, warnings
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
