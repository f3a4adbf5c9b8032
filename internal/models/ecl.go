package models

import "time"

// Stage is the IFRS 9 impairment stage
type Stage int

const (
	Stage1 Stage = 1 // performing, 12-month ECL
	Stage2 Stage = 2 // significant increase in credit risk, lifetime ECL
	Stage3 Stage = 3 // credit-impaired, lifetime ECL
)

// ECLResult is the expected credit loss detail of one contract
type ECLResult struct {
	ContractID      int64       `json:"contract_id"`
	CustomerID      int64       `json:"customer_id"`
	CustomerName    string      `json:"customer_name"`
	Rating          Rating      `json:"rating"`
	Industry        string      `json:"industry"`
	ProductType     ProductType `json:"product_type"`
	Stage           Stage       `json:"stage"`
	EAD             float64     `json:"ead"`
	PD12M           float64     `json:"pd_12m"`
	PDLifetime      float64     `json:"pd_lifetime"`
	LGD             float64     `json:"lgd"`
	DiscountFactor  float64     `json:"discount_factor"`
	ECL12M          float64     `json:"ecl_12m"`
	ECLLifetime     float64     `json:"ecl_lifetime"`
	FinalECL        float64     `json:"final_ecl"`
	RemainingMonths int         `json:"remaining_months"`
}

// ECLAggregate is one row of a stage, rating or industry breakdown
type ECLAggregate struct {
	Key           string  `json:"key"`
	Contracts     int     `json:"contracts"`
	EAD           float64 `json:"ead"`
	ECL           float64 `json:"ecl"`
	CoverageRatio float64 `json:"coverage_ratio"` // percent
	AvgPD         float64 `json:"avg_pd"`
	AvgLGD        float64 `json:"avg_lgd"`
}

// ECLSummary holds the portfolio totals of an ECL run
type ECLSummary struct {
	ReportingDate  time.Time             `json:"reporting_date"`
	TotalContracts int                   `json:"total_contracts"`
	TotalEAD       float64               `json:"total_ead"`
	TotalECL       float64               `json:"total_ecl"`
	ECLRatio       float64               `json:"ecl_ratio"` // percent
	ByStage        map[Stage]StageTotals `json:"by_stage"`
	AvgPD          float64               `json:"avg_pd"`
	AvgLGD         float64               `json:"avg_lgd"`
}

// StageTotals are count, EAD and ECL of a single stage
type StageTotals struct {
	Count int     `json:"count"`
	EAD   float64 `json:"ead"`
	ECL   float64 `json:"ecl"`
}

// ECLReport is the complete IFRS 9 output of a run
type ECLReport struct {
	Summary    ECLSummary           `json:"summary"`
	Details    []ECLResult          `json:"details"`
	ByStage    []ECLAggregate       `json:"by_stage"`
	ByRating   []ECLAggregate       `json:"by_rating"`
	ByIndustry []ECLAggregate       `json:"by_industry"`
	Warnings   []DataQualityWarning `json:"warnings,omitempty"`
}

// Provision is the dated loss allowance of a contract. A new record is
// written for every reporting date; existing records are never updated.
type Provision struct {
	ContractID    int64     `json:"contract_id"`
	ReportingDate time.Time `json:"reporting_date"`
	Stage         Stage     `json:"stage"`
	ECL12M        float64   `json:"ecl_12m"`
	ECLLifetime   float64   `json:"ecl_lifetime"`
	Amount        float64   `json:"amount"`
	PD            float64   `json:"pd"`
	LGD           float64   `json:"lgd"`
	EAD           float64   `json:"ead"`
	Delta         float64   `json:"delta"`
}
