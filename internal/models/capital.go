package models

import "github.com/shopspring/decimal"

// ExposureType is the Basel exposure class used for risk weighting
type ExposureType string

const (
	ExposureCorporate ExposureType = "corporate"
	ExposureRetail    ExposureType = "retail"
	ExposureMortgage  ExposureType = "mortgage"
)

// RWARow is the credit risk weighting of one contract
type RWARow struct {
	ContractID         int64        `json:"contract_id"`
	CustomerID         int64        `json:"customer_id"`
	CustomerName       string       `json:"customer_name"`
	Rating             Rating       `json:"rating"`
	ExposureType       ExposureType `json:"exposure_type"`
	Exposure           float64      `json:"exposure"`
	EAD                float64      `json:"ead"`
	EligibleCollateral float64      `json:"eligible_collateral"`
	NetExposure        float64      `json:"net_exposure"`
	RiskWeight         float64      `json:"risk_weight"`
	RWA                float64      `json:"rwa"`
}

// RWARatingRow summarizes RWA per rating
type RWARatingRow struct {
	Rating        string  `json:"rating"`
	GrossExposure float64 `json:"gross_exposure"`
	NetExposure   float64 `json:"net_exposure"`
	RWA           float64 `json:"rwa"`
	Contracts     int     `json:"contracts"`
	RWADensity    float64 `json:"rwa_density"` // percent of net exposure
}

// CapitalRequirement is the Basel III capital summary of a portfolio
type CapitalRequirement struct {
	TotalExposure           float64            `json:"total_exposure"`
	CreditRiskRWA           float64            `json:"credit_risk_rwa"`
	MarketRiskRWA           float64            `json:"market_risk_rwa"`
	OperationalRiskRWA      float64            `json:"operational_risk_rwa"`
	TotalRWA                float64            `json:"total_rwa"`
	RWADensity              float64            `json:"rwa_density"` // percent
	CET1Requirement         float64            `json:"cet1_requirement"`
	Tier1Requirement        float64            `json:"tier1_requirement"`
	TotalCapitalRequirement float64            `json:"total_capital_requirement"`
	Buffers                 map[string]float64 `json:"buffers"`
}

// Metric is a named value of a summary table
type Metric struct {
	Name  string          `json:"metric"`
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// LargeExposure is a customer whose gross exposure reaches the large
// exposure threshold
type LargeExposure struct {
	CustomerID    int64   `json:"customer_id"`
	CustomerName  string  `json:"customer_name"`
	Industry      string  `json:"industry"`
	Rating        Rating  `json:"rating"`
	Segment       Segment `json:"segment"`
	Contracts     int     `json:"contracts"`
	GrossExposure float64 `json:"gross_exposure"`
	Collateral    float64 `json:"collateral"`
	NetExposure   float64 `json:"net_exposure"`
	CapitalBase   float64 `json:"capital_base"`
	Threshold     float64 `json:"threshold"`
	ExposureRatio float64 `json:"exposure_ratio"` // percent of capital base
	ExceedsLimit  bool    `json:"exceeds_limit"`
	Headroom      float64 `json:"limit_headroom"`
}
