package models

import "strings"

// LimitStatus is the four-tier utilization classification
type LimitStatus string

const (
	LimitOK       LimitStatus = "ok"
	LimitWarning  LimitStatus = "warning"
	LimitCritical LimitStatus = "critical"
	LimitBreached LimitStatus = "breached"
)

// Dimension is a concentration grouping
type Dimension string

const (
	DimensionCustomer Dimension = "customer"
	DimensionIndustry Dimension = "industry"
	DimensionRegion   Dimension = "region"
	DimensionProduct  Dimension = "product"
)

// Dimensions in reporting order
var Dimensions = []Dimension{DimensionCustomer, DimensionIndustry, DimensionRegion, DimensionProduct}

// ConcentrationRow is the exposure share of one group within a dimension
type ConcentrationRow struct {
	Dimension      Dimension   `json:"dimension"`
	Key            string      `json:"key"`
	Customers      int         `json:"customers"`
	Contracts      int         `json:"contracts"`
	Exposure       float64     `json:"exposure"`
	Share          float64     `json:"share"`       // percent of portfolio
	Cap            float64     `json:"cap"`         // percent of portfolio
	Utilization    float64     `json:"utilization"` // percent of cap
	Status         LimitStatus `json:"status"`
	NPLExposure    float64     `json:"npl_exposure"`
	AvgCreditworth float64     `json:"avg_creditworthiness"`
}

// LimitType is the scope of a risk limit record
type LimitType string

const (
	LimitPortfolio  LimitType = "portfolio"
	LimitIndustry   LimitType = "industry"
	LimitRegion     LimitType = "region"
	LimitSingleName LimitType = "single_name"
)

var limitTypeAliases = map[string]LimitType{
	"portfolio":   LimitPortfolio,
	"gesamt":      LimitPortfolio,
	"industry":    LimitIndustry,
	"branche":     LimitIndustry,
	"region":      LimitRegion,
	"single_name": LimitSingleName,
	"kunde":       LimitSingleName,
}

// ParseLimitType normalizes a stored limit type, accepting the German names
func ParseLimitType(s string) LimitType {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := limitTypeAliases[key]; ok {
		return t
	}
	return LimitType(key)
}

// RiskLimit is the current state of a configured limit
type RiskLimit struct {
	ID                 int64       `json:"id"`
	Type               LimitType   `json:"type"`
	Name               string      `json:"name"`
	Reference          string      `json:"reference"`
	ReferenceID        *int64      `json:"reference_id,omitempty"` // customer ID of single-name limits
	LimitValue         float64     `json:"limit_value"`
	CurrentUtilization float64     `json:"current_utilization"`
	UtilizationPct     float64     `json:"utilization_pct"`
	Breached           bool        `json:"breached"`
	Excess             float64     `json:"excess"`
	Status             LimitStatus `json:"status"`
}

// TopExposure is a customer ranked by aggregated active exposure
type TopExposure struct {
	CustomerID       int64   `json:"customer_id"`
	CustomerName     string  `json:"customer_name"`
	Industry         string  `json:"industry"`
	Region           string  `json:"region"`
	Rating           Rating  `json:"rating"`
	Contracts        int     `json:"contracts"`
	TotalLimit       float64 `json:"total_limit"`
	Exposure         float64 `json:"exposure"`
	Collateral       float64 `json:"collateral"`
	Unsecured        float64 `json:"unsecured_exposure"`
	PortfolioShare   float64 `json:"portfolio_share"`   // percent
	LimitUtilization float64 `json:"limit_utilization"` // percent
}

// ConcentrationMatrix is the industry by region exposure pivot. Exposure is
// indexed [industry][region] in the order of Industries and Regions.
type ConcentrationMatrix struct {
	Industries []string    `json:"industries"`
	Regions    []string    `json:"regions"`
	Exposure   [][]float64 `json:"exposure"`
}

// Value returns the exposure of one cell, 0 when either key is unknown
func (m ConcentrationMatrix) Value(industry, region string) float64 {
	for i, ind := range m.Industries {
		if ind != industry {
			continue
		}
		for j, reg := range m.Regions {
			if reg == region {
				return m.Exposure[i][j]
			}
		}
	}
	return 0
}
