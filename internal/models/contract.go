package models

import (
	"strings"
	"time"
)

// ContractStatus is the lifecycle state of a credit contract
type ContractStatus string

const (
	StatusActive     ContractStatus = "active"
	StatusClosed     ContractStatus = "closed"
	StatusTerminated ContractStatus = "terminated"
	StatusDefaulted  ContractStatus = "defaulted"
)

var statusAliases = map[string]ContractStatus{
	"active":        StatusActive,
	"aktiv":         StatusActive,
	"closed":        StatusClosed,
	"abgeschlossen": StatusClosed,
	"terminated":    StatusTerminated,
	"gekuendigt":    StatusTerminated,
	"defaulted":     StatusDefaulted,
	"ausfall":       StatusDefaulted,
}

// ParseStatus normalizes a stored status value. Unknown values map to closed
// so that they are excluded from every calculation.
func ParseStatus(s string) ContractStatus {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusClosed
}

// ProductType is the credit product of a contract
type ProductType string

const (
	ProductLoan            ProductType = "loan"
	ProductCreditLine      ProductType = "credit_line"
	ProductMortgage        ProductType = "mortgage"
	ProductLeasing         ProductType = "leasing"
	ProductFactoring       ProductType = "factoring"
	ProductGuaranteeCredit ProductType = "guarantee_credit"
	ProductWorkingCapital  ProductType = "working_capital"
)

var productAliases = map[string]ProductType{
	"darlehen":             ProductLoan,
	"kreditlinie":          ProductCreditLine,
	"hypothek":             ProductMortgage,
	"leasing":              ProductLeasing,
	"factoring":            ProductFactoring,
	"avalkredit":           ProductGuaranteeCredit,
	"betriebsmittelkredit": ProductWorkingCapital,
}

// ParseProductType normalizes a product type, accepting the German names used
// by the legacy data store.
func ParseProductType(s string) ProductType {
	key := strings.ToLower(strings.TrimSpace(s))
	if p, ok := productAliases[key]; ok {
		return p
	}
	return ProductType(key)
}

// IsRevolving reports whether the drawn amount moves with interest rates
func (p ProductType) IsRevolving() bool {
	return p == ProductCreditLine || p == ProductWorkingCapital
}

// CollateralType is the kind of security pledged for a contract
type CollateralType string

const (
	CollateralRealEstate  CollateralType = "real_estate"
	CollateralFinancial   CollateralType = "financial"
	CollateralGuarantee   CollateralType = "guarantee"
	CollateralInventory   CollateralType = "inventory"
	CollateralReceivables CollateralType = "receivables"
	CollateralNone        CollateralType = "none"
	CollateralOther       CollateralType = "other"
)

var collateralAliases = map[string]CollateralType{
	"immobilie":              CollateralRealEstate,
	"finanzielle_sicherheit": CollateralFinancial,
	"buergschaft":            CollateralGuarantee,
	"warenlager":             CollateralInventory,
	"forderungen":            CollateralReceivables,
	"keine":                  CollateralNone,
	"sonstige":               CollateralOther,
	"":                       CollateralNone,
}

// ParseCollateralType normalizes a collateral type
func ParseCollateralType(s string) CollateralType {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := collateralAliases[key]; ok {
		return c
	}
	return CollateralType(key)
}

// Segment is the customer segment
type Segment string

const (
	SegmentRetail    Segment = "retail"
	SegmentSME       Segment = "sme"
	SegmentCorporate Segment = "corporate"
)

// ParseSegment normalizes a customer segment
func ParseSegment(s string) Segment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retail", "privat":
		return SegmentRetail
	case "sme", "kmu":
		return SegmentSME
	default:
		return SegmentCorporate
	}
}

// Contract is one row of the portfolio snapshot: a credit contract joined
// with its customer's attributes and the latest payment delay indicator.
type Contract struct {
	ContractID            int64          `json:"contract_id"`
	CustomerID            int64          `json:"customer_id"`
	CustomerName          string         `json:"customer_name"`
	Rating                Rating         `json:"rating"`
	Industry              string         `json:"industry"`
	Region                string         `json:"region"`
	Segment               Segment        `json:"segment"`
	CreditworthinessIndex float64        `json:"creditworthiness_index"`
	ProductType           ProductType    `json:"product_type"`
	OriginationDate       time.Time      `json:"origination_date"`
	TermMonths            int            `json:"term_months"`
	InterestRate          float64        `json:"interest_rate"`
	CreditLimit           float64        `json:"credit_limit"`
	UtilizedLimit         float64        `json:"utilized_limit"`
	OutstandingBalance    float64        `json:"outstanding_balance"`
	CollateralValue       float64        `json:"collateral_value"`
	CollateralType        CollateralType `json:"collateral_type"`
	Status                ContractStatus `json:"status"`
	PD                    *float64       `json:"pd,omitempty"`
	LGD                   *float64       `json:"lgd,omitempty"`
	EAD                   *float64       `json:"ead,omitempty"`
	MaxDaysPastDue        int            `json:"max_days_past_due"`
}

// Exposure is the gross exposure used for concentration and large exposure
// aggregation
func (c Contract) Exposure() float64 {
	return c.OutstandingBalance
}

// IsNonPerforming reports defaulted contracts and contracts more than 90
// days past due
func (c Contract) IsNonPerforming() bool {
	return c.Status == StatusDefaulted || c.MaxDaysPastDue > 90
}

// Utilization returns utilized limit as a percentage of the credit limit
func (c Contract) Utilization() float64 {
	return SafeDiv(c.UtilizedLimit, c.CreditLimit) * 100
}

// RemainingMonths approximates months to maturity using 30-day months. The
// result is never below one.
func (c Contract) RemainingMonths(asOf time.Time) int {
	end := c.OriginationDate.AddDate(0, 0, c.TermMonths*30)
	months := int(end.Sub(asOf).Hours() / 24 / 30)
	if months < 1 {
		return 1
	}
	return months
}

// Float returns a pointer to v, for optional risk parameters
func Float(v float64) *float64 {
	return &v
}

// Snapshot is the portfolio loaded wholesale for one analysis run
type Snapshot struct {
	AsOf      time.Time  `json:"as_of"`
	Contracts []Contract `json:"contracts"`
}

// Filter returns the contracts whose status is one of statuses
func (s Snapshot) Filter(statuses ...ContractStatus) []Contract {
	out := make([]Contract, 0, len(s.Contracts))
	for _, c := range s.Contracts {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
