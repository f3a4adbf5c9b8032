package models

import "time"

// PortfolioSummary represents high level portfolio statistics
type PortfolioSummary struct {
	Contracts         int     `json:"contracts"`
	Customers         int     `json:"customers"`
	TotalLimit        float64 `json:"total_limit"`
	TotalUtilized     float64 `json:"total_utilized"`
	TotalExposure     float64 `json:"total_exposure"`
	TotalCollateral   float64 `json:"total_collateral"`
	UnsecuredExposure float64 `json:"unsecured_exposure"`
	AvgInterestRate   float64 `json:"avg_interest_rate"`
	AvgTermMonths     float64 `json:"avg_term_months"`
	NPLVolume         float64 `json:"npl_volume"`
	NPLRatio          float64 `json:"npl_ratio"` // percent
	PerformingVolume  float64 `json:"performing_volume"`
}

// RatingBucket represents portfolio distribution for one rating
type RatingBucket struct {
	Rating         string  `json:"rating"`
	Customers      int     `json:"customers"`
	Contracts      int     `json:"contracts"`
	Exposure       float64 `json:"exposure"`
	ExposureShare  float64 `json:"exposure_share"` // percent
	AvgCreditworth float64 `json:"avg_creditworthiness"`
	Defaults       int     `json:"defaults"`
	DefaultRate    float64 `json:"default_rate"` // percent of contracts
}

// NPLMetrics represents non-performing loan figures and provision coverage
type NPLMetrics struct {
	TotalExposure    float64 `json:"total_exposure"`
	NPLExposure      float64 `json:"npl_exposure"`
	NPLRatio         float64 `json:"npl_ratio"`
	NPLCollateral    float64 `json:"npl_collateral"`
	NPLUnsecured     float64 `json:"npl_unsecured"`
	NPLCoverage      float64 `json:"npl_collateral_coverage"`
	Provisions       float64 `json:"provisions"`
	Stage3Provisions float64 `json:"stage3_provisions"`
	CoverageRatio    float64 `json:"coverage_ratio"`
	Stage3Coverage   float64 `json:"stage3_coverage_ratio"`
}

// DelinquencyBucket groups late payments by days past due
type DelinquencyBucket struct {
	Bucket      string  `json:"bucket"`
	Payments    int     `json:"payments"`
	Due         float64 `json:"due"`
	Paid        float64 `json:"paid"`
	Outstanding float64 `json:"outstanding"`
	AvgDaysLate float64 `json:"avg_days_late"`
	Share       float64 `json:"share"` // percent of amount due
}

// VintageCohort is the performance of contracts originated in one month
type VintageCohort struct {
	Cohort          string  `json:"cohort"` // YYYY-MM
	Contracts       int     `json:"contracts"`
	OriginalVolume  float64 `json:"original_volume"`
	DefaultedVolume float64 `json:"defaulted_volume"`
	DefaultRate     float64 `json:"default_rate"` // percent of original volume
	AgeMonths       float64 `json:"age_months"`
}

// TrendPoint is the new business of one origination month
type TrendPoint struct {
	Month          string  `json:"month"` // YYYY-MM
	NewContracts   int     `json:"new_contracts"`
	NewVolume      float64 `json:"new_volume"`
	AvgCreditworth float64 `json:"avg_creditworthiness"`
}

// DefaultEvent is a recorded default of a contract and what was recovered
type DefaultEvent struct {
	ContractID      int64     `json:"contract_id"`
	DefaultDate     time.Time `json:"default_date"`
	DefaultedAmount float64   `json:"defaulted_amount"`
	RecoveredAmount float64   `json:"recovered_amount"`
	RecoveryRate    *float64  `json:"recovery_rate,omitempty"`
}

// DefaultTrendPoint counts the defaults of one month
type DefaultTrendPoint struct {
	Month           string  `json:"month"` // YYYY-MM
	Defaults        int     `json:"defaults"`
	DefaultVolume   float64 `json:"default_volume"`
	AvgRecoveryRate float64 `json:"avg_recovery_rate"`
}

// LossComparison sets model expected loss against realised losses for one
// origination year and rating
type LossComparison struct {
	Year          int     `json:"year"`
	Rating        string  `json:"rating"`
	Contracts     int     `json:"contracts"`
	TotalEAD      float64 `json:"total_ead"`
	AvgPD         float64 `json:"avg_pd"`
	AvgLGD        float64 `json:"avg_lgd"`
	ExpectedLoss  float64 `json:"expected_loss"`
	ActualLoss    float64 `json:"actual_loss"`
	Recovered     float64 `json:"recovered"`
	ActualNetLoss float64 `json:"actual_net_loss"`
	ELVsActual    float64 `json:"el_vs_actual"`
	ModelAccuracy float64 `json:"model_accuracy"`
}
