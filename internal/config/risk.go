package config

import (
	"fmt"
	"os"

	"github.com/Dan9191/credit-risk/internal/models"
	"gopkg.in/yaml.v3"
)

// RiskConfig holds the regulatory constants and model thresholds. It is
// loaded once at startup and passed read-only into every engine.
type RiskConfig struct {
	IFRS9         IFRS9Config         `yaml:"ifrs9"`
	Capital       CapitalConfig       `yaml:"capital"`
	Regulatory    RegulatoryConfig    `yaml:"regulatory"`
	Concentration ConcentrationConfig `yaml:"concentration"`
	EarlyWarning  EarlyWarningConfig  `yaml:"early_warning"`
	Stress        StressConfig        `yaml:"stress"`
}

// IFRS9Config holds staging and ECL parameters
type IFRS9Config struct {
	Stage2MinDPD  int     `yaml:"stage2_min_dpd"`
	Stage3MinDPD  int     `yaml:"stage3_min_dpd"`
	SICRThreshold float64 `yaml:"sicr_threshold"`
	// OriginalPDFactor approximates origination PD as a fraction of current
	// PD while no PD history is stored.
	OriginalPDFactor float64 `yaml:"original_pd_factor"`
	DefaultPD        float64 `yaml:"default_pd"`
	DefaultLGD       float64 `yaml:"default_lgd"`
	EffectiveRate    float64 `yaml:"effective_rate"`
}

// CapitalConfig holds the standardised approach tables
type CapitalConfig struct {
	RiskWeights          map[string]float64 `yaml:"risk_weights"`
	UnratedWeight        float64            `yaml:"unrated_weight"`
	RetailWeight         float64            `yaml:"retail_weight"`
	MortgageWeight       float64            `yaml:"mortgage_weight"`
	Haircuts             map[string]float64 `yaml:"haircuts"`
	DefaultHaircut       float64            `yaml:"default_haircut"`
	MarketRiskShare      float64            `yaml:"market_risk_share"`
	OperationalRiskShare float64            `yaml:"operational_risk_share"`
}

// RegulatoryConfig holds capital ratios and large exposure limits
type RegulatoryConfig struct {
	CET1Ratio              float64 `yaml:"cet1_ratio"`
	Tier1Ratio             float64 `yaml:"tier1_ratio"`
	TotalCapitalRatio      float64 `yaml:"total_capital_ratio"`
	ConservationBuffer     float64 `yaml:"conservation_buffer"`
	CountercyclicalBuffer  float64 `yaml:"countercyclical_buffer"`
	SystemicBuffer         float64 `yaml:"systemic_buffer"`
	LargeExposureThreshold float64 `yaml:"large_exposure_threshold"`
	LargeExposureLimit     float64 `yaml:"large_exposure_limit"`
	// CapitalBase of zero derives the base from the total capital requirement
	CapitalBase float64 `yaml:"capital_base"`
}

// ConcentrationConfig holds caps in percent of total portfolio exposure and
// the utilization tiers in percent of cap
type ConcentrationConfig struct {
	SingleCustomerMax float64 `yaml:"single_customer_max"`
	IndustryMax       float64 `yaml:"industry_max"`
	RegionMax         float64 `yaml:"region_max"`
	ProductMax        float64 `yaml:"product_max"`
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// Cap returns the configured cap of a dimension
func (c ConcentrationConfig) Cap(d models.Dimension) float64 {
	switch d {
	case models.DimensionCustomer:
		return c.SingleCustomerMax
	case models.DimensionIndustry:
		return c.IndustryMax
	case models.DimensionRegion:
		return c.RegionMax
	case models.DimensionProduct:
		return c.ProductMax
	}
	return 100
}

// EarlyWarningConfig holds the thresholds of the rule battery
type EarlyWarningConfig struct {
	PaymentDelayDays        int     `yaml:"payment_delay_days"`
	PaymentDelayCritical    int     `yaml:"payment_delay_critical"`
	PaymentDelayUrgent      int     `yaml:"payment_delay_urgent"`
	TrendWindowMonths       int     `yaml:"trend_window_months"`
	TrendMinDelayed         int     `yaml:"trend_min_delayed"`
	TrendMinRatio           float64 `yaml:"trend_min_ratio"`
	DowngradeWindowDays     int     `yaml:"downgrade_window_days"`
	UtilizationThreshold    float64 `yaml:"utilization_threshold"`
	UtilizationWarning      float64 `yaml:"utilization_warning"`
	UtilizationBreach       float64 `yaml:"utilization_breach"`
	ScreeningIndex          float64 `yaml:"screening_index"`
	LowCreditworthiness     float64 `yaml:"low_creditworthiness"`
	VeryLowCreditworthiness float64 `yaml:"very_low_creditworthiness"`
	DelayedPaymentsMax      int     `yaml:"delayed_payments_max"`
	LimitWarning            float64 `yaml:"limit_warning"`
	LimitCritical           float64 `yaml:"limit_critical"`
	MacroWindowMonths       int     `yaml:"macro_window_months"`
	UnemploymentMax         float64 `yaml:"unemployment_max"`
	InsolvencyMax           float64 `yaml:"insolvency_max"`
	ConfidenceMin           float64 `yaml:"confidence_min"`
}

// StressConfig holds the stress model sensitivities
type StressConfig struct {
	RateSensitivity float64                 `yaml:"rate_sensitivity"`
	RWASensitivity  float64                 `yaml:"rwa_sensitivity"`
	RWARatioCap     float64                 `yaml:"rwa_ratio_cap"`
	CapitalCharge   float64                 `yaml:"capital_charge"`
	MinBaselinePD   float64                 `yaml:"min_baseline_pd"`
	Stage3PD        float64                 `yaml:"stage3_pd"`
	SevereStage3PD  float64                 `yaml:"severe_stage3_pd"`
	Stage2Multiple  float64                 `yaml:"stage2_multiple"`
	Stage2Delta     float64                 `yaml:"stage2_delta"`
	MaxParallel     int                     `yaml:"max_parallel"`
	Scenarios       []models.StressScenario `yaml:"scenarios"`
}

// DefaultRiskConfig returns the Basel III / IFRS 9 constants
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		IFRS9: IFRS9Config{
			Stage2MinDPD:     31,
			Stage3MinDPD:     91,
			SICRThreshold:    0.02,
			OriginalPDFactor: 0.7,
			DefaultPD:        0.01,
			DefaultLGD:       0.45,
			EffectiveRate:    0.05,
		},
		Capital: CapitalConfig{
			RiskWeights: map[string]float64{
				"AAA":  0.20,
				"AA":   0.20,
				"A":    0.50,
				"BBB+": 0.75,
				"BBB":  1.00,
				"BB":   1.00,
				"B":    1.50,
				"CCC":  1.50,
				"CC":   1.50,
				"C":    1.50,
				"D":    1.50,
			},
			UnratedWeight:  1.00,
			RetailWeight:   0.75,
			MortgageWeight: 0.35,
			Haircuts: map[string]float64{
				string(models.CollateralRealEstate):  0.30,
				string(models.CollateralFinancial):   0.10,
				string(models.CollateralGuarantee):   0.20,
				string(models.CollateralInventory):   0.40,
				string(models.CollateralReceivables): 0.35,
				string(models.CollateralNone):        1.00,
				string(models.CollateralOther):       0.50,
			},
			DefaultHaircut:       0.50,
			MarketRiskShare:      0.05,
			OperationalRiskShare: 0.08,
		},
		Regulatory: RegulatoryConfig{
			CET1Ratio:              0.045,
			Tier1Ratio:             0.06,
			TotalCapitalRatio:      0.08,
			ConservationBuffer:     0.025,
			LargeExposureThreshold: 0.10,
			LargeExposureLimit:     0.25,
		},
		Concentration: ConcentrationConfig{
			SingleCustomerMax: 10,
			IndustryMax:       30,
			RegionMax:         40,
			ProductMax:        50,
			WarningThreshold:  80,
			CriticalThreshold: 95,
		},
		EarlyWarning: EarlyWarningConfig{
			PaymentDelayDays:        30,
			PaymentDelayCritical:    60,
			PaymentDelayUrgent:      90,
			TrendWindowMonths:       6,
			TrendMinDelayed:         2,
			TrendMinRatio:           0.3,
			DowngradeWindowDays:     90,
			UtilizationThreshold:    80,
			UtilizationWarning:      95,
			UtilizationBreach:       100,
			ScreeningIndex:          50,
			LowCreditworthiness:     40,
			VeryLowCreditworthiness: 30,
			DelayedPaymentsMax:      3,
			LimitWarning:            80,
			LimitCritical:           95,
			MacroWindowMonths:       3,
			UnemploymentMax:         7,
			InsolvencyMax:           0.015,
			ConfidenceMin:           95,
		},
		Stress: StressConfig{
			RateSensitivity: 2,
			RWASensitivity:  0.3,
			RWARatioCap:     3,
			CapitalCharge:   0.08,
			MinBaselinePD:   0.0001,
			Stage3PD:        0.10,
			SevereStage3PD:  0.50,
			Stage2Multiple:  2,
			Stage2Delta:     0.02,
			MaxParallel:     4,
		},
	}
}

// LoadRiskConfig reads a YAML file over the defaults. Keys absent from the
// file keep their default value.
func LoadRiskConfig(path string) (RiskConfig, error) {
	cfg := DefaultRiskConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read risk config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse risk config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that ratios and thresholds are usable
func (r RiskConfig) Validate() error {
	if r.IFRS9.Stage2MinDPD <= 0 || r.IFRS9.Stage3MinDPD <= r.IFRS9.Stage2MinDPD {
		return fmt.Errorf("stage DPD bounds must satisfy 0 < stage2 < stage3, got %d and %d",
			r.IFRS9.Stage2MinDPD, r.IFRS9.Stage3MinDPD)
	}
	for name, v := range map[string]float64{
		"default_pd":  r.IFRS9.DefaultPD,
		"default_lgd": r.IFRS9.DefaultLGD,
		"cet1_ratio":  r.Regulatory.CET1Ratio,
		"tier1_ratio": r.Regulatory.Tier1Ratio,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if r.Regulatory.TotalCapitalRatio <= 0 {
		return fmt.Errorf("total_capital_ratio must be positive")
	}
	for _, d := range models.Dimensions {
		if r.Concentration.Cap(d) <= 0 {
			return fmt.Errorf("concentration cap for %s must be positive", d)
		}
	}
	if r.Stress.MaxParallel < 1 {
		return fmt.Errorf("stress max_parallel must be at least 1")
	}
	return nil
}
