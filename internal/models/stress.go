package models

import "maps"

// ScenarioType classifies stress scenarios
type ScenarioType string

const (
	ScenarioRateShock     ScenarioType = "rate_shock"
	ScenarioRecession     ScenarioType = "recession"
	ScenarioIndustryShock ScenarioType = "industry_shock"
	ScenarioCombined      ScenarioType = "combined"
	ScenarioCustom        ScenarioType = "custom"
)

// StressScenario is a declarative shock definition. Treat it as a value:
// the With* methods return modified copies and never touch the receiver.
type StressScenario struct {
	Key            string             `json:"key" yaml:"key"`
	Name           string             `json:"name" yaml:"name"`
	Type           ScenarioType       `json:"type" yaml:"type"`
	Description    string             `json:"description" yaml:"description"`
	PDMultiplier   float64            `json:"pd_multiplier" yaml:"pd_multiplier"`
	LGDAdjustment  float64            `json:"lgd_adjustment" yaml:"lgd_adjustment"`
	RateShock      float64            `json:"rate_shock" yaml:"rate_shock"`
	IndustryShocks map[string]float64 `json:"industry_shocks,omitempty" yaml:"industry_shocks"`
	RegionalShocks map[string]float64 `json:"regional_shocks,omitempty" yaml:"regional_shocks"`
}

func (s StressScenario) clone() StressScenario {
	s.IndustryShocks = maps.Clone(s.IndustryShocks)
	s.RegionalShocks = maps.Clone(s.RegionalShocks)
	return s
}

// WithPDMultiplier returns a copy with a different PD multiplier
func (s StressScenario) WithPDMultiplier(v float64) StressScenario {
	c := s.clone()
	c.PDMultiplier = v
	return c
}

// WithLGDAdjustment returns a copy with a different LGD add-on
func (s StressScenario) WithLGDAdjustment(v float64) StressScenario {
	c := s.clone()
	c.LGDAdjustment = v
	return c
}

// WithRateShock returns a copy with a different rate shock
func (s StressScenario) WithRateShock(v float64) StressScenario {
	c := s.clone()
	c.RateShock = v
	return c
}

// Renamed returns a copy with a new key, name and type
func (s StressScenario) Renamed(key, name string, typ ScenarioType) StressScenario {
	c := s.clone()
	c.Key, c.Name, c.Type = key, name, typ
	return c
}

// StressedContract is the per-contract outcome of applying a scenario
type StressedContract struct {
	ContractID    int64   `json:"contract_id"`
	Industry      string  `json:"industry"`
	Region        string  `json:"region"`
	Rating        Rating  `json:"rating"`
	Exposure      float64 `json:"exposure"`
	BaselinePD    float64 `json:"baseline_pd"`
	BaselineLGD   float64 `json:"baseline_lgd"`
	BaselineEAD   float64 `json:"baseline_ead"`
	BaselineECL   float64 `json:"baseline_ecl"`
	BaselineRWA   float64 `json:"baseline_rwa"`
	BaselineStage Stage   `json:"baseline_stage"`
	StressedPD    float64 `json:"stressed_pd"`
	StressedLGD   float64 `json:"stressed_lgd"`
	StressedEAD   float64 `json:"stressed_ead"`
	StressedECL   float64 `json:"stressed_ecl"`
	StressedRWA   float64 `json:"stressed_rwa"`
	StressedStage Stage   `json:"stressed_stage"`
}

// StageMigration counts contracts moving to a worse stage under stress
type StageMigration struct {
	Stage1To2 int `json:"stage_1_to_2"`
	Stage1To3 int `json:"stage_1_to_3"`
	Stage2To3 int `json:"stage_2_to_3"`
}

// StressBreakdown is the ECL impact within one industry or rating
type StressBreakdown struct {
	Key            string  `json:"key"`
	Exposure       float64 `json:"exposure"`
	BaselineECL    float64 `json:"baseline_ecl"`
	StressedECL    float64 `json:"stressed_ecl"`
	Contracts      int     `json:"contracts"`
	ECLIncrease    float64 `json:"ecl_increase"`
	ECLIncreasePct float64 `json:"ecl_increase_pct"`
}

// StressResult compares baseline and stressed portfolio metrics
type StressResult struct {
	Scenario          StressScenario    `json:"scenario"`
	BaselineECL       float64           `json:"baseline_ecl"`
	StressedECL       float64           `json:"stressed_ecl"`
	ECLIncrease       float64           `json:"ecl_increase"`
	ECLIncreasePct    float64           `json:"ecl_increase_pct"`
	BaselineRWA       float64           `json:"baseline_rwa"`
	StressedRWA       float64           `json:"stressed_rwa"`
	RWAIncrease       float64           `json:"rwa_increase"`
	RWAIncreasePct    float64           `json:"rwa_increase_pct"`
	CapitalImpact     float64           `json:"capital_impact"`
	AffectedContracts int               `json:"affected_contracts"`
	Migration         StageMigration    `json:"stage_migration"`
	ByIndustry        []StressBreakdown `json:"by_industry"`
	ByRating          []StressBreakdown `json:"by_rating"`
}

// StressComparisonRow is one line of the scenario comparison table
type StressComparisonRow struct {
	Scenario       string       `json:"scenario"`
	Type           ScenarioType `json:"type"`
	BaselineECL    float64      `json:"baseline_ecl"`
	StressedECL    float64      `json:"stressed_ecl"`
	ECLIncrease    float64      `json:"ecl_increase"`
	ECLIncreasePct float64      `json:"ecl_increase_pct"`
	BaselineRWA    float64      `json:"baseline_rwa"`
	StressedRWA    float64      `json:"stressed_rwa"`
	RWAIncrease    float64      `json:"rwa_increase"`
	CapitalImpact  float64      `json:"capital_impact"`
	Stage1To2      int          `json:"stage_1_to_2"`
	Stage1To3      int          `json:"stage_1_to_3"`
	Stage2To3      int          `json:"stage_2_to_3"`
}

// ScenarioFailure records a scenario that could not be run
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Reason   string `json:"reason"`
}

// SensitivityPoint is one value of a single-parameter sweep
type SensitivityPoint struct {
	Parameter      string  `json:"parameter"`
	Value          float64 `json:"value"`
	BaselineECL    float64 `json:"baseline_ecl"`
	StressedECL    float64 `json:"stressed_ecl"`
	ECLIncreasePct float64 `json:"ecl_increase_pct"`
	CapitalImpact  float64 `json:"capital_impact"`
}

// SensitivityResult is a sweep over one parameter. Values that could not be
// run are listed in Failures and do not stop the rest of the sweep.
type SensitivityResult struct {
	Parameter string             `json:"parameter"`
	Points    []SensitivityPoint `json:"points"`
	Failures  []ScenarioFailure  `json:"failures,omitempty"`
}
