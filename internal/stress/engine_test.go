package stress

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Dan9191/credit-risk/internal/capital"
	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/ifrs9"
	"github.com/Dan9191/credit-risk/internal/models"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(scenarios ...models.StressScenario) *Engine {
	logger, _ := logtest.NewNullLogger()
	risk := config.DefaultRiskConfig()
	risk.Stress.Scenarios = scenarios
	return NewEngine(risk.Stress,
		ifrs9.NewEngine(risk.IFRS9, logger),
		capital.NewEngine(risk.Capital, risk.Regulatory, logger),
		logger)
}

func loan(id int64, rating, industry, region string, pd, lgd, ead float64) models.Contract {
	return models.Contract{
		ContractID:         id,
		CustomerID:         id,
		CustomerName:       "Kunde",
		Rating:             models.ParseRating(rating),
		Industry:           industry,
		Region:             region,
		Segment:            models.SegmentCorporate,
		ProductType:        models.ProductLoan,
		OutstandingBalance: ead,
		Status:             models.StatusActive,
		PD:                 models.Float(pd),
		LGD:                models.Float(lgd),
		EAD:                models.Float(ead),
	}
}

func testSnapshot() models.Snapshot {
	line := loan(2, "A", "Tourismus", "Berlin", 0.01, 0.40, 50000)
	line.ProductType = models.ProductCreditLine

	missing := models.Contract{
		ContractID:         3,
		CustomerID:         3,
		CustomerName:       "Ohne Daten",
		Industry:           "Immobilien",
		Region:             "Bayern",
		Segment:            models.SegmentCorporate,
		ProductType:        models.ProductWorkingCapital,
		OutstandingBalance: 20000,
		Status:             models.StatusTerminated,
	}

	closed := loan(4, "BBB", "Immobilien", "Berlin", 0.05, 0.5, 999999)
	closed.Status = models.StatusClosed

	return models.Snapshot{Contracts: []models.Contract{
		loan(1, "BBB", "Maschinenbau", "Hessen", 0.02, 0.45, 100000),
		line,
		missing,
		closed,
		loan(5, "CCC", "Einzelhandel", "Hessen", 0.20, 0.50, 10000),
	}}
}

func TestPredefinedCatalogue(t *testing.T) {
	e := newTestEngine()

	var keys []string
	for _, s := range e.Scenarios() {
		keys = append(keys, s.Key)
		require.NoError(t, Validate(s), s.Key)
	}
	assert.Equal(t, []string{
		"interest_rate_200bps", "recession_mild", "recession_severe",
		"industry_auto", "industry_real_estate", "combined_severe",
	}, keys)

	severe, err := e.Scenario("recession_severe")
	require.NoError(t, err)
	assert.Equal(t, 2.5, severe.PDMultiplier)
	assert.Equal(t, 0.15, severe.LGDAdjustment)
	assert.Equal(t, 1.5, severe.RegionalShocks["Mecklenburg-Vorpommern"])
}

func TestConfiguredScenarioOverridesPredefined(t *testing.T) {
	custom := Predefined()[1].WithPDMultiplier(1.7)
	extra := models.StressScenario{Key: "flat", Name: "Flat", Type: models.ScenarioCustom, PDMultiplier: 1}

	e := newTestEngine(custom, extra)

	scenarios := e.Scenarios()
	require.Len(t, scenarios, 7)
	assert.Equal(t, 1.7, scenarios[1].PDMultiplier)
	assert.Equal(t, "flat", scenarios[6].Key)
}

func TestIdentityScenarioReproducesBaseline(t *testing.T) {
	e := newTestEngine()
	identity := models.StressScenario{Key: "identity", Type: models.ScenarioCustom, PDMultiplier: 1}

	res, err := e.Run(testSnapshot(), identity)

	require.NoError(t, err)
	assert.Equal(t, res.BaselineECL, res.StressedECL)
	assert.Equal(t, res.BaselineRWA, res.StressedRWA)
	assert.Zero(t, res.ECLIncreasePct)
	assert.Zero(t, res.CapitalImpact)
	assert.Zero(t, res.Migration.Stage1To2)
	assert.Zero(t, res.Migration.Stage1To3)
}

func TestIdentityScenarioWithZeroPD(t *testing.T) {
	e := newTestEngine()
	snap := models.Snapshot{Contracts: []models.Contract{loan(1, "A", "Chemie", "Hessen", 0, 0.45, 1000)}}

	res, err := e.Run(snap, models.StressScenario{Key: "identity", PDMultiplier: 1})

	require.NoError(t, err)
	assert.Equal(t, 500.0, res.BaselineRWA)
	assert.Equal(t, res.BaselineRWA, res.StressedRWA)
}

func TestRecessionSevereOnBBB(t *testing.T) {
	e := newTestEngine()
	snap := models.Snapshot{Contracts: []models.Contract{loan(1, "BBB", "Maschinenbau", "Hessen", 0.02, 0.45, 100000)}}

	res, err := e.RunNamed(snap, "recession_severe")
	require.NoError(t, err)

	rows := e.Apply(snap, res.Scenario)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.InDelta(t, 0.05, r.StressedPD, 1e-12)
	assert.InDelta(t, 0.60, r.StressedLGD, 1e-12)
	assert.Equal(t, models.Stage1, r.BaselineStage)
	assert.Equal(t, models.Stage2, r.StressedStage)

	assert.InDelta(t, 900, res.BaselineECL, 1e-6)
	assert.InDelta(t, 3000, res.StressedECL, 1e-6)
	assert.InDelta(t, 233.333, res.ECLIncreasePct, 0.001)
	assert.InDelta(t, 100000, res.BaselineRWA, 1e-6)
	// ratio 2.5 adds 45% to the weight
	assert.InDelta(t, 145000, res.StressedRWA, 1e-6)
	assert.InDelta(t, 3600, res.CapitalImpact, 1e-6)
	assert.Equal(t, 1, res.Migration.Stage1To2)
}

func TestApplyShocksAndScope(t *testing.T) {
	e := newTestEngine()
	severe, err := e.Scenario("recession_severe")
	require.NoError(t, err)

	rows := e.Apply(testSnapshot(), severe)

	require.Len(t, rows, 4)
	byID := make(map[int64]models.StressedContract)
	for _, r := range rows {
		byID[r.ContractID] = r
	}
	assert.NotContains(t, byID, int64(4))

	// industry and region multipliers compose
	assert.InDelta(t, 0.01*2.5*3.5*1.3, byID[2].StressedPD, 1e-12)
	assert.Equal(t, models.Stage3, byID[2].StressedStage)
	// revolving EAD moves with the rate shock
	assert.InDelta(t, 49000, byID[2].StressedEAD, 1e-9)
	assert.Equal(t, 50000.0, byID[2].BaselineEAD)

	// defaults stand in for missing parameters
	assert.Equal(t, 0.01, byID[3].BaselinePD)
	assert.InDelta(t, 0.0625, byID[3].StressedPD, 1e-12)
	assert.Equal(t, 20000.0, byID[3].BaselineEAD)

	assert.Equal(t, 1.0, byID[5].StressedPD)
	assert.Equal(t, models.Stage2, byID[5].BaselineStage)
	assert.Equal(t, models.Stage3, byID[5].StressedStage)

	assert.Equal(t, 2.5, severe.IndustryShocks["Immobilien"], "scenario must stay untouched")
}

func TestRunMigrationAndBreakdowns(t *testing.T) {
	e := newTestEngine()

	res, err := e.RunNamed(testSnapshot(), "recession_severe")

	require.NoError(t, err)
	assert.Equal(t, 4, res.AffectedContracts)
	assert.Equal(t, models.StageMigration{Stage1To2: 2, Stage1To3: 1, Stage2To3: 1}, res.Migration)

	var ratings []string
	for _, b := range res.ByRating {
		ratings = append(ratings, b.Key)
	}
	assert.Equal(t, []string{"A", "BBB", "CCC", "unrated"}, ratings)

	require.Len(t, res.ByIndustry, 4)
	for i := 1; i < len(res.ByIndustry); i++ {
		assert.GreaterOrEqual(t, res.ByIndustry[i-1].ECLIncrease, res.ByIndustry[i].ECLIncrease)
	}

	var sum float64
	for _, b := range res.ByIndustry {
		sum += b.StressedECL
	}
	assert.InDelta(t, res.StressedECL, sum, 1e-6)
}

func TestRateShockOnlyHitsRevolving(t *testing.T) {
	e := newTestEngine()
	term := loan(1, "BBB", "Chemie", "Hessen", 0.01, 0.45, 1000)
	line := loan(2, "BBB", "Chemie", "Hessen", 0.01, 0.45, 1000)
	line.ProductType = models.ProductCreditLine
	snap := models.Snapshot{Contracts: []models.Contract{term, line}}
	shock := models.StressScenario{Key: "rates", PDMultiplier: 1, RateShock: 0.02}

	rows := e.Apply(snap, shock)

	assert.Equal(t, 1000.0, rows[0].StressedEAD)
	assert.InDelta(t, 1040, rows[1].StressedEAD, 1e-9)
}

func TestValidate(t *testing.T) {
	base := models.StressScenario{Key: "x", PDMultiplier: 1}

	tests := []struct {
		name     string
		scenario models.StressScenario
		field    string
	}{
		{"negative multiplier", base.WithPDMultiplier(-0.5), "pd_multiplier"},
		{"nan multiplier", base.WithPDMultiplier(math.NaN()), "pd_multiplier"},
		{"lgd above one", base.WithLGDAdjustment(1.5), "lgd_adjustment"},
		{"lgd below minus one", base.WithLGDAdjustment(-2), "lgd_adjustment"},
		{"infinite rate", base.WithRateShock(math.Inf(1)), "rate_shock"},
		{"negative industry shock", models.StressScenario{PDMultiplier: 1, IndustryShocks: map[string]float64{"Chemie": -1}}, "industry_shocks[Chemie]"},
		{"nan region shock", models.StressScenario{PDMultiplier: 1, RegionalShocks: map[string]float64{"Berlin": math.NaN()}}, "regional_shocks[Berlin]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.scenario)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrValidation))

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, Validate(base.WithLGDAdjustment(-1)))
	assert.NoError(t, Validate(base.WithPDMultiplier(0)))
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	e := newTestEngine()

	_, err := e.Run(testSnapshot(), models.StressScenario{Key: "bad", PDMultiplier: -1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestRunNamedUnknown(t *testing.T) {
	e := newTestEngine()

	_, err := e.RunNamed(testSnapshot(), "asteroid")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownScenario))
	var cerr *models.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "asteroid", cerr.Name)
}

func TestRunAllMatchesSequential(t *testing.T) {
	broken := models.StressScenario{Key: "broken", Name: "Defekt", PDMultiplier: -1}
	e := newTestEngine(broken)
	snap := testSnapshot()

	results, failures, err := e.RunAll(context.Background(), snap)

	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Scenario)
	assert.Contains(t, failures[0].Reason, "pd_multiplier")

	require.Len(t, results, 6)
	for i, s := range Predefined() {
		want, err := e.RunNamed(snap, s.Key)
		require.NoError(t, err)
		assert.Equal(t, want, results[i], s.Key)
	}
}

func TestRunAllCancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.RunAll(ctx, testSnapshot())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSensitivity(t *testing.T) {
	e := newTestEngine()
	snap := models.Snapshot{Contracts: []models.Contract{loan(1, "BBB", "Maschinenbau", "Hessen", 0.02, 0.45, 100000)}}

	res, err := e.Sensitivity(snap, "pd_multiplier", []float64{1, 2})

	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	points := res.Points
	require.Len(t, points, 2)
	assert.Equal(t, "pd_multiplier", points[0].Parameter)
	assert.InDelta(t, 900, points[0].BaselineECL, 1e-6)
	// LGD keeps the base scenario's 8 point add-on
	assert.InDelta(t, 1060, points[0].StressedECL, 1e-6)
	assert.InDelta(t, 2120, points[1].StressedECL, 1e-6)
	assert.InDelta(t, 17.7778, points[0].ECLIncreasePct, 1e-4)

	base, err := e.Scenario(SensitivityBase)
	require.NoError(t, err)
	assert.Equal(t, 1.5, base.PDMultiplier)
	assert.Equal(t, models.ScenarioRecession, base.Type)
}

func TestSensitivityUnknownParameter(t *testing.T) {
	e := newTestEngine()

	_, err := e.Sensitivity(testSnapshot(), "gdp", []float64{1})

	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestSensitivityKeepsValidValues(t *testing.T) {
	tests := []struct {
		name      string
		parameter string
		values    []float64
		want      []float64
		failed    []string
	}{
		{"negative multiplier", "pd_multiplier", []float64{1.5, -1, 2}, []float64{1.5, 2}, []string{"sensitivity_pd_multiplier_-1"}},
		{"lgd out of range", "lgd_adjustment", []float64{0.1, 3}, []float64{0.1}, []string{"sensitivity_lgd_adjustment_3"}},
		{"all invalid", "pd_multiplier", []float64{-2}, nil, []string{"sensitivity_pd_multiplier_-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()

			res, err := e.Sensitivity(testSnapshot(), tt.parameter, tt.values)

			require.NoError(t, err)
			var got []float64
			for _, p := range res.Points {
				got = append(got, p.Value)
			}
			assert.Equal(t, tt.want, got)
			require.Len(t, res.Failures, len(tt.failed))
			for i, key := range tt.failed {
				assert.Equal(t, key, res.Failures[i].Scenario)
				assert.Contains(t, res.Failures[i].Reason, "invalid")
			}
		})
	}
}

func TestComparisonTable(t *testing.T) {
	e := newTestEngine()
	results, _, err := e.RunAll(context.Background(), testSnapshot())
	require.NoError(t, err)

	rows := ComparisonTable(results)

	require.Len(t, rows, len(results))
	assert.Equal(t, "Schwere Rezession", rows[2].Scenario)
	assert.Equal(t, models.ScenarioRecession, rows[2].Type)
	assert.Equal(t, results[2].CapitalImpact, rows[2].CapitalImpact)
	assert.Equal(t, 2, rows[2].Stage1To2)
	assert.Equal(t, 1, rows[2].Stage2To3)
}
