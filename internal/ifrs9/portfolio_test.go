package ifrs9

import (
	"testing"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() models.Snapshot {
	a := contract(1)

	b := contract(2)
	b.Rating = models.ParseRating("CCC")
	b.Industry = "Tourismus"

	c := contract(3)
	c.Status = models.StatusDefaulted
	c.Rating = models.ParseRating("D")
	c.Industry = "Tourismus"

	zero := contract(4)
	zero.EAD = models.Float(0)
	zero.Industry = "Chemie"
	zero.Rating = models.Unrated

	closed := contract(5)
	closed.Status = models.StatusClosed

	return models.Snapshot{AsOf: asOf, Contracts: []models.Contract{a, b, c, zero, closed}}
}

func TestCalculatePortfolio(t *testing.T) {
	e, _ := newTestEngine()

	report := e.CalculatePortfolio(testSnapshot())

	require.Len(t, report.Details, 4, "closed contracts are out of scope")
	s := report.Summary
	assert.Equal(t, 4, s.TotalContracts)
	assert.Equal(t, 300000.0, s.TotalEAD)
	assert.Equal(t, 2, s.ByStage[models.Stage1].Count)
	assert.Equal(t, 1, s.ByStage[models.Stage2].Count)
	assert.Equal(t, 1, s.ByStage[models.Stage3].Count)
	assert.InDelta(t, s.TotalECL/s.TotalEAD*100, s.ECLRatio, 1e-9)

	require.Len(t, report.ByStage, 3)
	assert.Equal(t, "Stage 1", report.ByStage[0].Key)
	assert.Equal(t, "Stage 3", report.ByStage[2].Key)

	keys := make([]string, 0, len(report.ByRating))
	for _, r := range report.ByRating {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"BBB", "CCC", "D", "unrated"}, keys)

	for _, agg := range report.ByIndustry {
		if agg.Key == "Chemie" {
			assert.Equal(t, 0.0, agg.EAD)
			assert.Equal(t, 0.0, agg.CoverageRatio)
		}
	}
	assert.Equal(t, "Tourismus", report.ByIndustry[0].Key)
}

func TestCalculatePortfolioEmpty(t *testing.T) {
	e, _ := newTestEngine()

	report := e.CalculatePortfolio(models.Snapshot{AsOf: asOf})

	assert.Empty(t, report.Details)
	assert.Equal(t, 0.0, report.Summary.ECLRatio)
	assert.Equal(t, 0.0, report.Summary.AvgPD)
}

func TestCalculatePortfolioIdempotent(t *testing.T) {
	e, _ := newTestEngine()
	snap := testSnapshot()

	first := e.CalculatePortfolio(snap)
	second := e.CalculatePortfolio(snap)

	assert.Equal(t, first, second)
}
