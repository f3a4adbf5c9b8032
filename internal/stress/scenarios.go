package stress

import "github.com/Dan9191/credit-risk/internal/models"

// Predefined returns the standard scenario catalogue in reporting order. Each
// call builds fresh values, so callers may modify the result freely.
func Predefined() []models.StressScenario {
	return []models.StressScenario{
		{
			Key:           "interest_rate_200bps",
			Name:          "Zinserhöhung +200bps",
			Type:          models.ScenarioRateShock,
			Description:   "Parallelverschiebung der Zinskurve um 200 Basispunkte",
			PDMultiplier:  1.3,
			LGDAdjustment: 0.05,
			RateShock:     0.02,
			IndustryShocks: map[string]float64{
				"Immobilien":   1.5,
				"Baugewerbe":   1.4,
				"Einzelhandel": 1.2,
			},
		},
		{
			Key:           "recession_mild",
			Name:          "Milde Rezession",
			Type:          models.ScenarioRecession,
			Description:   "BIP-Rückgang um 1-2%, moderate Arbeitslosigkeit",
			PDMultiplier:  1.5,
			LGDAdjustment: 0.08,
			IndustryShocks: map[string]float64{
				"Tourismus":    2.0,
				"Einzelhandel": 1.8,
				"Automobilbau": 1.6,
				"Baugewerbe":   1.5,
			},
		},
		{
			Key:           "recession_severe",
			Name:          "Schwere Rezession",
			Type:          models.ScenarioRecession,
			Description:   "BIP-Rückgang um 4-5%, stark steigende Arbeitslosigkeit",
			PDMultiplier:  2.5,
			LGDAdjustment: 0.15,
			RateShock:     -0.01,
			IndustryShocks: map[string]float64{
				"Tourismus":    3.5,
				"Einzelhandel": 2.5,
				"Automobilbau": 2.8,
				"Baugewerbe":   3.0,
				"Immobilien":   2.5,
				"Logistik":     2.0,
			},
			RegionalShocks: map[string]float64{
				"Berlin":                 1.3,
				"Bremen":                 1.4,
				"Mecklenburg-Vorpommern": 1.5,
			},
		},
		{
			Key:          "industry_auto",
			Name:         "Automobilkrise",
			Type:         models.ScenarioIndustryShock,
			Description:  "Strukturkrise der Automobilindustrie mit Zulieferern",
			PDMultiplier: 1.0,
			IndustryShocks: map[string]float64{
				"Automobilbau": 3.0,
				"Maschinenbau": 1.8,
				"Logistik":     1.5,
				"Chemie":       1.3,
			},
			RegionalShocks: map[string]float64{
				"Baden-Württemberg": 1.3,
				"Bayern":            1.2,
				"Niedersachsen":     1.3,
			},
		},
		{
			Key:           "industry_real_estate",
			Name:          "Immobilienkrise",
			Type:          models.ScenarioIndustryShock,
			Description:   "Preisverfall am Immobilienmarkt um 20-30%",
			PDMultiplier:  1.0,
			LGDAdjustment: 0.10,
			IndustryShocks: map[string]float64{
				"Immobilien":             3.5,
				"Baugewerbe":             2.5,
				"Finanzdienstleistungen": 1.5,
			},
		},
		{
			Key:           "combined_severe",
			Name:          "Kombiniertes Stressszenario",
			Type:          models.ScenarioCombined,
			Description:   "Rezession mit Zinsanstieg und Immobilienkrise",
			PDMultiplier:  3.0,
			LGDAdjustment: 0.20,
			RateShock:     0.015,
			IndustryShocks: map[string]float64{
				"Immobilien":   3.0,
				"Baugewerbe":   2.8,
				"Einzelhandel": 2.5,
				"Tourismus":    3.5,
				"Automobilbau": 2.5,
			},
			RegionalShocks: map[string]float64{
				"Berlin":                 1.2,
				"Bremen":                 1.3,
				"Sachsen-Anhalt":         1.4,
				"Mecklenburg-Vorpommern": 1.4,
			},
		},
	}
}

// catalogue merges configured scenarios over the predefined ones. A
// configured scenario with a predefined key replaces it in place; new keys
// are appended.
func catalogue(configured []models.StressScenario) ([]string, map[string]models.StressScenario) {
	var keys []string
	byKey := make(map[string]models.StressScenario)
	for _, s := range append(Predefined(), configured...) {
		if _, ok := byKey[s.Key]; !ok {
			keys = append(keys, s.Key)
		}
		byKey[s.Key] = s
	}
	return keys, byKey
}
