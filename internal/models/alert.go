package models

import (
	"fmt"
	"time"
)

// Severity of an early warning alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityUrgent   Severity = "urgent"
)

// Severities from most to least severe
var Severities = []Severity{SeverityUrgent, SeverityCritical, SeverityWarning, SeverityInfo}

// Rank orders severities, 0 = most severe
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if sev == s {
			return i
		}
	}
	return len(Severities)
}

// Alert is one early warning finding. Alerts are regenerated on every run.
type Alert struct {
	ID                string    `json:"id"`
	Check             string    `json:"check"`
	Severity          Severity  `json:"severity"`
	Category          string    `json:"category"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	AffectedEntity    string    `json:"affected_entity"`
	EntityID          string    `json:"entity_id,omitempty"`
	MetricValue       float64   `json:"metric_value"`
	Threshold         float64   `json:"threshold"`
	RecommendedAction string    `json:"recommended_action"`
	CreatedAt         time.Time `json:"created_at"`
}

// AlertID builds the deterministic alert key from check, entity and run date
func AlertID(check, entity string, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s", check, entity, date.Format("20060102"))
}

// AlertSummary counts alerts by severity and category
type AlertSummary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByCategory map[string]int   `json:"by_category"`
}
