package models

import "time"

// PaymentRecord is a scheduled payment of a contract and how late it was paid
type PaymentRecord struct {
	ContractID  int64     `json:"contract_id"`
	DueDate     time.Time `json:"due_date"`
	Amount      float64   `json:"amount"`
	PaidAmount  float64   `json:"paid_amount"`
	DaysLate    int       `json:"days_late"`
	Outstanding bool      `json:"outstanding"`
}

// RatingChange is one entry of a customer's rating history
type RatingChange struct {
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	OldRating    Rating    `json:"old_rating"`
	NewRating    Rating    `json:"new_rating"`
	ChangedAt    time.Time `json:"changed_at"`
	Reason       string    `json:"reason"`
}

// MacroObservation is a dated economic indicator reading. Industry is empty
// for region-wide figures.
type MacroObservation struct {
	Region           string    `json:"region"`
	Industry         string    `json:"industry,omitempty"`
	Date             time.Time `json:"date"`
	UnemploymentRate float64   `json:"unemployment_rate"` // percent
	InsolvencyRate   float64   `json:"insolvency_rate"`   // fraction
	ConfidenceIndex  float64   `json:"confidence_index"`
}
