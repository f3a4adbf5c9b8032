package models

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrUnknownScenario is returned when a stress scenario key is not configured
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrNoPortfolio is returned when a run is started on an empty snapshot
	ErrNoPortfolio = errors.New("no portfolio data available")
)

// ValidationError rejects malformed input such as a negative PD multiplier
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConfigurationError reports a request for something that is not configured
type ConfigurationError struct {
	Name string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Name)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DataQualityWarning records a substituted default for a missing input. It is
// reported alongside results and never aborts a run.
type DataQualityWarning struct {
	ContractID int64   `json:"contract_id"`
	Field      string  `json:"field"`
	Default    float64 `json:"default"`
	Message    string  `json:"message"`
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("contract %d: %s", w.ContractID, w.Message)
}

// SafeDiv divides and returns 0 for a zero or non-finite denominator
func SafeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	return num / den
}
