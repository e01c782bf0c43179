package fire

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Fallback limits used when no thresholds record exists yet.
const (
	DefaultTemperatureMax = 50.0
	DefaultGasMax         = 300.0
)

// ErrInvalidThresholds is returned when a limit is not a positive finite number.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Thresholds is one versioned record of the alarm limits. The newest record wins.
type Thresholds struct {
	ID             uint64    `json:"-"`
	TemperatureMax float64   `json:"temperature_max"`
	GasMax         float64   `json:"gas_max"`
	UpdatedAt      time.Time `json:"updated_at"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
}

// ThresholdsPatch is a partial update; nil fields keep the previous value.
type ThresholdsPatch struct {
	TemperatureMax *float64 `json:"temperature_max,omitempty"`
	GasMax         *float64 `json:"gas_max,omitempty"`
}

// DefaultThresholds returns the fallback limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureMax: DefaultTemperatureMax,
		GasMax:         DefaultGasMax,
	}
}

// Validate checks that both limits are positive finite numbers.
func (t Thresholds) Validate() error {
	if !positive(t.TemperatureMax) {
		return fmt.Errorf("%w: temperature_max must be > 0, got %v", ErrInvalidThresholds, t.TemperatureMax)
	}

	if !positive(t.GasMax) {
		return fmt.Errorf("%w: gas_max must be > 0, got %v", ErrInvalidThresholds, t.GasMax)
	}

	return nil
}

// Apply builds the next record from the current one. A nil current means
// there is no record yet and the defaults are the base.
func (p ThresholdsPatch) Apply(current *Thresholds, now time.Time) (Thresholds, error) {
	next := DefaultThresholds()
	if current != nil {
		next.TemperatureMax = current.TemperatureMax
		next.GasMax = current.GasMax
	}

	if p.TemperatureMax != nil {
		next.TemperatureMax = *p.TemperatureMax
	}

	if p.GasMax != nil {
		next.GasMax = *p.GasMax
	}

	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return Thresholds{}, err
	}

	return next, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
