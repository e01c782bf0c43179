package fire

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidReading is returned when a reading carries non-finite values.
var ErrInvalidReading = errors.New("invalid sensor reading")

// SensorReading is one sample of the environmental sensors.
type SensorReading struct {
	// ID is assigned by the store when the reading is persisted.
	ID uint64 `json:"id,omitempty"`
	// Temperature is measured in degrees Celsius.
	Temperature float64 `json:"temperature"`
	// Humidity is relative humidity in percent. It is not a risk factor.
	Humidity float64 `json:"humidity"`
	// SmokeLevel is the raw gas/smoke sensor value.
	SmokeLevel float64 `json:"smoke_level"`
	// Timestamp is when the reading was taken.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Validate rejects readings with infinite values. NaN is tolerated and
// simply never counts as risk.
func (r *SensorReading) Validate() error {
	if r == nil {
		return ErrInvalidReading
	}

	for _, v := range []float64{r.Temperature, r.Humidity, r.SmokeLevel} {
		if math.IsInf(v, 0) {
			return ErrInvalidReading
		}
	}

	return nil
}
