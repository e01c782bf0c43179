package fire

import (
	"fmt"
	"math"
)

// Status is the system-wide fire status. Values are ordered by severity.
type Status int

// Statuses from least to most severe.
const (
	StatusNormal Status = iota
	StatusRisk
	StatusConfirmed
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "NORMAL"
	case StatusRisk:
		return "RISK"
	case StatusConfirmed:
		return "CONFIRMED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NORMAL":
		*s = StatusNormal
	case "RISK":
		*s = StatusRisk
	case "CONFIRMED":
		*s = StatusConfirmed
	default:
		return fmt.Errorf("unknown status %q", text)
	}

	return nil
}

// Evaluate reports whether the reading exceeds the thresholds.
// Humidity is ignored and NaN on either side never counts as risk.
func Evaluate(reading SensorReading, thresholds Thresholds) bool {
	return exceeds(reading.Temperature, thresholds.TemperatureMax) ||
		exceeds(reading.SmokeLevel, thresholds.GasMax)
}

func exceeds(value, limit float64) bool {
	if math.IsNaN(value) || math.IsNaN(limit) {
		return false
	}

	return value > limit
}

// Resolve combines the latest evidence into one status. A nil reading is the
// cold-start placeholder of zeros and a nil detection means none was recorded.
// The result only escalates: CONFIRMED dominates RISK dominates NORMAL.
func Resolve(reading *SensorReading, thresholds Thresholds, detection *DetectionEvent, confirmed bool) Status {
	status := StatusNormal

	var current SensorReading
	if reading != nil {
		current = *reading
	}

	if Evaluate(current, thresholds) {
		status = StatusRisk
	}

	if confirmed || (detection != nil && detection.HasFire) {
		status = StatusConfirmed
	}

	return status
}
