package fire

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEvaluate covers both risk factors, humidity and the strict comparison.
func TestEvaluate(t *testing.T) {
	t.Parallel()

	limits := Thresholds{TemperatureMax: 50, GasMax: 300}

	cases := map[string]struct {
		reading SensorReading
		want    bool
	}{
		"calm":             {SensorReading{Temperature: 20, SmokeLevel: 50}, false},
		"hot":              {SensorReading{Temperature: 60, SmokeLevel: 50}, true},
		"smoky":            {SensorReading{Temperature: 20, SmokeLevel: 400}, true},
		"both":             {SensorReading{Temperature: 60, SmokeLevel: 400}, true},
		"at the limit":     {SensorReading{Temperature: 50, SmokeLevel: 300}, false},
		"humidity ignored": {SensorReading{Temperature: 20, Humidity: 1000, SmokeLevel: 50}, false},
	}

	for name, tc := range cases {
		require.Equal(t, tc.want, Evaluate(tc.reading, limits), name)
	}
}

// TestEvaluate_NaN ensures NaN on either side never reports risk.
func TestEvaluate_NaN(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	limits := Thresholds{TemperatureMax: 50, GasMax: 300}

	require.False(t, Evaluate(SensorReading{Temperature: nan, SmokeLevel: nan}, limits))
	require.False(t, Evaluate(SensorReading{Temperature: 1e9}, Thresholds{TemperatureMax: nan, GasMax: nan}))
	require.True(t, Evaluate(SensorReading{Temperature: nan, SmokeLevel: 301}, limits))
}

// TestEvaluate_Monotonic sweeps temperature and smoke upwards: once risk appears it stays.
func TestEvaluate_Monotonic(t *testing.T) {
	t.Parallel()

	limits := DefaultThresholds()

	for _, field := range []string{"temperature", "smoke"} {
		seenRisk := false

		for v := 0.0; v <= 1000; v += 0.5 {
			reading := SensorReading{}
			if field == "temperature" {
				reading.Temperature = v
			} else {
				reading.SmokeLevel = v
			}

			risk := Evaluate(reading, limits)
			if seenRisk {
				require.True(t, risk, "%s=%v flipped back", field, v)
			}

			seenRisk = seenRisk || risk
		}

		require.True(t, seenRisk, field)
	}
}

// TestResolve checks escalation order and the cold-start default.
func TestResolve(t *testing.T) {
	t.Parallel()

	limits := DefaultThresholds()
	hot := &SensorReading{Temperature: 60}
	calm := &SensorReading{Temperature: 20}
	fireEvent := &DetectionEvent{HasFire: true}
	clearEvent := &DetectionEvent{HasFire: false}

	require.Equal(t, StatusNormal, Resolve(nil, limits, nil, false))
	require.Equal(t, StatusNormal, Resolve(calm, limits, clearEvent, false))
	require.Equal(t, StatusRisk, Resolve(hot, limits, clearEvent, false))

	// Either evidence source alone reaches CONFIRMED.
	require.Equal(t, StatusConfirmed, Resolve(calm, limits, fireEvent, false))
	require.Equal(t, StatusConfirmed, Resolve(nil, limits, nil, true))
	require.Equal(t, StatusConfirmed, Resolve(hot, limits, fireEvent, true))
}

// TestStatus_Ordering keeps the severity order used by the resolver.
func TestStatus_Ordering(t *testing.T) {
	t.Parallel()

	require.Less(t, StatusNormal, StatusRisk)
	require.Less(t, StatusRisk, StatusConfirmed)
}

// TestStatus_JSON verifies the textual wire form.
func TestStatus_JSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(map[string]Status{"status": StatusRisk})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"RISK"}`, string(raw))

	var decoded struct {
		Status Status `json:"status"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"status":"CONFIRMED"}`), &decoded))
	require.Equal(t, StatusConfirmed, decoded.Status)
	require.Error(t, json.Unmarshal([]byte(`{"status":"BURNING"}`), &decoded))
}
