package notify

import (
	"fmt"
	"time"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

const subjectTimeLayout = "2006-01-02 15:04:05"

// RiskEmail builds the alert for a reading that crossed the thresholds.
func RiskEmail(reading fire.SensorReading, now time.Time) (subject, body string) {
	subject = "🔥 FIRE RISK DETECTED: " + now.Format(subjectTimeLayout)
	body = fmt.Sprintf(
		"High risk detected!\n\nTemperature: %.1f°C\nSmoke Level: %.1f\n\nPlease check the system immediately.",
		reading.Temperature, reading.SmokeLevel,
	)

	return subject, body
}

// FireConfirmedEmail builds the alert for a visual fire confirmation.
func FireConfirmedEmail(imageURL string, confidence float64, now time.Time) (subject, body string) {
	subject = "🔥 FIRE CONFIRMED (Visual): " + now.Format(subjectTimeLayout)
	body = fmt.Sprintf(
		"Visual analysis confirmed fire!\n\nImage: %s\nConfidence: %.2f\n\nPlease check the system immediately.",
		imageURL, confidence,
	)

	return subject, body
}
