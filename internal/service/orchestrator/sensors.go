package orchestrator

import (
	"context"
	"fmt"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/notify"
)

// Response messages of IngestReading.
const (
	MessageSensorsUpdated = "Sensors updated"
	MessageSensorsPaused  = "Fire already confirmed, sensor updates paused"
)

// IngestResult is returned to the sensor that posted a reading.
type IngestResult struct {
	Message     string  `json:"message"`
	FireAlert   bool    `json:"fire_alert"`
	EmailSent   bool    `json:"email_sent"`
	EmailError  *string `json:"email_error"`
	CameraAlert bool    `json:"camera_alert"`
	Paused      bool    `json:"paused,omitempty"`
}

// IngestReading persists a reading, fans it out and raises the alarm when it
// crosses the thresholds. A zero timestamp is replaced with the current time.
func (o *Orchestrator) IngestReading(ctx context.Context, reading fire.SensorReading) (*IngestResult, error) {
	if err := reading.Validate(); err != nil {
		return nil, err
	}

	if o.policy == PolicyPauseWhenConfirmed && o.latch.IsConfirmed() {
		logger.DebugKV(ctx, "Reading skipped, fire already confirmed",
			"temperature", reading.Temperature,
			"smoke_level", reading.SmokeLevel)

		return &IngestResult{
			Message:   MessageSensorsPaused,
			FireAlert: true,
			Paused:    true,
		}, nil
	}

	now := o.now()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}

	if err := o.repo.AppendReading(ctx, &reading); err != nil {
		return nil, fmt.Errorf("persist reading: %w", err)
	}

	thresholds, err := o.Thresholds(ctx)
	if err != nil {
		return nil, err
	}

	risk := fire.Evaluate(reading, thresholds)

	report := o.publisher.Publish(ctx, alert.GroupDashboard, alert.SensorReading{
		Data:      reading,
		FireRisk:  risk,
		Timestamp: now,
	})

	logger.DebugKV(ctx, "Reading ingested",
		"id", reading.ID,
		"temperature", reading.Temperature,
		"smoke_level", reading.SmokeLevel,
		"fire_risk", risk,
		"dashboards", report.Delivered)

	result := &IngestResult{
		Message:   MessageSensorsUpdated,
		FireAlert: risk,
	}

	if !risk {
		return result, nil
	}

	o.confirm(ctx, fire.SourceSensor, now, fmt.Sprintf(
		"temperature %.1f > %.1f or smoke %.1f > %.1f",
		reading.Temperature, thresholds.TemperatureMax, reading.SmokeLevel, thresholds.GasMax,
	))

	report = o.publisher.Publish(ctx, alert.GroupCamera, alert.SearchImageAlert{
		Data:      reading,
		Message:   alert.SearchImageText,
		Timestamp: now,
	})
	result.CameraAlert = true

	logger.InfoKV(ctx, "Fire risk detected, cameras asked for an image",
		"temperature", reading.Temperature,
		"smoke_level", reading.SmokeLevel,
		"cameras", report.Delivered)

	subject, body := notify.RiskEmail(reading, now)
	sent := o.notify(ctx, subject, body)
	result.EmailSent = sent.Sent
	result.EmailError = sent.ErrorText()

	return result, nil
}
