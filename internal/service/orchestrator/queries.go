package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/repository/store"
)

// Dashboard aggregates what the main view shows.
type Dashboard struct {
	Status        fire.Status        `json:"status"`
	Sensors       fire.SensorReading `json:"sensors"`
	Thresholds    fire.Thresholds    `json:"thresholds"`
	LastPhotoURL  *string            `json:"last_photo_url"`
	FireConfirmed bool               `json:"fire_confirmed"`
	FireState     fire.Snapshot      `json:"fire_state"`
}

// LatestReading returns the newest reading or a zero placeholder on cold start.
func (o *Orchestrator) LatestReading(ctx context.Context) (fire.SensorReading, error) {
	reading, err := o.latestReading(ctx)
	if err != nil || reading == nil {
		return fire.SensorReading{}, err
	}

	return *reading, nil
}

// Thresholds returns the active limits, falling back to the defaults.
func (o *Orchestrator) Thresholds(ctx context.Context) (fire.Thresholds, error) {
	current, err := o.repo.LatestThresholds(ctx)

	switch {
	case err == nil:
		return *current, nil
	case errors.Is(err, store.ErrNotFound):
		return fire.DefaultThresholds(), nil
	default:
		return fire.Thresholds{}, fmt.Errorf("load thresholds: %w", err)
	}
}

// UpdateThresholds applies a partial patch and stores it as a new record.
func (o *Orchestrator) UpdateThresholds(ctx context.Context, patch fire.ThresholdsPatch, actor string) (fire.Thresholds, error) {
	o.thresholdsMu.Lock()
	defer o.thresholdsMu.Unlock()

	current, err := o.repo.LatestThresholds(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fire.Thresholds{}, fmt.Errorf("load thresholds: %w", err)
	}

	next, err := patch.Apply(current, o.now())
	if err != nil {
		return fire.Thresholds{}, err
	}

	next.UpdatedBy = actor

	if err = o.repo.AppendThresholds(ctx, &next); err != nil {
		return fire.Thresholds{}, fmt.Errorf("persist thresholds: %w", err)
	}

	logger.InfoKV(ctx, "Thresholds updated",
		"temperature_max", next.TemperatureMax,
		"gas_max", next.GasMax,
		"actor", actor)

	return next, nil
}

// Status resolves the current system status.
func (o *Orchestrator) Status(ctx context.Context) (fire.Status, error) {
	reading, thresholds, detection, err := o.evidence(ctx)
	if err != nil {
		return fire.StatusNormal, err
	}

	return fire.Resolve(reading, thresholds, detection, o.latch.IsConfirmed()), nil
}

// Dashboard collects the status and the latest evidence.
func (o *Orchestrator) Dashboard(ctx context.Context) (*Dashboard, error) {
	reading, thresholds, detection, err := o.evidence(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := o.latch.Snapshot()

	view := &Dashboard{
		Status:        fire.Resolve(reading, thresholds, detection, snapshot.Confirmed),
		Thresholds:    thresholds,
		FireConfirmed: snapshot.Confirmed,
		FireState:     snapshot,
	}

	if reading != nil {
		view.Sensors = *reading
	}

	if detection != nil {
		view.LastPhotoURL = &detection.AnnotatedImageURL
	}

	return view, nil
}

// LatestPhotoURL returns the annotated image of the newest detection, if any.
func (o *Orchestrator) LatestPhotoURL(ctx context.Context) (*string, error) {
	detection, err := o.latestDetection(ctx)
	if err != nil || detection == nil {
		return nil, err
	}

	return &detection.AnnotatedImageURL, nil
}

// FireState returns the latch with its transition metadata.
func (o *Orchestrator) FireState() fire.Snapshot {
	return o.latch.Snapshot()
}

// ResetFireState clears the latch. It reports false when there was nothing to clear.
func (o *Orchestrator) ResetFireState(ctx context.Context, actor string) (bool, error) {
	if !o.latch.Reset() {
		return false, nil
	}

	status, err := o.Status(ctx)
	if err != nil {
		return true, err
	}

	entry := &fire.StatusLogEntry{
		Status:    status,
		Source:    fire.SourceOperator,
		Details:   "fire state reset by " + actor,
		Timestamp: o.now(),
	}

	if err = o.repo.AppendStatusLog(ctx, entry); err != nil {
		return true, fmt.Errorf("record reset: %w", err)
	}

	logger.WarnKV(ctx, "Fire state reset", "actor", actor, "status", status)

	return true, nil
}

// ReadingHistory returns the newest readings first.
func (o *Orchestrator) ReadingHistory(ctx context.Context, limit int) ([]fire.SensorReading, error) {
	readings, err := o.repo.ListReadings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}

	return readings, nil
}

// DetectionHistory returns the newest detection events first.
func (o *Orchestrator) DetectionHistory(ctx context.Context, limit int) ([]fire.DetectionEvent, error) {
	events, err := o.repo.ListDetections(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}

	return events, nil
}

// StatusHistory returns the newest status changes first.
func (o *Orchestrator) StatusHistory(ctx context.Context, limit int) ([]fire.StatusLogEntry, error) {
	entries, err := o.repo.ListStatusLog(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list status log: %w", err)
	}

	return entries, nil
}

func (o *Orchestrator) evidence(
	ctx context.Context,
) (*fire.SensorReading, fire.Thresholds, *fire.DetectionEvent, error) {
	reading, err := o.latestReading(ctx)
	if err != nil {
		return nil, fire.Thresholds{}, nil, err
	}

	thresholds, err := o.Thresholds(ctx)
	if err != nil {
		return nil, fire.Thresholds{}, nil, err
	}

	detection, err := o.latestDetection(ctx)
	if err != nil {
		return nil, fire.Thresholds{}, nil, err
	}

	return reading, thresholds, detection, nil
}

func (o *Orchestrator) latestReading(ctx context.Context) (*fire.SensorReading, error) {
	reading, err := o.repo.LatestReading(ctx)

	switch {
	case err == nil:
		return reading, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil //nolint:nilnil // Cold start has no reading.
	default:
		return nil, fmt.Errorf("load latest reading: %w", err)
	}
}

func (o *Orchestrator) latestDetection(ctx context.Context) (*fire.DetectionEvent, error) {
	detection, err := o.repo.LatestDetection(ctx)

	switch {
	case err == nil:
		return detection, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil //nolint:nilnil // No detection recorded yet.
	default:
		return nil, fmt.Errorf("load latest detection: %w", err)
	}
}
