package store

import (
	"context"
	"errors"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

// DefaultHistoryLimit is used when a list call asks for a non-positive limit.
const DefaultHistoryLimit = 10

// ErrNotFound is returned by the Latest methods on an empty collection.
var ErrNotFound = errors.New("record not found")

// Repository defines the persistence operations the orchestrator depends on.
// List methods return the newest records first.
type Repository interface {
	AppendReading(ctx context.Context, reading *fire.SensorReading) error
	LatestReading(ctx context.Context) (*fire.SensorReading, error)
	ListReadings(ctx context.Context, limit int) ([]fire.SensorReading, error)

	AppendDetection(ctx context.Context, event *fire.DetectionEvent) error
	LatestDetection(ctx context.Context) (*fire.DetectionEvent, error)
	ListDetections(ctx context.Context, limit int) ([]fire.DetectionEvent, error)

	AppendThresholds(ctx context.Context, thresholds *fire.Thresholds) error
	LatestThresholds(ctx context.Context) (*fire.Thresholds, error)

	AppendStatusLog(ctx context.Context, entry *fire.StatusLogEntry) error
	ListStatusLog(ctx context.Context, limit int) ([]fire.StatusLogEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}

	return limit
}
