package store

import (
	"context"
	"slices"
	"sync"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

// MemoryRepository keeps every collection in memory.
type MemoryRepository struct {
	mu sync.RWMutex

	readings   []fire.SensorReading
	detections []fire.DetectionEvent
	thresholds []fire.Thresholds
	statusLog  []fire.StatusLogEntry
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return new(MemoryRepository)
}

// AppendReading stores the reading and assigns its ID.
func (m *MemoryRepository) AppendReading(_ context.Context, reading *fire.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reading.ID = uint64(len(m.readings) + 1)
	m.readings = append(m.readings, *reading)

	return nil
}

// LatestReading returns the reading with the newest timestamp.
func (m *MemoryRepository) LatestReading(_ context.Context) (*fire.SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.readings) == 0 {
		return nil, ErrNotFound
	}

	latest := m.readings[0]
	for _, r := range m.readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}

	return &latest, nil
}

// ListReadings returns up to limit readings, newest timestamp first.
func (m *MemoryRepository) ListReadings(_ context.Context, limit int) ([]fire.SensorReading, error) {
	m.mu.RLock()
	ordered := newestFirst(m.readings, len(m.readings))
	m.mu.RUnlock()

	slices.SortStableFunc(ordered, func(a, b fire.SensorReading) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	return ordered[:min(normalizeLimit(limit), len(ordered))], nil
}

// AppendDetection stores the event and assigns its ID.
func (m *MemoryRepository) AppendDetection(_ context.Context, event *fire.DetectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.ID = uint64(len(m.detections) + 1)
	m.detections = append(m.detections, *event)

	return nil
}

// LatestDetection returns the most recently stored event.
func (m *MemoryRepository) LatestDetection(_ context.Context) (*fire.DetectionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.detections) == 0 {
		return nil, ErrNotFound
	}

	latest := m.detections[len(m.detections)-1]

	return &latest, nil
}

// ListDetections returns up to limit events, newest first.
func (m *MemoryRepository) ListDetections(_ context.Context, limit int) ([]fire.DetectionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return newestFirst(m.detections, limit), nil
}

// AppendThresholds stores a new thresholds version.
func (m *MemoryRepository) AppendThresholds(_ context.Context, thresholds *fire.Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	thresholds.ID = uint64(len(m.thresholds) + 1)
	m.thresholds = append(m.thresholds, *thresholds)

	return nil
}

// LatestThresholds returns the newest thresholds version.
func (m *MemoryRepository) LatestThresholds(_ context.Context) (*fire.Thresholds, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.thresholds) == 0 {
		return nil, ErrNotFound
	}

	latest := m.thresholds[len(m.thresholds)-1]

	return &latest, nil
}

// AppendStatusLog stores a status log entry.
func (m *MemoryRepository) AppendStatusLog(_ context.Context, entry *fire.StatusLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = uint64(len(m.statusLog) + 1)
	m.statusLog = append(m.statusLog, *entry)

	return nil
}

// ListStatusLog returns up to limit entries, newest first.
func (m *MemoryRepository) ListStatusLog(_ context.Context, limit int) ([]fire.StatusLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return newestFirst(m.statusLog, limit), nil
}

// Ping always succeeds.
func (m *MemoryRepository) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryRepository) Close() error { return nil }

// newestFirst copies the tail of records in reverse order.
func newestFirst[T any](records []T, limit int) []T {
	limit = min(normalizeLimit(limit), len(records))
	result := make([]T, 0, limit)

	for i := len(records) - 1; i >= len(records)-limit; i-- {
		result = append(result, records[i])
	}

	return result
}
