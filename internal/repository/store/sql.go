package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

// readingRow is the sensor_readings table.
type readingRow struct {
	ID          uint64    `gorm:"primaryKey"`
	Temperature float64   `gorm:"not null"`
	Humidity    float64   `gorm:"not null"`
	SmokeLevel  float64   `gorm:"not null"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (readingRow) TableName() string { return "sensor_readings" }

// detectionRow is the detection_events table.
type detectionRow struct {
	ID                uint64    `gorm:"primaryKey"`
	Filename          string    `gorm:"size:255;not null"`
	AnnotatedImageURL string    `gorm:"size:1024"`
	ObjectCount       int       `gorm:"not null"`
	HasFire           bool      `gorm:"index;not null"`
	Timestamp         time.Time `gorm:"index;not null"`
}

func (detectionRow) TableName() string { return "detection_events" }

// thresholdsRow is the thresholds table. Every update is a new row.
type thresholdsRow struct {
	ID             uint64    `gorm:"primaryKey"`
	TemperatureMax float64   `gorm:"not null"`
	GasMax         float64   `gorm:"not null"`
	UpdatedBy      string    `gorm:"size:200"`
	UpdatedAt      time.Time `gorm:"index;not null"`
}

func (thresholdsRow) TableName() string { return "thresholds" }

// statusLogRow is the system_log table.
type statusLogRow struct {
	ID        uint64    `gorm:"primaryKey"`
	Status    string    `gorm:"size:20;not null"`
	Source    string    `gorm:"size:20;not null"`
	Details   string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index;not null"`
}

func (statusLogRow) TableName() string { return "system_log" }

// SQLRepository stores the collections in SQLite through gorm.
type SQLRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}

	// SQLite allows one writer; a single connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err = db.WithContext(ctx).AutoMigrate(
		new(readingRow),
		new(detectionRow),
		new(thresholdsRow),
		new(statusLogRow),
	); err != nil {
		_ = sqlDB.Close() //nolint:errcheck // The migration error is the one worth returning.

		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

// AppendReading inserts the reading and assigns its ID.
func (r *SQLRepository) AppendReading(ctx context.Context, reading *fire.SensorReading) error {
	row := readingRow{
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		SmokeLevel:  reading.SmokeLevel,
		Timestamp:   reading.Timestamp,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert sensor reading: %w", err)
	}

	reading.ID = row.ID

	return nil
}

// LatestReading returns the reading with the newest timestamp.
func (r *SQLRepository) LatestReading(ctx context.Context) (*fire.SensorReading, error) {
	var row readingRow

	err := r.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Take(&row).Error
	if err != nil {
		return nil, notFound("sensor reading", err)
	}

	reading := row.toDomain()

	return &reading, nil
}

// ListReadings returns up to limit readings, newest first.
func (r *SQLRepository) ListReadings(ctx context.Context, limit int) ([]fire.SensorReading, error) {
	var rows []readingRow

	err := r.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Limit(normalizeLimit(limit)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sensor readings: %w", err)
	}

	result := make([]fire.SensorReading, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}

	return result, nil
}

// AppendDetection inserts the event and assigns its ID.
func (r *SQLRepository) AppendDetection(ctx context.Context, event *fire.DetectionEvent) error {
	row := detectionRow{
		Filename:          event.Filename,
		AnnotatedImageURL: event.AnnotatedImageURL,
		ObjectCount:       event.ObjectCount,
		HasFire:           event.HasFire,
		Timestamp:         event.Timestamp,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert detection event: %w", err)
	}

	event.ID = row.ID

	return nil
}

// LatestDetection returns the most recently stored event.
func (r *SQLRepository) LatestDetection(ctx context.Context) (*fire.DetectionEvent, error) {
	var row detectionRow

	if err := r.db.WithContext(ctx).Order("id DESC").Take(&row).Error; err != nil {
		return nil, notFound("detection event", err)
	}

	event := row.toDomain()

	return &event, nil
}

// ListDetections returns up to limit events, newest first.
func (r *SQLRepository) ListDetections(ctx context.Context, limit int) ([]fire.DetectionEvent, error) {
	var rows []detectionRow

	if err := r.db.WithContext(ctx).Order("id DESC").Limit(normalizeLimit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list detection events: %w", err)
	}

	result := make([]fire.DetectionEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}

	return result, nil
}

// AppendThresholds inserts a new thresholds version.
func (r *SQLRepository) AppendThresholds(ctx context.Context, thresholds *fire.Thresholds) error {
	row := thresholdsRow{
		TemperatureMax: thresholds.TemperatureMax,
		GasMax:         thresholds.GasMax,
		UpdatedBy:      thresholds.UpdatedBy,
		UpdatedAt:      thresholds.UpdatedAt,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert thresholds: %w", err)
	}

	thresholds.ID = row.ID

	return nil
}

// LatestThresholds returns the newest thresholds version.
func (r *SQLRepository) LatestThresholds(ctx context.Context) (*fire.Thresholds, error) {
	var row thresholdsRow

	if err := r.db.WithContext(ctx).Order("id DESC").Take(&row).Error; err != nil {
		return nil, notFound("thresholds", err)
	}

	return &fire.Thresholds{
		ID:             row.ID,
		TemperatureMax: row.TemperatureMax,
		GasMax:         row.GasMax,
		UpdatedAt:      row.UpdatedAt,
		UpdatedBy:      row.UpdatedBy,
	}, nil
}

// AppendStatusLog inserts a status log entry.
func (r *SQLRepository) AppendStatusLog(ctx context.Context, entry *fire.StatusLogEntry) error {
	row := statusLogRow{
		Status:    entry.Status.String(),
		Source:    string(entry.Source),
		Details:   entry.Details,
		Timestamp: entry.Timestamp,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	entry.ID = row.ID

	return nil
}

// ListStatusLog returns up to limit entries, newest first.
func (r *SQLRepository) ListStatusLog(ctx context.Context, limit int) ([]fire.StatusLogEntry, error) {
	var rows []statusLogRow

	if err := r.db.WithContext(ctx).Order("id DESC").Limit(normalizeLimit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list status log: %w", err)
	}

	result := make([]fire.StatusLogEntry, 0, len(rows))

	for _, row := range rows {
		var status fire.Status
		if err := status.UnmarshalText([]byte(row.Status)); err != nil {
			return nil, fmt.Errorf("status log %d: %w", row.ID, err)
		}

		result = append(result, fire.StatusLogEntry{
			ID:        row.ID,
			Status:    status,
			Source:    fire.Source(row.Source),
			Details:   row.Details,
			Timestamp: row.Timestamp,
		})
	}

	return result, nil
}

// Ping checks the database connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	return sqlDB.Close()
}

func (row readingRow) toDomain() fire.SensorReading {
	return fire.SensorReading{
		ID:          row.ID,
		Temperature: row.Temperature,
		Humidity:    row.Humidity,
		SmokeLevel:  row.SmokeLevel,
		Timestamp:   row.Timestamp,
	}
}

func (row detectionRow) toDomain() fire.DetectionEvent {
	return fire.DetectionEvent{
		ID:                row.ID,
		Filename:          row.Filename,
		AnnotatedImageURL: row.AnnotatedImageURL,
		ObjectCount:       row.ObjectCount,
		HasFire:           row.HasFire,
		Timestamp:         row.Timestamp,
	}
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return fmt.Errorf("load latest %s: %w", what, err)
}
