package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

var errTestStorage = errors.New("test storage error")

// flakyIngester fails the first failures calls.
type flakyIngester struct {
	mu       sync.Mutex
	failures int
	err      error
	readings []fire.SensorReading
}

func (f *flakyIngester) IngestReading(_ context.Context, reading fire.SensorReading) (*orchestrator.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--

		return nil, f.err
	}

	f.readings = append(f.readings, reading)

	return &orchestrator.IngestResult{FireAlert: reading.Temperature > 50}, nil
}

// TestDecodeReading accepts complete records only.
func TestDecodeReading(t *testing.T) {
	t.Parallel()

	reading, err := DecodeReading([]byte(`{"temperature":61.5,"humidity":30,"smoke_level":410,"timestamp":"2026-07-08T09:10:11Z"}`))
	require.NoError(t, err)
	require.InDelta(t, 61.5, reading.Temperature, 1e-9)
	require.Equal(t, time.Date(2026, 7, 8, 9, 10, 11, 0, time.UTC), reading.Timestamp)

	reading, err = DecodeReading([]byte(`{"temperature":20,"humidity":30,"smoke_level":10}`))
	require.NoError(t, err)
	require.True(t, reading.Timestamp.IsZero())

	for _, raw := range []string{`not json`, `{"temperature":20}`, `[]`} {
		_, err = DecodeReading([]byte(raw))
		require.ErrorIs(t, err, ErrMalformedRecord, raw)
	}
}

// TestHandleRecord_RetriesStoreFailures keeps the reading until it is stored.
func TestHandleRecord_RetriesStoreFailures(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ingester := &flakyIngester{failures: 2, err: errTestStorage}
		c := &Consumer{ingester: ingester, backoff: linearBackoff}

		started := time.Now()

		require.NoError(t, c.handleRecord(context.Background(), []byte(`{"temperature":60,"humidity":30,"smoke_level":400}`)))
		require.Len(t, ingester.readings, 1)
		// 1s after the first failure, 2s after the second.
		require.Equal(t, 3*time.Second, time.Since(started))
	})
}

// TestHandleRecord_SkipsBadInput does not retry malformed or invalid records.
func TestHandleRecord_SkipsBadInput(t *testing.T) {
	t.Parallel()

	ingester := &flakyIngester{failures: 1, err: fire.ErrInvalidReading}
	c := &Consumer{ingester: ingester, backoff: linearBackoff}

	require.ErrorIs(t, c.handleRecord(context.Background(), []byte(`{}`)), ErrMalformedRecord)
	require.ErrorIs(t,
		c.handleRecord(context.Background(), []byte(`{"temperature":1,"humidity":1,"smoke_level":1}`)),
		fire.ErrInvalidReading)
	require.Empty(t, ingester.readings)
}

// TestHandleRecord_StopsOnCancel gives up retrying when the consumer stops.
func TestHandleRecord_StopsOnCancel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		ingester := &flakyIngester{failures: 1000, err: errTestStorage}
		c := &Consumer{ingester: ingester, backoff: linearBackoff}

		err := c.handleRecord(ctx, []byte(`{"temperature":60,"humidity":30,"smoke_level":400}`))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Empty(t, ingester.readings)
	})
}

// TestNewConsumer_ValidatesConfig fails fast without contacting a broker.
func TestNewConsumer_ValidatesConfig(t *testing.T) {
	t.Parallel()

	ingester := new(flakyIngester)

	_, err := NewConsumer(context.Background(), Config{Topic: "t", Group: "g"}, ingester)
	require.Error(t, err)

	_, err = NewConsumer(context.Background(), Config{Brokers: []string{"localhost:9092"}, Group: "g"}, ingester)
	require.Error(t, err)

	_, err = NewConsumer(context.Background(), Config{Brokers: []string{"localhost:9092"}, Topic: "t"}, ingester)
	require.Error(t, err)
}
