package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

const (
	connectAttempts = 3
	maxRetryBackoff = 30 * time.Second
)

// ErrMalformedRecord is returned for records that are not sensor readings.
var ErrMalformedRecord = errors.New("malformed sensor record")

// Ingester accepts one reading.
type Ingester interface {
	IngestReading(ctx context.Context, reading fire.SensorReading) (*orchestrator.IngestResult, error)
}

// Config selects the brokers, topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	Group   string
}

// Consumer reads sensor records and hands them to the ingester.
type Consumer struct {
	client   *kgo.Client
	topic    string
	ingester Ingester

	// backoff returns the delay before retry attempt n (starting at 1).
	backoff func(attempt int) time.Duration
}

// NewConsumer connects to the brokers and joins the consumer group.
func NewConsumer(ctx context.Context, cfg Config, ingester Ingester) (*Consumer, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, errors.New("kafka brokers must be provided")
	case cfg.Topic == "":
		return nil, errors.New("kafka topic must be provided")
	case cfg.Group == "":
		return nil, errors.New("kafka consumer group must be provided")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(30 * time.Second),
		kgo.RetryTimeout(30 * time.Second),
		kgo.RetryBackoffFn(func(attempts int) time.Duration {
			return time.Duration(attempts) * time.Second
		}),
	}

	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		client, err := kgo.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("create kafka client: %w", err)
		}

		if lastErr = checkConnection(ctx, client); lastErr == nil {
			logger.InfoKV(ctx, "Connected to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.Group)

			return &Consumer{
				client:   client,
				topic:    cfg.Topic,
				ingester: ingester,
				backoff:  linearBackoff,
			}, nil
		}

		client.Close()
		logger.WarnKV(ctx, "Kafka connection attempt failed", "attempt", attempt, "error", lastErr)

		if err = sleep(ctx, time.Duration(2*attempt)*time.Second); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("connect to kafka after %d attempts: %w", connectAttempts, lastErr)
}

// checkConnection asks the cluster for its brokers.
func checkConnection(ctx context.Context, client *kgo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := kmsg.NewPtrMetadataRequest()
	req.Topics = []kmsg.MetadataRequestTopic{}

	resp, err := req.RequestWith(ctx, client)
	if err != nil {
		return fmt.Errorf("request metadata: %w", err)
	}

	if len(resp.Brokers) == 0 {
		return errors.New("no brokers found in cluster")
	}

	return nil
}

// Run consumes until ctx is done or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "topic", c.topic)
	logger.Info(ctx, "Consuming sensor readings")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(_ string, partition int32, err error) {
			logger.WarnKV(ctx, "Fetch failed", "partition", partition, "error", err)
		})

		var processed int

		fetches.EachRecord(func(record *kgo.Record) {
			if ctx.Err() != nil {
				return
			}

			_ = c.handleRecord(ctx, record.Value)
			processed++
		})

		// An interrupted batch is redelivered to the next group member.
		if processed == 0 || ctx.Err() != nil {
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			logger.WarnKV(ctx, "Failed to commit offsets", "error", err)
		}
	}
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// handleRecord decodes one record and ingests it. Malformed records are
// skipped; ingestion failures are retried until they succeed or ctx ends, so
// a store outage does not drop readings.
func (c *Consumer) handleRecord(ctx context.Context, value []byte) error {
	reading, err := DecodeReading(value)
	if err != nil {
		logger.WarnKV(ctx, "Skipping record", "error", err)

		return err
	}

	for attempt := 1; ; attempt++ {
		result, err := c.ingester.IngestReading(ctx, reading)
		if err == nil {
			if result.FireAlert {
				logger.InfoKV(ctx, "Fire alert from broker reading",
					"temperature", reading.Temperature,
					"smoke_level", reading.SmokeLevel,
					"paused", result.Paused)
			}

			return nil
		}

		if errors.Is(err, fire.ErrInvalidReading) {
			logger.WarnKV(ctx, "Skipping invalid reading", "error", err)

			return err
		}

		logger.ErrorKV(ctx, "Failed to ingest reading, retrying", "attempt", attempt, "error", err)

		if err = sleep(ctx, c.backoff(attempt)); err != nil {
			return err
		}
	}
}

// record is the JSON published by sensors.
type record struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	SmokeLevel  *float64   `json:"smoke_level"`
	Timestamp   *time.Time `json:"timestamp"`
}

// DecodeReading parses one record value.
func DecodeReading(value []byte) (fire.SensorReading, error) {
	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return fire.SensorReading{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	if r.Temperature == nil || r.Humidity == nil || r.SmokeLevel == nil {
		return fire.SensorReading{}, fmt.Errorf("%w: temperature, humidity and smoke_level are required", ErrMalformedRecord)
	}

	reading := fire.SensorReading{
		Temperature: *r.Temperature,
		Humidity:    *r.Humidity,
		SmokeLevel:  *r.SmokeLevel,
	}

	if r.Timestamp != nil {
		reading.Timestamp = *r.Timestamp
	}

	return reading, nil
}

func linearBackoff(attempt int) time.Duration {
	return min(time.Duration(attempt)*time.Second, maxRetryBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
