package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/notify"
	"github.com/oshokin/fire-watch/internal/repository/store"
	"github.com/oshokin/fire-watch/internal/vision"
)

// DefaultNotifyTimeout bounds one notification attempt.
const DefaultNotifyTimeout = 10 * time.Second

// SensorPolicy decides what happens to readings once a fire is confirmed.
type SensorPolicy string

// Supported sensor policies.
const (
	// PolicyPauseWhenConfirmed skips readings while the latch is set.
	PolicyPauseWhenConfirmed SensorPolicy = "pause_when_confirmed"
	// PolicyAlwaysProcess evaluates and fans out every reading.
	PolicyAlwaysProcess SensorPolicy = "always_process"
)

// ErrInvalidPolicy is returned for unknown policy names.
var ErrInvalidPolicy = errors.New("invalid sensor policy")

// ParseSensorPolicy converts a configuration value. Empty means the default.
func ParseSensorPolicy(s string) (SensorPolicy, error) {
	switch SensorPolicy(s) {
	case "":
		return PolicyPauseWhenConfirmed, nil
	case PolicyPauseWhenConfirmed, PolicyAlwaysProcess:
		return SensorPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Publisher fans a message out to one subscriber group.
type Publisher interface {
	Publish(ctx context.Context, group alert.Group, msg alert.Message) hub.Report
}

// Orchestrator runs the alert pipeline. It is safe for concurrent use.
type Orchestrator struct {
	repo      store.Repository
	publisher Publisher
	latch     *fire.Latch
	notifier  notify.Notifier
	detector  vision.Detector

	policy        SensorPolicy
	notifyTimeout time.Duration
	now           func() time.Time

	// thresholdsMu serializes read-modify-write of the thresholds record.
	thresholdsMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the email notifier. The default only logs.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithDetector sets the vision collaborator used by HandleImage.
func WithDetector(d vision.Detector) Option {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// WithSensorPolicy sets the behavior for readings after confirmation.
func WithSensorPolicy(p SensorPolicy) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithNotifyTimeout bounds each notification attempt.
func WithNotifyTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.notifyTimeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New wires the orchestrator to its collaborators.
func New(repository store.Repository, publisher Publisher, latch *fire.Latch, opts ...Option) (*Orchestrator, error) {
	switch {
	case repository == nil:
		return nil, errors.New("repository must be provided")
	case publisher == nil:
		return nil, errors.New("publisher must be provided")
	case latch == nil:
		return nil, errors.New("fire latch must be provided")
	}

	o := &Orchestrator{
		repo:          repository,
		publisher:     publisher,
		latch:         latch,
		notifier:      notify.LogNotifier{},
		policy:        PolicyPauseWhenConfirmed,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Policy returns the active sensor policy.
func (o *Orchestrator) Policy() SensorPolicy {
	return o.policy
}

// Ping checks the store.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.repo.Ping(ctx)
}

// confirm flips the latch and records the transition. The status log is an
// audit trail, so failing to write it does not stop the alert.
func (o *Orchestrator) confirm(ctx context.Context, source fire.Source, at time.Time, details string) bool {
	if !o.latch.Confirm(source, at) {
		return false
	}

	logger.WarnKV(ctx, "Fire confirmed", "source", source, "details", details)

	entry := &fire.StatusLogEntry{
		Status:    fire.StatusConfirmed,
		Source:    source,
		Details:   details,
		Timestamp: at,
	}

	if err := o.repo.AppendStatusLog(ctx, entry); err != nil {
		logger.ErrorKV(ctx, "Failed to record status change", "source", source, "error", err)
	}

	return true
}

// notify sends one email bounded by the notify timeout. The caller's
// cancellation does not cut the attempt short.
func (o *Orchestrator) notify(ctx context.Context, subject, body string) notify.Result {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.notifyTimeout)
	defer cancel()

	return o.notifier.Send(notifyCtx, subject, body)
}
