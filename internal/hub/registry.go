package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/logger"
)

// DefaultDeliveryTimeout bounds a single delivery when none is configured.
const DefaultDeliveryTimeout = 2 * time.Second

// ErrClosed is returned by Join after the registry was closed.
var ErrClosed = errors.New("registry closed")

// Sink is the delivery side of one subscriber connection.
type Sink interface {
	// Deliver hands one encoded message to the subscriber. It must return
	// once ctx is done.
	Deliver(ctx context.Context, payload []byte) error
	// Close releases the connection. It may be called more than once.
	Close() error
}

// Handle identifies a subscriber.
type Handle uuid.UUID

// String returns the textual handle.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// Subscriber is a registered connection.
type Subscriber struct {
	Handle   Handle
	Group    alert.Group
	JoinedAt time.Time

	sink Sink
}

// Report summarizes one Publish call.
type Report struct {
	Delivered int
	Pruned    int
}

// groupSet is the membership of one group.
type groupSet struct {
	mu      sync.RWMutex
	members map[Handle]*Subscriber
}

// Registry owns the subscriber groups. It is safe for concurrent use.
type Registry struct {
	// groups is fixed at construction; only the sets inside it change.
	groups map[alert.Group]*groupSet
	// timeout bounds each delivery.
	timeout time.Duration
	// now is the clock used for greetings and join times.
	now func() time.Time

	closeMu sync.RWMutex
	closed  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithDeliveryTimeout sets the per-subscriber delivery budget.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry with both groups.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		groups:  make(map[alert.Group]*groupSet, len(alert.Groups())),
		timeout: DefaultDeliveryTimeout,
		now:     time.Now,
	}

	for _, g := range alert.Groups() {
		r.groups[g] = &groupSet{members: make(map[Handle]*Subscriber)}
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Join greets sink with connection_established and registers it under group.
// The greeting goes to the new subscriber only. If it cannot be delivered
// the sink is closed, nothing is registered and the error is returned.
func (r *Registry) Join(ctx context.Context, group alert.Group, sink Sink) (Handle, error) {
	set, err := r.set(group)
	if err != nil {
		return Handle{}, err
	}

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()

	if r.closed {
		return Handle{}, ErrClosed
	}

	sub := &Subscriber{
		Handle:   Handle(uuid.New()),
		Group:    group,
		JoinedAt: r.now(),
		sink:     sink,
	}

	payload, err := alert.Encode(alert.NewConnectionEstablished(group, sub.JoinedAt))
	if err != nil {
		return Handle{}, fmt.Errorf("encode greeting: %w", err)
	}

	// Greet before registering so no broadcast can overtake the greeting.
	if err = r.deliver(ctx, sub, payload); err != nil {
		_ = sink.Close() //nolint:errcheck // The greeting error is the one worth returning.

		return Handle{}, fmt.Errorf("greet subscriber: %w", err)
	}

	set.mu.Lock()
	set.members[sub.Handle] = sub
	set.mu.Unlock()

	logger.InfoKV(ctx, "Subscriber joined", "group", group, "handle", sub.Handle)

	return sub.Handle, nil
}

// Leave removes a subscriber. Unknown or already removed handles are ignored.
func (r *Registry) Leave(ctx context.Context, handle Handle) {
	for group, set := range r.groups {
		if sub := r.remove(set, handle); sub != nil {
			logger.InfoKV(ctx, "Subscriber left", "group", group, "handle", handle)

			return
		}
	}
}

// Publish delivers msg to every current member of group and prunes members
// whose delivery failed. Delivery errors never reach the caller.
func (r *Registry) Publish(ctx context.Context, group alert.Group, msg alert.Message) Report {
	set, err := r.set(group)
	if err != nil {
		logger.ErrorKV(ctx, "Publish to unknown group", "group", group, "error", err)

		return Report{}
	}

	payload, err := alert.Encode(msg)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode message", "type", msg.Kind(), "error", err)

		return Report{}
	}

	members := set.snapshot()
	if len(members) == 0 {
		return Report{}
	}

	var (
		wg     sync.WaitGroup
		failed = make([]error, len(members))
	)

	for i, sub := range members {
		wg.Add(1)

		go func() {
			defer wg.Done()

			failed[i] = r.deliver(ctx, sub, payload)
		}()
	}

	wg.Wait()

	var report Report

	for i, sub := range members {
		if failed[i] == nil {
			report.Delivered++

			continue
		}

		if r.remove(set, sub.Handle) != nil {
			report.Pruned++

			logger.WarnKV(ctx, "Subscriber pruned after failed delivery",
				"group", group, "handle", sub.Handle, "type", msg.Kind(), "error", failed[i])
		}
	}

	logger.DebugKV(ctx, "Message published",
		"group", group, "type", msg.Kind(), "delivered", report.Delivered, "pruned", report.Pruned)

	return report
}

// Count returns the number of members in group.
func (r *Registry) Count(group alert.Group) int {
	set, err := r.set(group)
	if err != nil {
		return 0
	}

	set.mu.RLock()
	defer set.mu.RUnlock()

	return len(set.members)
}

// Subscribers returns a copy of the members of group.
func (r *Registry) Subscribers(group alert.Group) []Subscriber {
	set, err := r.set(group)
	if err != nil {
		return nil
	}

	members := set.snapshot()
	result := make([]Subscriber, 0, len(members))

	for _, sub := range members {
		result = append(result, Subscriber{Handle: sub.Handle, Group: sub.Group, JoinedAt: sub.JoinedAt})
	}

	return result
}

// Close removes and closes every subscriber. Later joins fail with ErrClosed.
func (r *Registry) Close() {
	r.closeMu.Lock()
	r.closed = true
	r.closeMu.Unlock()

	for _, set := range r.groups {
		set.mu.Lock()
		members := set.members
		set.members = make(map[Handle]*Subscriber)
		set.mu.Unlock()

		for _, sub := range members {
			_ = sub.sink.Close() //nolint:errcheck // Shutting down, nothing to report to.
		}
	}
}

func (r *Registry) set(group alert.Group) (*groupSet, error) {
	set, ok := r.groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", alert.ErrInvalidGroup, group)
	}

	return set, nil
}

// deliver runs one delivery under the registry budget. The producer's
// cancellation does not reach the subscriber, only the budget does.
func (r *Registry) deliver(ctx context.Context, sub *Subscriber, payload []byte) error {
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	return sub.sink.Deliver(deliverCtx, payload)
}

// remove drops handle from set and closes its sink. It returns the removed
// subscriber or nil when the handle was not a member.
func (r *Registry) remove(set *groupSet, handle Handle) *Subscriber {
	set.mu.Lock()
	sub, ok := set.members[handle]
	delete(set.members, handle)
	set.mu.Unlock()

	if !ok {
		return nil
	}

	_ = sub.sink.Close() //nolint:errcheck // The subscriber is gone either way.

	return sub
}

func (s *groupSet) snapshot() []*Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Subscriber, 0, len(s.members))
	for _, sub := range s.members {
		result = append(result, sub)
	}

	return result
}
