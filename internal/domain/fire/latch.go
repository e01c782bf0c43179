package fire

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source names the evidence that confirmed a fire.
type Source string

// Known confirmation sources.
const (
	SourceSensor   Source = "sensor"
	SourceVision   Source = "vision"
	SourceOperator Source = "operator"
)

// Latch records whether a fire has been confirmed. It starts clear and once
// confirmed stays so until Reset is called by an operator.
type Latch struct {
	confirmed atomic.Bool

	// mu guards the metadata of the last transition.
	mu          sync.RWMutex
	source      Source
	confirmedAt time.Time
	transitions uint64
}

// NewLatch returns a clear latch.
func NewLatch() *Latch {
	return new(Latch)
}

// Confirm sets the latch. Only the caller that actually flipped it gets true.
func (l *Latch) Confirm(source Source, at time.Time) bool {
	if !l.confirmed.CompareAndSwap(false, true) {
		return false
	}

	l.mu.Lock()
	l.source = source
	l.confirmedAt = at
	l.transitions++
	l.mu.Unlock()

	return true
}

// IsConfirmed reports the current latch value.
func (l *Latch) IsConfirmed() bool {
	return l.confirmed.Load()
}

// Reset clears the latch and reports whether it was set.
func (l *Latch) Reset() bool {
	if !l.confirmed.CompareAndSwap(true, false) {
		return false
	}

	l.mu.Lock()
	l.source = ""
	l.confirmedAt = time.Time{}
	l.mu.Unlock()

	return true
}

// Snapshot is a copy of the latch for read paths.
type Snapshot struct {
	Confirmed   bool      `json:"confirmed"`
	Source      Source    `json:"source,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at,omitzero"`
	Transitions uint64    `json:"transitions"`
}

// Snapshot returns the current value with its transition metadata.
func (l *Latch) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Snapshot{
		Confirmed:   l.confirmed.Load(),
		Source:      l.source,
		ConfirmedAt: l.confirmedAt,
		Transitions: l.transitions,
	}
}
