package graspable

import (
	"context"

	"go.uber.org/atomic"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/ros"
)

// AcquisitionState is the state of a Latch.
type AcquisitionState int

const (
	// Searching is the initial state: no marker has been accepted yet.
	Searching AcquisitionState = iota
	// Acquired is terminal: a marker has been accepted and is owned by the latch.
	Acquired
)

func (s AcquisitionState) String() string {
	if s == Acquired {
		return "acquired"
	}
	return "searching"
}

// LatchHooks are the side effects of accepting markers. Either may be nil.
type LatchHooks struct {
	// OnAcquire runs exactly once, for the marker that moved the latch to Acquired.
	OnAcquire func(ctx context.Context, marker *ros.Marker)
	// OnAccept runs once per accepted marker in event-triggered mode, including the first.
	OnAccept func(ctx context.Context, marker *ros.Marker)
}

// Latch locks onto the first marker accepted by its policy.
type Latch struct {
	policy  *Policy
	mode    Mode
	hooks   LatchHooks
	logger  logging.Logger
	metrics *metrics.Relay

	// acquired is written once, on the Searching to Acquired transition, and only read after.
	acquired atomic.Pointer[ros.Marker]
}

// NewLatch returns a latch in the Searching state.
func NewLatch(policy *Policy, mode Mode, hooks LatchHooks, logger logging.Logger, m *metrics.Relay) *Latch {
	if m == nil {
		m = metrics.NewRelay()
	}
	return &Latch{policy: policy, mode: mode, hooks: hooks, logger: logger, metrics: m}
}

// State returns the current acquisition state.
func (l *Latch) State() AcquisitionState {
	if l.acquired.Load() == nil {
		return Searching
	}
	return Acquired
}

// Acquired returns the accepted marker, or nil while searching.
func (l *Latch) Acquired() *ros.Marker {
	return l.acquired.Load()
}

// OnMarkerEvent handles one inbound marker.
func (l *Latch) OnMarkerEvent(ctx context.Context, marker *ros.Marker) {
	if l.mode == ModeContinuous && l.acquired.Load() != nil {
		l.metrics.MarkersIgnored.Inc()
		return
	}

	eval := l.policy.Evaluate(marker)
	l.logger.Debugw(eval.Verdict.String(), eval.KeysAndValues()...)
	l.metrics.RecordEvaluation(eval.Accepted(), eval.Reason)
	if !eval.Accepted() {
		return
	}

	// Keep our own copy so later changes by the sender cannot leak into the relayed pose.
	accepted := *marker
	if l.acquired.CompareAndSwap(nil, &accepted) {
		l.metrics.Acquisitions.Inc()
		l.logger.Infow("acquired graspable object", eval.KeysAndValues()...)
		if l.hooks.OnAcquire != nil {
			l.hooks.OnAcquire(ctx, &accepted)
		}
	} else if l.mode == ModeContinuous {
		return
	}

	if l.mode == ModeEventTriggered && l.hooks.OnAccept != nil {
		l.hooks.OnAccept(ctx, &accepted)
	}
}
