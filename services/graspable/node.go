package graspable

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/spatialmath"
	"go.viam.com/graspable/topic"
)

// Option customizes a Node.
type Option func(*nodeOptions)

type nodeOptions struct {
	clock   clock.Clock
	metrics *metrics.Relay
}

// WithClock stamps transforms with c instead of the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *nodeOptions) { o.clock = c }
}

// WithMetrics records into m instead of a private set of counters.
func WithMetrics(m *metrics.Relay) Option {
	return func(o *nodeOptions) { o.metrics = m }
}

// Node wires a Latch between the marker topic and a Broadcaster.
type Node struct {
	cfg         Config
	logger      logging.Logger
	metrics     *metrics.Relay
	latch       *Latch
	broadcaster *Broadcaster

	mu     sync.Mutex
	sub    *topic.Subscription[*ros.Marker]
	closed bool
}

// NewNode validates cfg, subscribes to markers and returns a node that is Searching.
func NewNode(
	cfg *Config,
	markers *topic.Topic[*ros.Marker],
	transforms Publisher[*referenceframe.Transform],
	poses Publisher[spatialmath.Pose],
	logger logging.Logger,
	opts ...Option,
) (*Node, error) {
	if err := cfg.Validate("graspable"); err != nil {
		return nil, err
	}
	var options nodeOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.metrics == nil {
		options.metrics = metrics.NewRelay()
	}

	n := &Node{cfg: *cfg, logger: logger, metrics: options.metrics}
	n.cfg.ApplyDefaults()

	policy, err := NewPolicy(&n.cfg)
	if err != nil {
		return nil, err
	}
	if n.cfg.Mode == ModeEventTriggered {
		// Event-triggered deployments only broadcast the frame.
		poses = nil
	}
	n.broadcaster, err = NewBroadcaster(BroadcasterConfig{
		ParentFrame: n.cfg.ParentFrame,
		ChildFrame:  n.cfg.ChildFrame,
		Interval:    n.cfg.PublishInterval,
		Clock:       options.clock,
	}, transforms, poses, logger.Sublogger("broadcaster"), n.metrics)
	if err != nil {
		return nil, err
	}
	n.latch = NewLatch(policy, n.cfg.Mode, LatchHooks{
		OnAcquire: n.onAcquire,
		OnAccept:  n.onAccept,
	}, logger.Sublogger("latch"), n.metrics)

	// Hold the lock so a marker delivered right away sees n.sub set.
	n.mu.Lock()
	defer n.mu.Unlock()
	// Unbounded: dropping a backlogged marker could lose the first acceptable one.
	n.sub, err = markers.Subscribe("graspable", 0, n.latch.OnMarkerEvent)
	if err != nil {
		return nil, multierr.Combine(
			errors.Wrapf(err, "subscribing to %q", markers.Name()),
			n.broadcaster.Close(context.Background()))
	}
	logger.Infow("searching for graspable object",
		"topic", markers.Name(), "mode", n.cfg.Mode, "discriminator", n.cfg.Discriminator)
	return n, nil
}

// Config returns the effective configuration, defaults applied.
func (n *Node) Config() Config {
	return n.cfg
}

// State returns the acquisition state.
func (n *Node) State() AcquisitionState {
	return n.latch.State()
}

// Acquired returns the accepted marker, or nil while searching.
func (n *Node) Acquired() *ros.Marker {
	return n.latch.Acquired()
}

// Metrics returns the node counters.
func (n *Node) Metrics() *metrics.Relay {
	return n.metrics
}

func (n *Node) onAcquire(ctx context.Context, marker *ros.Marker) {
	if n.cfg.Mode != ModeContinuous {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	// Nothing more is needed from the marker stream once latched.
	n.sub.Unsubscribe()
	if err := n.broadcaster.Start(marker); err != nil {
		n.logger.Errorw("failed to start broadcasting graspable object", "error", err)
	}
}

func (n *Node) onAccept(ctx context.Context, marker *ros.Marker) {
	if err := n.broadcaster.Emit(ctx, marker); err != nil && !errors.Is(err, ErrBroadcasterClosed) {
		n.logger.Debugw("transform not emitted", "error", err)
	}
}

// Close unsubscribes from markers and stops broadcasting.
func (n *Node) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.sub.Unsubscribe()
	n.mu.Unlock()

	return multierr.Combine(n.broadcaster.Close(ctx), n.logger.Sync())
}
