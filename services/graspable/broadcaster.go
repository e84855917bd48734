package graspable

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/spatialmath"
)

var (
	// ErrAlreadyStarted is returned when a broadcaster is started a second time.
	ErrAlreadyStarted = errors.New("broadcaster already started")
	// ErrBroadcasterClosed is returned when using a broadcaster after Close.
	ErrBroadcasterClosed = errors.New("broadcaster is closed")
)

// BroadcasterConfig holds the frame names and cadence of a Broadcaster.
type BroadcasterConfig struct {
	ParentFrame string
	ChildFrame  string
	Interval    time.Duration
	// Clock stamps emitted transforms. Defaults to the wall clock.
	Clock clock.Clock
}

// Broadcaster emits the graspable object pose.
type Broadcaster struct {
	cfg        BroadcasterConfig
	transforms Publisher[*referenceframe.Transform]
	poses      Publisher[spatialmath.Pose]
	logger     logging.Logger
	metrics    *metrics.Relay

	cancelCtx  context.Context
	cancelFunc context.CancelFunc

	started atomic.Bool
	current atomic.Pointer[referenceframe.Transform]

	// lastEmitted is the previous transform sent by Emit.
	lastEmitted atomic.Pointer[referenceframe.Transform]

	mu        sync.Mutex
	closed    bool
	scheduler gocron.Scheduler
}

// NewBroadcaster returns a broadcaster writing transforms to transforms and, in continuous mode,
// poses to poses. poses may be nil.
func NewBroadcaster(
	cfg BroadcasterConfig,
	transforms Publisher[*referenceframe.Transform],
	poses Publisher[spatialmath.Pose],
	logger logging.Logger,
	m *metrics.Relay,
) (*Broadcaster, error) {
	if transforms == nil {
		return nil, errors.New("a transform publisher is required")
	}
	if cfg.ParentFrame == "" || cfg.ChildFrame == "" {
		return nil, referenceframe.ErrEmptyFrameName
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPublishInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if m == nil {
		m = metrics.NewRelay()
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Broadcaster{
		cfg:        cfg,
		transforms: transforms,
		poses:      poses,
		logger:     logger,
		metrics:    m,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// GraspableObjectPose reinterprets the marker pose as the child frame placed in the parent frame.
func (b *Broadcaster) GraspableObjectPose(marker *ros.Marker) (*referenceframe.Transform, error) {
	return referenceframe.NewTransform(b.cfg.ParentFrame, b.cfg.ChildFrame, marker.SpatialPose())
}

// Current returns the transform being republished, or nil before Start.
func (b *Broadcaster) Current() *referenceframe.Transform {
	return b.current.Load()
}

// Start begins republishing marker's pose every interval, the first time immediately. It can
// succeed at most once per broadcaster.
func (b *Broadcaster) Start(marker *ros.Marker) error {
	tf, err := b.GraspableObjectPose(marker)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBroadcasterClosed
	}
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	b.current.Store(tf)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "creating publish scheduler")
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(b.cfg.Interval),
		gocron.NewTask(b.publishCurrent),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return multierr.Combine(errors.Wrap(err, "scheduling publish job"), scheduler.Shutdown())
	}
	b.scheduler = scheduler
	scheduler.Start()
	b.logger.Infow("republishing graspable object",
		"parent", tf.Parent, "child", tf.Child, "interval", b.cfg.Interval.String())
	return nil
}

// Emit sends one transform built from marker. No pose is published.
func (b *Broadcaster) Emit(ctx context.Context, marker *ros.Marker) error {
	tf, err := b.GraspableObjectPose(marker)
	if err != nil {
		return err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBroadcasterClosed
	}
	if prev := b.lastEmitted.Swap(tf); prev != nil && !spatialmath.PoseAlmostEqual(prev.Pose, tf.Pose) {
		b.logger.Debugw("graspable object moved", "from", prev.Pose, "to", tf.Pose)
	}
	return b.sendTransform(ctx, tf)
}

func (b *Broadcaster) publishCurrent() {
	tf := b.current.Load()
	if tf == nil || b.cancelCtx.Err() != nil {
		return
	}
	// Failures are already counted and logged; the next run tries again.
	_ = b.sendTransform(b.cancelCtx, tf)
	if b.poses == nil {
		return
	}
	if err := b.poses.Publish(b.cancelCtx, tf.Pose); err != nil {
		b.metrics.PublishFailures.WithLabelValues("pose").Inc()
		b.logger.Warnw("failed to publish graspable object pose", "error", err)
		return
	}
	b.metrics.PosesPublished.Inc()
}

func (b *Broadcaster) sendTransform(ctx context.Context, tf *referenceframe.Transform) error {
	stamped := tf.Stamped(b.cfg.Clock.Now())
	b.logger.Infow("Publish transform",
		"parent", stamped.Parent, "child", stamped.Child, "stamp", stamped.Stamp, "pose", stamped.Pose)
	if err := b.transforms.Publish(ctx, stamped); err != nil {
		b.metrics.PublishFailures.WithLabelValues("transform").Inc()
		b.logger.Warnw("failed to broadcast graspable object transform", "error", err)
		return err
	}
	b.metrics.TransformsEmitted.Inc()
	return nil
}

// Close stops republishing. A run already in progress finishes first.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancelFunc()
	if b.scheduler == nil {
		return nil
	}
	return b.scheduler.Shutdown()
}
