package graspable

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/spatialmath"
)

const testInterval = 20 * time.Millisecond

type broadcasterFixture struct {
	broadcaster *Broadcaster
	transforms  *fakePublisher[*referenceframe.Transform]
	poses       *fakePublisher[spatialmath.Pose]
	clock       *clock.Mock
	metrics     *metrics.Relay
}

func newBroadcasterFixture(t *testing.T) *broadcasterFixture {
	t.Helper()
	f := &broadcasterFixture{
		transforms: &fakePublisher[*referenceframe.Transform]{},
		poses:      &fakePublisher[spatialmath.Pose]{},
		clock:      clock.NewMock(),
		metrics:    metrics.NewRelay(),
	}
	f.clock.Set(time.Unix(1700000000, 0))
	b, err := NewBroadcaster(BroadcasterConfig{
		ParentFrame: DefaultParentFrame,
		ChildFrame:  DefaultChildFrame,
		Interval:    testInterval,
		Clock:       f.clock,
	}, f.transforms, f.poses, logging.NewTestLogger(t), f.metrics)
	test.That(t, err, test.ShouldBeNil)
	f.broadcaster = b
	return f
}

func TestNewBroadcasterValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewBroadcaster(BroadcasterConfig{ParentFrame: "a", ChildFrame: "b"}, nil, nil, logger, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewBroadcaster(BroadcasterConfig{ChildFrame: "b"}, &fakePublisher[*referenceframe.Transform]{}, nil, logger, nil)
	test.That(t, err, test.ShouldBeError, referenceframe.ErrEmptyFrameName)

	b, err := NewBroadcaster(BroadcasterConfig{ParentFrame: "a", ChildFrame: "b"}, &fakePublisher[*referenceframe.Transform]{}, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.cfg.Interval, test.ShouldEqual, DefaultPublishInterval)
	test.That(t, b.Close(context.Background()), test.ShouldBeNil)
}

func TestGraspableObjectPoseIsVerbatim(t *testing.T) {
	f := newBroadcasterFixture(t)
	defer f.broadcaster.Close(context.Background())

	marker := graspableMarker()
	tf, err := f.broadcaster.GraspableObjectPose(marker)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.Parent, test.ShouldEqual, "pc_cam_base_link")
	test.That(t, tf.Child, test.ShouldEqual, "graspable_object")
	test.That(t, ros.PoseFromSpatial(tf.Pose), test.ShouldResemble, marker.Pose)
}

func TestContinuousBroadcast(t *testing.T) {
	f := newBroadcasterFixture(t)
	ctx := context.Background()

	test.That(t, f.broadcaster.Current(), test.ShouldBeNil)
	time.Sleep(2 * testInterval)
	test.That(t, f.transforms.Len(), test.ShouldEqual, 0)

	marker := graspableMarker()
	test.That(t, f.broadcaster.Start(marker), test.ShouldBeNil)
	test.That(t, f.broadcaster.Start(marker), test.ShouldBeError, ErrAlreadyStarted)
	test.That(t, f.broadcaster.Current(), test.ShouldNotBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, f.transforms.Len(), test.ShouldBeGreaterThanOrEqualTo, 3)
		test.That(tb, f.poses.Len(), test.ShouldBeGreaterThanOrEqualTo, 3)
	})

	test.That(t, f.broadcaster.Close(ctx), test.ShouldBeNil)
	test.That(t, f.broadcaster.Close(ctx), test.ShouldBeNil)
	emitted := f.transforms.Len()
	time.Sleep(3 * testInterval)
	test.That(t, f.transforms.Len(), test.ShouldEqual, emitted)

	for _, tf := range f.transforms.Messages() {
		test.That(t, tf.Stamp.Equal(f.clock.Now()), test.ShouldBeTrue)
		test.That(t, tf.Parent, test.ShouldEqual, DefaultParentFrame)
		test.That(t, tf.Child, test.ShouldEqual, DefaultChildFrame)
		test.That(t, ros.PoseFromSpatial(tf.Pose), test.ShouldResemble, marker.Pose)
	}
	for _, p := range f.poses.Messages() {
		test.That(t, ros.PoseFromSpatial(p), test.ShouldResemble, marker.Pose)
	}
	test.That(t, testutil.ToFloat64(f.metrics.TransformsEmitted), test.ShouldEqual, emitted)

	test.That(t, f.broadcaster.Start(marker), test.ShouldBeError, ErrBroadcasterClosed)
}

func TestContinuousBroadcastCadence(t *testing.T) {
	f := newBroadcasterFixture(t)
	defer f.broadcaster.Close(context.Background())

	start := time.Now()
	test.That(t, f.broadcaster.Start(graspableMarker()), test.ShouldBeNil)
	// The first emission happens right away, the rest once per interval.
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, f.transforms.Len(), test.ShouldBeGreaterThanOrEqualTo, 4)
	})
	test.That(t, time.Since(start) >= 3*testInterval, test.ShouldBeTrue)
}

func TestContinuousBroadcastKeepsGoingOnPublishErrors(t *testing.T) {
	f := newBroadcasterFixture(t)
	defer f.broadcaster.Close(context.Background())
	f.poses.err = errors.New("pose topic down")

	test.That(t, f.broadcaster.Start(graspableMarker()), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, f.transforms.Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
		test.That(tb, testutil.ToFloat64(f.metrics.PublishFailures.WithLabelValues("pose")), test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	test.That(t, f.poses.Len(), test.ShouldEqual, 0)
}

func TestEmitSendsOneTransform(t *testing.T) {
	f := newBroadcasterFixture(t)
	ctx := context.Background()

	marker := graspableMarker()
	test.That(t, f.broadcaster.Emit(ctx, marker), test.ShouldBeNil)
	f.clock.Add(time.Second)
	test.That(t, f.broadcaster.Emit(ctx, marker), test.ShouldBeNil)

	time.Sleep(2 * testInterval)
	msgs := f.transforms.Messages()
	test.That(t, msgs, test.ShouldHaveLength, 2)
	test.That(t, msgs[1].Stamp.Sub(msgs[0].Stamp), test.ShouldEqual, time.Second)
	test.That(t, f.poses.Len(), test.ShouldEqual, 0)
	test.That(t, f.broadcaster.Current(), test.ShouldBeNil)

	f.transforms.err = errors.New("tf down")
	test.That(t, f.broadcaster.Emit(ctx, marker), test.ShouldBeError, f.transforms.err)

	test.That(t, f.broadcaster.Close(ctx), test.ShouldBeNil)
	test.That(t, f.broadcaster.Emit(ctx, marker), test.ShouldBeError, ErrBroadcasterClosed)
}

func TestEmitLogsMovedObject(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	transforms := &fakePublisher[*referenceframe.Transform]{}
	b, err := NewBroadcaster(BroadcasterConfig{ParentFrame: DefaultParentFrame, ChildFrame: DefaultChildFrame},
		transforms, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	defer b.Close(context.Background())
	ctx := context.Background()

	test.That(t, b.Emit(ctx, graspableMarker()), test.ShouldBeNil)
	test.That(t, b.Emit(ctx, graspableMarker()), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("graspable object moved").Len(), test.ShouldEqual, 0)

	test.That(t, b.Emit(ctx, newMarker("surface_2_object_5_axes", 0.70, 0.90, ros.MarkerCylinder)), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("graspable object moved").Len(), test.ShouldEqual, 1)
	test.That(t, transforms.Len(), test.ShouldEqual, 3)
}
