package graspable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/metrics"
	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/spatialmath"
	"go.viam.com/graspable/topic"
)

type collector[T any] struct {
	mu   sync.Mutex
	msgs []T
}

func (c *collector[T]) handle(ctx context.Context, msg T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

type nodeFixture struct {
	markers    *topic.Topic[*ros.Marker]
	transforms *topic.Topic[*referenceframe.Transform]
	poses      *topic.Topic[spatialmath.Pose]
	tfOut      *collector[*referenceframe.Transform]
	poseOut    *collector[spatialmath.Pose]
}

func newNodeFixture(t *testing.T, logger logging.Logger) *nodeFixture {
	t.Helper()
	f := &nodeFixture{
		markers:    topic.New[*ros.Marker](DefaultMarkerTopic, logger),
		transforms: topic.New[*referenceframe.Transform](DefaultTransformTopic, logger),
		poses:      topic.New[spatialmath.Pose](DefaultPoseTopic, logger),
		tfOut:      &collector[*referenceframe.Transform]{},
		poseOut:    &collector[spatialmath.Pose]{},
	}
	_, err := f.transforms.Subscribe("test", 100, f.tfOut.handle)
	test.That(t, err, test.ShouldBeNil)
	_, err = f.poses.Subscribe("test", 100, f.poseOut.handle)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		f.markers.Close()
		f.transforms.Close()
		f.poses.Close()
	})
	return f
}

func (f *nodeFixture) publish(t *testing.T, markers ...*ros.Marker) {
	t.Helper()
	for _, m := range markers {
		test.That(t, f.markers.Publish(context.Background(), m), test.ShouldBeNil)
	}
}

func TestNodeRequiresExplicitPairing(t *testing.T) {
	logger := logging.NewTestLogger(t)
	f := newNodeFixture(t, logger)

	_, err := NewNode(&Config{Mode: ModeContinuous}, f.markers, f.transforms, f.poses, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewNode(&Config{Discriminator: DiscriminatorShapeType}, f.markers, f.transforms, f.poses, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, f.markers.NumSubscribers(), test.ShouldEqual, 0)
}

func TestNodeContinuousMode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	f := newNodeFixture(t, logger)
	mock := clock.NewMock()
	m := metrics.NewRelay()

	cfg := &Config{Mode: ModeContinuous, Discriminator: DiscriminatorLateralOffset, PublishInterval: testInterval}
	node, err := NewNode(cfg, f.markers, f.transforms, f.poses, logger, WithClock(mock), WithMetrics(m))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, node.Config().ParentFrame, test.ShouldEqual, DefaultParentFrame)
	test.That(t, node.Metrics(), test.ShouldEqual, m)
	test.That(t, f.markers.NumSubscribers(), test.ShouldEqual, 1)

	f.publish(t,
		newMarker("table_1", 0.41, 0.90, ros.MarkerCylinder),
		newMarker("surface_2_object_5_axes", 0.30, 0.90, ros.MarkerCylinder),
	)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, testutil.ToFloat64(m.MarkersEvaluated.WithLabelValues(metrics.VerdictRejected, ReasonLateralOffset)), test.ShouldEqual, 1)
	})
	time.Sleep(2 * testInterval)
	test.That(t, node.State(), test.ShouldEqual, Searching)
	test.That(t, f.tfOut.Len(), test.ShouldEqual, 0)
	test.That(t, f.poseOut.Len(), test.ShouldEqual, 0)

	accepted := graspableMarker()
	f.publish(t, accepted)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, node.State(), test.ShouldEqual, Acquired)
		test.That(tb, f.tfOut.Len(), test.ShouldBeGreaterThanOrEqualTo, 3)
		test.That(tb, f.poseOut.Len(), test.ShouldBeGreaterThanOrEqualTo, 3)
	})
	test.That(t, *node.Acquired(), test.ShouldResemble, *accepted)
	// Latched: the node no longer listens to markers.
	test.That(t, f.markers.NumSubscribers(), test.ShouldEqual, 0)

	f.publish(t, newMarker("surface_9_object_9_axes", 0.40, 0.91, ros.MarkerCylinder))
	test.That(t, node.Acquired().Ns, test.ShouldEqual, accepted.Ns)

	test.That(t, node.Close(context.Background()), test.ShouldBeNil)
	test.That(t, node.Close(context.Background()), test.ShouldBeNil)
	emitted := testutil.ToFloat64(m.TransformsEmitted)
	time.Sleep(3 * testInterval)
	test.That(t, testutil.ToFloat64(m.TransformsEmitted), test.ShouldEqual, emitted)
	test.That(t, testutil.ToFloat64(m.Acquisitions), test.ShouldEqual, 1)
}

func TestNodeEventTriggeredMode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	f := newNodeFixture(t, logger)
	m := metrics.NewRelay()

	node, err := NewNode(EventTriggeredReferenceConfig(), f.markers, f.transforms, f.poses, logger, WithMetrics(m))
	test.That(t, err, test.ShouldBeNil)
	defer node.Close(context.Background())

	f.publish(t,
		newMarker("surface_1_object_1_axes", 0.41, 0.90, ros.MarkerCube),
		newMarker("surface_1_object_2_axes", 0.10, 0.90, ros.MarkerCylinder),
		newMarker("table_1", 0.41, 0.90, ros.MarkerCylinder),
		newMarker("surface_1_object_3_axes", 0.70, 0.93, ros.MarkerCylinder),
	)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, f.tfOut.Len(), test.ShouldEqual, 2)
	})
	test.That(t, node.State(), test.ShouldEqual, Acquired)
	test.That(t, node.Acquired().Ns, test.ShouldEqual, "surface_1_object_2_axes")
	// Still listening, and no pose topic and no periodic task in this mode.
	test.That(t, f.markers.NumSubscribers(), test.ShouldEqual, 1)
	time.Sleep(50 * time.Millisecond)
	test.That(t, f.tfOut.Len(), test.ShouldEqual, 2)
	test.That(t, f.poseOut.Len(), test.ShouldEqual, 0)

	f.tfOut.mu.Lock()
	first, second := f.tfOut.msgs[0], f.tfOut.msgs[1]
	f.tfOut.mu.Unlock()
	test.That(t, first.Pose.Point().Y, test.ShouldEqual, 0.10)
	test.That(t, second.Pose.Point().Y, test.ShouldEqual, 0.70)
	test.That(t, testutil.ToFloat64(m.TransformsEmitted), test.ShouldEqual, 2)
}

func TestNodeNeverAcquiresWithoutMatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	f := newNodeFixture(t, logger)

	node, err := NewNode(ContinuousReferenceConfig(), f.markers, f.transforms, f.poses, logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 20; i++ {
		f.publish(t, newMarker("surface_1_object_1_axes", 0.0, 0.91, ros.MarkerCylinder))
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		evaluated := testutil.ToFloat64(node.Metrics().MarkersEvaluated.WithLabelValues(metrics.VerdictRejected, ReasonLateralOffset))
		test.That(tb, evaluated, test.ShouldEqual, 20)
	})
	test.That(t, node.State(), test.ShouldEqual, Searching)
	test.That(t, node.Acquired(), test.ShouldBeNil)
	test.That(t, f.tfOut.Len(), test.ShouldEqual, 0)
	test.That(t, node.Close(context.Background()), test.ShouldBeNil)
	test.That(t, f.markers.NumSubscribers(), test.ShouldEqual, 0)
}

func TestNodeKeepsFirstAcceptableMarkerOfABurst(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	f := newNodeFixture(t, logger)

	node, err := NewNode(ContinuousReferenceConfig(), f.markers, f.transforms, f.poses, logger)
	test.That(t, err, test.ShouldBeNil)
	defer node.Close(context.Background())

	first := graspableMarker()
	first.ID = 7
	burst := []*ros.Marker{first}
	for i := 0; i < 25; i++ {
		burst = append(burst, newMarker("table_1", 0.41, 0.90, ros.MarkerCylinder))
	}
	f.publish(t, burst...)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, node.State(), test.ShouldEqual, Acquired)
		test.That(tb, f.tfOut.Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	test.That(t, node.Acquired().ID, test.ShouldEqual, int32(7))
	test.That(t, logs.FilterMessage("subscriber backlog full, dropping oldest message").Len(), test.ShouldEqual, 0)
}
