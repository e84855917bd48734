// Package graspable picks one trustworthy graspable object out of a stream of detected-object
// markers and republishes its pose as a coordinate-frame transform and a pose message.
//
// Markers flow through a Latch, which evaluates them against a Policy until one is accepted. The
// accepted marker is then handed to a Broadcaster, which either republishes it on a fixed cadence
// (continuous mode) or emits one transform per accepted marker (event-triggered mode).
package graspable

import (
	"context"
	"time"

	"go.viam.com/graspable/ros"
)

// Reference values of the acceptance policy and the relay wiring.
const (
	DefaultNamespacePattern  = `surface_\d*_object_\d*_axes`
	DefaultExpectedHeight    = 0.91
	DefaultHeightTolerance   = 0.06
	DefaultExpectedLateral   = 0.4
	DefaultLateralTolerance  = 0.04
	DefaultRequiredShapeType = ros.MarkerCylinder

	DefaultParentFrame     = "pc_cam_base_link"
	DefaultChildFrame      = "graspable_object"
	DefaultMarkerTopic     = "surface_objects"
	DefaultPoseTopic       = "graspable_object_pose"
	DefaultTransformTopic  = "/tf"
	DefaultPublishInterval = time.Second
	DefaultPoseQueueSize   = 10
)

// Publisher is an outbound channel, e.g. a topic.Topic.
type Publisher[T any] interface {
	Publish(ctx context.Context, msg T) error
}
