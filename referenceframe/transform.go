// Package referenceframe describes named coordinate frames and the transforms between them.
package referenceframe

import (
	"time"

	commonpb "go.viam.com/api/common/v1"

	"go.viam.com/graspable/spatialmath"
)

// Transform places a child frame relative to a parent frame at a point in time.
type Transform struct {
	Parent string
	Child  string
	Pose   spatialmath.Pose
	Stamp  time.Time
}

// NewTransform returns a transform of child in parent. The pose is taken as is; no unit or axis
// remapping happens here.
func NewTransform(parent, child string, pose spatialmath.Pose) (*Transform, error) {
	if parent == "" || child == "" {
		return nil, ErrEmptyFrameName
	}
	if parent == child {
		return nil, NewSameFrameError(parent)
	}
	if pose == nil {
		pose = spatialmath.NewZeroPose()
	}
	return &Transform{Parent: parent, Child: child, Pose: pose}, nil
}

// Stamped returns a copy of the transform carrying the given timestamp.
func (t *Transform) Stamped(stamp time.Time) *Transform {
	return &Transform{Parent: t.Parent, Child: t.Child, Pose: t.Pose, Stamp: stamp}
}

// PoseInFrameToProtobuf converts a pose expressed in meters within frame into the Viam API representation.
func PoseInFrameToProtobuf(frame string, pose spatialmath.Pose) *commonpb.PoseInFrame {
	return &commonpb.PoseInFrame{
		ReferenceFrame: frame,
		Pose:           spatialmath.PoseToProtobuf(spatialmath.ScalePose(pose, spatialmath.MetersToMillimeters)),
	}
}

// ToProtobuf converts the transform into the Viam API representation, with the child as the
// reference frame observed from the parent.
func (t *Transform) ToProtobuf() *commonpb.Transform {
	return &commonpb.Transform{
		ReferenceFrame:      t.Child,
		PoseInObserverFrame: PoseInFrameToProtobuf(t.Parent, t.Pose),
	}
}
