package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
)

// MetersToMillimeters converts marker lengths (meters) into the millimeters the Viam API expects.
const MetersToMillimeters = 1000.

// Pose represents a 6dof pose: a point in space and an orientation.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation Orientation
}

// NewPose makes a Pose from a point and an orientation. A nil orientation means no rotation.
func NewPose(point r3.Vector, orientation Orientation) Pose {
	if orientation == nil {
		orientation = NewZeroOrientation()
	}
	return &pose{point: point, orientation: orientation}
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return NewPose(r3.Vector{}, nil)
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	return p.orientation
}

func (p *pose) String() string {
	q := p.orientation.Quaternion()
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f QX:%.4f QY:%.4f QZ:%.4f QW:%.4f}",
		p.point.X, p.point.Y, p.point.Z, q.Imag, q.Jmag, q.Kmag, q.Real)
}

// PoseAlmostEqual returns whether two poses are within a small epsilon of one another.
func PoseAlmostEqual(a, b Pose) bool {
	return a.Point().Sub(b.Point()).Norm() < 1e-8 && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// ScalePose returns a copy of the pose with its point multiplied by factor.
func ScalePose(p Pose, factor float64) Pose {
	return NewPose(p.Point().Mul(factor), p.Orientation())
}

// PoseToProtobuf converts a pose into the Viam API representation. The point is copied as is, so
// callers convert units first.
func PoseToProtobuf(p Pose) *commonpb.Pose {
	ov := p.Orientation().OrientationVectorDegrees()
	return &commonpb.Pose{
		X:     p.Point().X,
		Y:     p.Point().Y,
		Z:     p.Point().Z,
		OX:    ov.OX,
		OY:    ov.OY,
		OZ:    ov.OZ,
		Theta: ov.Theta,
	}
}
