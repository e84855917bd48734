package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
)

// If two angles differ by less than this amount, we consider them the same for the purpose of doing
// math around the poles of orientation.
const angleEpsilon = 0.01 // radians

// OrientationVector containing ox, oy, oz, theta represents an orientation vector
// Structured similarly to an angle axis, an orientation vector works differently. Rather than representing an orientation
// with an arbitrary axis and a rotation around it from an origin, an orientation vector represents orientation
// such that the ox/oy/oz components represent the point on the cartesian unit sphere to which your end effector is pointing
// from the origin, and theta is how much the end effector is rotated around that axis.
type OrientationVector struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// OrientationVectorDegrees is the orientation vector between two objects, but expressed in degrees rather than radians.
type OrientationVectorDegrees struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// Degrees converts the orientation vector's theta to degrees.
func (ov *OrientationVector) Degrees() *OrientationVectorDegrees {
	return &OrientationVectorDegrees{Theta: ov.Theta * 180 / math.Pi, OX: ov.OX, OY: ov.OY, OZ: ov.OZ}
}

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// ToQuat converts an R4 axis angle to a unit quaternion.
func (r4 *R4AA) ToQuat() quat.Number {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta / 2)
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX / norm * sinA,
		Jmag: r4.RY / norm * sinA,
		Kmag: r4.RZ / norm * sinA,
	}
}

// QuatToOV converts a quaternion to an orientation vector.
func QuatToOV(q quat.Number) *OrientationVector {
	xAxis := quat.Number{Imag: -1}
	zAxis := quat.Number{Kmag: 1}
	ov := &OrientationVector{}
	// Where the local -X and +Z axes end up after rotating by q.
	newX := quat.Mul(quat.Mul(q, xAxis), quat.Conj(q))
	newZ := quat.Mul(quat.Mul(q, zAxis), quat.Conj(q))
	ov.OX = newZ.Imag
	ov.OY = newZ.Jmag
	ov.OZ = newZ.Kmag

	// newZ.Kmag is not an angle, but angleEpsilon is still a convenient closeness bound for the pole.
	if 1-math.Abs(newZ.Kmag) < angleEpsilon {
		// Pointing straight along Z: theta is the angle of local-x in the XY plane.
		ov.Theta = -math.Atan2(newX.Jmag, -newX.Imag)
		if newZ.Kmag < 0 {
			ov.Theta = -math.Atan2(newX.Jmag, newX.Imag)
		}
		return ov
	}

	v1 := mgl64.Vec3{newZ.Imag, newZ.Jmag, newZ.Kmag}
	v2 := mgl64.Vec3{newX.Imag, newX.Jmag, newX.Kmag}

	// Normal to the local-x, local-z, origin plane.
	norm1 := v1.Cross(v2)
	// Normal to the global-z, local-z, origin plane.
	norm2 := v1.Cross(mgl64.Vec3{zAxis.Imag, zAxis.Jmag, zAxis.Kmag})

	cosTheta := norm1.Dot(norm2) / (norm1.Len() * norm2.Len())
	cosTheta = math.Max(-1, math.Min(1, cosTheta))

	theta := math.Acos(cosTheta)
	if theta <= angleEpsilon {
		ov.Theta = 0
		return ov
	}

	// Acos is always positive. Rotate newZ by -theta around itself and check whether that lands
	// coplanar with local-x; if so theta is negative.
	aa := R4AA{-theta, ov.OX, ov.OY, ov.OZ}
	q2 := aa.ToQuat()
	testZ := quat.Mul(quat.Mul(q2, zAxis), quat.Conj(q2))
	norm3 := v1.Cross(mgl64.Vec3{testZ.Imag, testZ.Jmag, testZ.Kmag})
	cosTest := norm1.Dot(norm3) / (norm1.Len() * norm3.Len())
	if 1-cosTest < angleEpsilon*angleEpsilon {
		ov.Theta = -theta
	} else {
		ov.Theta = theta
	}
	return ov
}
