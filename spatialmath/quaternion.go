package spatialmath

import (
	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is an orientation stored as a raw quaternion. It is never normalized, so a relayed
// orientation comes out exactly as it went in.
type Quaternion quat.Number

// NewQuaternionXYZW builds a Quaternion from components in x, y, z, w order, which is the order
// ROS geometry messages use.
func NewQuaternionXYZW(x, y, z, w float64) *Quaternion {
	return &Quaternion{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// Quaternion returns orientation in quaternion representation.
func (q *Quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// XYZW returns the components in x, y, z, w order.
func (q *Quaternion) XYZW() (x, y, z, w float64) {
	return q.Imag, q.Jmag, q.Kmag, q.Real
}

// OrientationVectorRadians returns orientation as an orientation vector (in radians).
func (q *Quaternion) OrientationVectorRadians() *OrientationVector {
	return QuatToOV(q.Quaternion())
}

// OrientationVectorDegrees returns orientation as an orientation vector (in degrees).
func (q *Quaternion) OrientationVectorDegrees() *OrientationVectorDegrees {
	return q.OrientationVectorRadians().Degrees()
}
