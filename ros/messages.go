package ros

import (
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/spatialmath"
)

// MarkerType is the shape type code of a visualization_msgs/Marker.
type MarkerType int32

// Marker shape types.
const (
	MarkerArrow MarkerType = iota
	MarkerCube
	MarkerSphere
	MarkerCylinder
	MarkerLineStrip
	MarkerLineList
	MarkerCubeList
	MarkerSphereList
	MarkerPoints
	MarkerTextViewFacing
	MarkerMeshResource
	MarkerTriangleList
)

var markerTypeNames = map[MarkerType]string{
	MarkerArrow:          "ARROW",
	MarkerCube:           "CUBE",
	MarkerSphere:         "SPHERE",
	MarkerCylinder:       "CYLINDER",
	MarkerLineStrip:      "LINE_STRIP",
	MarkerLineList:       "LINE_LIST",
	MarkerCubeList:       "CUBE_LIST",
	MarkerSphereList:     "SPHERE_LIST",
	MarkerPoints:         "POINTS",
	MarkerTextViewFacing: "TEXT_VIEW_FACING",
	MarkerMeshResource:   "MESH_RESOURCE",
	MarkerTriangleList:   "TRIANGLE_LIST",
}

func (t MarkerType) String() string {
	if name, ok := markerTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMarkerType parses a shape name such as "CYLINDER" or "cylinder".
func ParseMarkerType(name string) (MarkerType, error) {
	for t, n := range markerTypeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown marker type %q", name)
}

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// NewTime converts a time.Time into a ROS timestamp.
func NewTime(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Time returns the timestamp as a time.Time. The zero ROS time maps to the zero time.Time.
func (t Time) Time() time.Time {
	if t.Secs == 0 && t.Nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// ColorRGBA is std_msgs/ColorRGBA.
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Marker is visualization_msgs/Marker. Only the namespace, type and pose are looked at by the
// relay; the rest is carried along so whole messages decode.
type Marker struct {
	Header                   Header      `json:"header"`
	Ns                       string      `json:"ns"`
	ID                       int32       `json:"id"`
	Type                     MarkerType  `json:"type"`
	Action                   int32       `json:"action"`
	Pose                     Pose        `json:"pose"`
	Scale                    Vector3     `json:"scale"`
	Color                    ColorRGBA   `json:"color"`
	Lifetime                 Time        `json:"lifetime"`
	FrameLocked              bool        `json:"frame_locked"`
	Points                   []Point     `json:"points,omitempty"`
	Colors                   []ColorRGBA `json:"colors,omitempty"`
	Text                     string      `json:"text,omitempty"`
	MeshResource             string      `json:"mesh_resource,omitempty"`
	MeshUseEmbeddedMaterials bool        `json:"mesh_use_embedded_materials,omitempty"`
}

// SpatialPose returns the marker pose with the orientation taken verbatim.
func (m *Marker) SpatialPose() spatialmath.Pose {
	return PoseToSpatial(m.Pose)
}

// PoseToSpatial converts a geometry_msgs/Pose into a spatialmath.Pose.
func PoseToSpatial(p Pose) spatialmath.Pose {
	o := p.Orientation
	return spatialmath.NewPose(
		r3.Vector{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		spatialmath.NewQuaternionXYZW(o.X, o.Y, o.Z, o.W),
	)
}

// PoseFromSpatial converts a spatialmath.Pose into a geometry_msgs/Pose.
func PoseFromSpatial(p spatialmath.Pose) Pose {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	return Pose{
		Position:    Point{X: pt.X, Y: pt.Y, Z: pt.Z},
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped is geometry_msgs/TransformStamped.
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// TransformStampedFromFrame converts a referenceframe.Transform into the tf2 wire message.
func TransformStampedFromFrame(tf *referenceframe.Transform) TransformStamped {
	p := PoseFromSpatial(tf.Pose)
	return TransformStamped{
		Header:       Header{Stamp: NewTime(tf.Stamp), FrameID: tf.Parent},
		ChildFrameID: tf.Child,
		Transform: Transform{
			Translation: Vector3{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
			Rotation:    p.Orientation,
		},
	}
}
