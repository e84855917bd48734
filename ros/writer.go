package ros

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"go.viam.com/graspable/referenceframe"
	"go.viam.com/graspable/spatialmath"
)

// Format selects how a JSONWriter renders messages.
type Format string

const (
	// FormatROS renders tf2_msgs and geometry_msgs shaped JSON.
	FormatROS Format = "ros"
	// FormatViam renders the Viam API protobuf messages as protojson.
	FormatViam Format = "viam"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatROS, FormatViam:
		return Format(name), nil
	case "":
		return FormatROS, nil
	default:
		return "", errors.Errorf("unknown output format %q", name)
	}
}

type envelope struct {
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg"`
}

// JSONWriter writes one `{"topic": ..., "msg": ...}` object per line.
type JSONWriter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
}

// NewJSONWriter returns a writer emitting messages in format.
func NewJSONWriter(w io.Writer, format Format) *JSONWriter {
	return &JSONWriter{w: w, format: format}
}

// WriteTransform writes a transform.
func (jw *JSONWriter) WriteTransform(topic string, tf *referenceframe.Transform) error {
	if jw.format == FormatViam {
		return jw.writeProto(topic, tf.ToProtobuf())
	}
	return jw.writeJSON(topic, TransformStampedFromFrame(tf))
}

// WritePose writes a pose expressed in frame.
func (jw *JSONWriter) WritePose(topic, frame string, pose spatialmath.Pose) error {
	if jw.format == FormatViam {
		return jw.writeProto(topic, referenceframe.PoseInFrameToProtobuf(frame, pose))
	}
	return jw.writeJSON(topic, PoseFromSpatial(pose))
}

func (jw *JSONWriter) writeProto(topic string, msg proto.Message) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal protobuf message")
	}
	return jw.write(topic, data)
}

func (jw *JSONWriter) writeJSON(topic string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	return jw.write(topic, data)
}

func (jw *JSONWriter) write(topic string, data []byte) error {
	line, err := json.Marshal(envelope{Topic: topic, Msg: data})
	if err != nil {
		return err
	}
	jw.mu.Lock()
	defer jw.mu.Unlock()
	_, err = jw.w.Write(append(line, '\n'))
	return err
}
