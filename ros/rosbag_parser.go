// Package ros implements the ROS message shapes the relay consumes and emits, and the readers and
// writers that move them in and out of the process.
package ros

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoMessages is returned when a bag has nothing recorded on the requested topic.
var ErrNoMessages = errors.New("no messages for topic")

// MarkerReader yields markers one at a time. Next returns io.EOF once the input is exhausted.
type MarkerReader interface {
	Next() (*Marker, error)
}

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// bagMessage is the envelope gobag wraps every message in when converting to JSON.
type bagMessage struct {
	Meta Time
	Data Marker
}

type bagMarkerReader struct {
	msgs *bytes.Buffer
}

// NewBagMarkerReader returns a reader over every marker recorded on topic, in recording order.
func NewBagMarkerReader(rb *rosbag.RosBag, topic string) (MarkerReader, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topic]
	if msgs == nil {
		return nil, errors.Wrapf(ErrNoMessages, "%s", topic)
	}
	return &bagMarkerReader{msgs: msgs}, nil
}

func (r *bagMarkerReader) Next() (*Marker, error) {
	for {
		data, err := r.msgs.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		var msg bagMessage
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
			return nil, errors.Wrap(jsonErr, "malformed marker in bag")
		}
		if msg.Data.Header.Stamp == (Time{}) {
			msg.Data.Header.Stamp = msg.Meta
		}
		return &msg.Data, nil
	}
}

type jsonMarkerReader struct {
	scanner *bufio.Scanner
}

// NewJSONMarkerReader reads one JSON encoded marker per line. Blank lines are skipped.
func NewJSONMarkerReader(r io.Reader) MarkerReader {
	scanner := bufio.NewScanner(r)
	// Markers with point or color lists can be long.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &jsonMarkerReader{scanner: scanner}
}

func (r *jsonMarkerReader) Next() (*Marker, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m Marker
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, errors.Wrap(err, "malformed marker")
		}
		return &m, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
