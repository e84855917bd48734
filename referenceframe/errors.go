package referenceframe

import "github.com/pkg/errors"

// ErrEmptyFrameName is returned when a transform is built without a parent or child frame name.
var ErrEmptyFrameName = errors.New("frame name cannot be empty")

// NewSameFrameError is returned when a transform names the same frame as parent and child.
func NewSameFrameError(name string) error {
	return errors.Errorf("frame %q cannot be its own parent", name)
}
