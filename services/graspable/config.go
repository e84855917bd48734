package graspable

import (
	"regexp"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/graspable/ros"
)

// Discriminator selects the second acceptance check applied after the height check.
type Discriminator string

const (
	// DiscriminatorLateralOffset accepts markers whose lateral coordinate is near an expected offset.
	DiscriminatorLateralOffset Discriminator = "lateral_offset"
	// DiscriminatorShapeType accepts markers of one exact shape type.
	DiscriminatorShapeType Discriminator = "shape_type"
)

// Mode selects the latch and broadcast behavior together.
type Mode string

const (
	// ModeContinuous latches onto the first accepted marker, stops listening, and republishes its
	// pose on a fixed cadence until shutdown.
	ModeContinuous Mode = "continuous"
	// ModeEventTriggered keeps evaluating every marker and emits one transform per accepted marker.
	ModeEventTriggered Mode = "event_triggered"
)

// Config describes one relay deployment. Mode and Discriminator have no defaults: the pairing is
// always stated explicitly.
type Config struct {
	Mode          Mode          `json:"mode"`
	Discriminator Discriminator `json:"discriminator"`

	NamespacePattern  string          `json:"namespace_pattern,omitempty"`
	ExpectedHeight    *float64        `json:"expected_height,omitempty"`
	HeightTolerance   float64         `json:"height_tolerance,omitempty"`
	ExpectedLateral   *float64        `json:"expected_lateral,omitempty"`
	LateralTolerance  float64         `json:"lateral_tolerance,omitempty"`
	RequiredShapeType *ros.MarkerType `json:"required_shape_type,omitempty"`

	ParentFrame     string        `json:"parent_frame,omitempty"`
	ChildFrame      string        `json:"child_frame,omitempty"`
	MarkerTopic     string        `json:"marker_topic,omitempty"`
	PoseTopic       string        `json:"pose_topic,omitempty"`
	TransformTopic  string        `json:"transform_topic,omitempty"`
	PublishInterval time.Duration `json:"publish_interval,omitempty"`
	PoseQueueSize   int           `json:"pose_queue_size,omitempty"`
}

// ContinuousReferenceConfig is the lateral-offset policy paired with continuous republishing.
func ContinuousReferenceConfig() *Config {
	cfg := &Config{Mode: ModeContinuous, Discriminator: DiscriminatorLateralOffset}
	cfg.ApplyDefaults()
	return cfg
}

// EventTriggeredReferenceConfig is the cylinder shape-type policy paired with one transform per
// accepted marker.
func EventTriggeredReferenceConfig() *Config {
	cfg := &Config{Mode: ModeEventTriggered, Discriminator: DiscriminatorShapeType}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field except Mode and Discriminator with its reference value.
func (cfg *Config) ApplyDefaults() {
	if cfg.NamespacePattern == "" {
		cfg.NamespacePattern = DefaultNamespacePattern
	}
	if cfg.ExpectedHeight == nil {
		h := DefaultExpectedHeight
		cfg.ExpectedHeight = &h
	}
	if cfg.HeightTolerance == 0 {
		cfg.HeightTolerance = DefaultHeightTolerance
	}
	if cfg.ExpectedLateral == nil {
		y := DefaultExpectedLateral
		cfg.ExpectedLateral = &y
	}
	if cfg.LateralTolerance == 0 {
		cfg.LateralTolerance = DefaultLateralTolerance
	}
	if cfg.RequiredShapeType == nil {
		st := DefaultRequiredShapeType
		cfg.RequiredShapeType = &st
	}
	if cfg.ParentFrame == "" {
		cfg.ParentFrame = DefaultParentFrame
	}
	if cfg.ChildFrame == "" {
		cfg.ChildFrame = DefaultChildFrame
	}
	if cfg.MarkerTopic == "" {
		cfg.MarkerTopic = DefaultMarkerTopic
	}
	if cfg.PoseTopic == "" {
		cfg.PoseTopic = DefaultPoseTopic
	}
	if cfg.TransformTopic == "" {
		cfg.TransformTopic = DefaultTransformTopic
	}
	if cfg.PublishInterval == 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.PoseQueueSize == 0 {
		cfg.PoseQueueSize = DefaultPoseQueueSize
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	switch cfg.Mode {
	case ModeContinuous, ModeEventTriggered:
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "mode")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown mode %q", cfg.Mode))
	}

	switch cfg.Discriminator {
	case DiscriminatorLateralOffset, DiscriminatorShapeType:
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "discriminator")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown discriminator %q", cfg.Discriminator))
	}

	if cfg.NamespacePattern != "" {
		if _, err := regexp.Compile(cfg.NamespacePattern); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "namespace_pattern"))
		}
	}
	if cfg.HeightTolerance < 0 {
		return goutils.NewConfigValidationError(path, errors.New("height_tolerance cannot be negative"))
	}
	if cfg.LateralTolerance < 0 {
		return goutils.NewConfigValidationError(path, errors.New("lateral_tolerance cannot be negative"))
	}
	if cfg.PublishInterval < 0 {
		return goutils.NewConfigValidationError(path, errors.New("publish_interval cannot be negative"))
	}
	if cfg.PoseQueueSize < 0 {
		return goutils.NewConfigValidationError(path, errors.New("pose_queue_size cannot be negative"))
	}
	if cfg.ParentFrame != "" && cfg.ParentFrame == cfg.ChildFrame {
		return goutils.NewConfigValidationError(path, errors.Errorf("parent_frame and child_frame are both %q", cfg.ParentFrame))
	}
	return nil
}
