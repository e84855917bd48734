package graspable

import (
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/graspable/ros"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Mode: ModeContinuous, Discriminator: DiscriminatorLateralOffset}
	}
	test.That(t, valid().Validate("graspable"), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing mode", func(c *Config) { c.Mode = "" }, "mode"},
		{"unknown mode", func(c *Config) { c.Mode = "loop" }, `unknown mode "loop"`},
		{"missing discriminator", func(c *Config) { c.Discriminator = "" }, "discriminator"},
		{"unknown discriminator", func(c *Config) { c.Discriminator = "color" }, `unknown discriminator "color"`},
		{"bad pattern", func(c *Config) { c.NamespacePattern = "surface_(" }, "namespace_pattern"},
		{"negative height tolerance", func(c *Config) { c.HeightTolerance = -1 }, "height_tolerance"},
		{"negative lateral tolerance", func(c *Config) { c.LateralTolerance = -0.1 }, "lateral_tolerance"},
		{"negative interval", func(c *Config) { c.PublishInterval = -time.Second }, "publish_interval"},
		{"negative pose queue", func(c *Config) { c.PoseQueueSize = -1 }, "pose_queue_size"},
		{"same frames", func(c *Config) { c.ParentFrame, c.ChildFrame = "a", "a" }, "parent_frame and child_frame"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate("graspable")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := ContinuousReferenceConfig()
	test.That(t, cfg.NamespacePattern, test.ShouldEqual, DefaultNamespacePattern)
	test.That(t, *cfg.ExpectedHeight, test.ShouldEqual, 0.91)
	test.That(t, cfg.HeightTolerance, test.ShouldEqual, 0.06)
	test.That(t, *cfg.ExpectedLateral, test.ShouldEqual, 0.4)
	test.That(t, cfg.LateralTolerance, test.ShouldEqual, 0.04)
	test.That(t, *cfg.RequiredShapeType, test.ShouldEqual, ros.MarkerCylinder)
	test.That(t, cfg.ParentFrame, test.ShouldEqual, "pc_cam_base_link")
	test.That(t, cfg.ChildFrame, test.ShouldEqual, "graspable_object")
	test.That(t, cfg.MarkerTopic, test.ShouldEqual, "surface_objects")
	test.That(t, cfg.PoseTopic, test.ShouldEqual, "graspable_object_pose")
	test.That(t, cfg.TransformTopic, test.ShouldEqual, "/tf")
	test.That(t, cfg.PublishInterval, test.ShouldEqual, time.Second)
	test.That(t, cfg.PoseQueueSize, test.ShouldEqual, 10)

	// Explicit zero expectations survive defaulting.
	zero := 0.0
	arrow := ros.MarkerArrow
	explicit := &Config{
		Mode:              ModeEventTriggered,
		Discriminator:     DiscriminatorShapeType,
		ExpectedLateral:   &zero,
		RequiredShapeType: &arrow,
	}
	explicit.ApplyDefaults()
	test.That(t, *explicit.ExpectedLateral, test.ShouldEqual, 0)
	test.That(t, *explicit.RequiredShapeType, test.ShouldEqual, ros.MarkerArrow)
	test.That(t, explicit.Mode, test.ShouldEqual, ModeEventTriggered)
}

func TestPresetsAreDistinctPairs(t *testing.T) {
	continuous := ContinuousReferenceConfig()
	test.That(t, continuous.Mode, test.ShouldEqual, ModeContinuous)
	test.That(t, continuous.Discriminator, test.ShouldEqual, DiscriminatorLateralOffset)
	test.That(t, continuous.Validate("graspable"), test.ShouldBeNil)

	event := EventTriggeredReferenceConfig()
	test.That(t, event.Mode, test.ShouldEqual, ModeEventTriggered)
	test.That(t, event.Discriminator, test.ShouldEqual, DiscriminatorShapeType)
	test.That(t, event.Validate("graspable"), test.ShouldBeNil)
}

func TestNewPolicyRejectsInvalidConfig(t *testing.T) {
	_, err := NewPolicy(&Config{Discriminator: DiscriminatorShapeType})
	test.That(t, err, test.ShouldNotBeNil)

	custom := &Config{
		Mode:             ModeContinuous,
		Discriminator:    DiscriminatorLateralOffset,
		NamespacePattern: `shelf_\d+`,
		HeightTolerance:  0.5,
	}
	p, err := NewPolicy(custom)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Evaluate(newMarker("shelf_4", 0.4, 1.2, ros.MarkerSphere)).Accepted(), test.ShouldBeTrue)
	// NewPolicy does not write defaults back into the caller's config.
	test.That(t, custom.ExpectedHeight, test.ShouldBeNil)
}
