package graspable

import (
	"math"
	"regexp"

	"github.com/pkg/errors"

	"go.viam.com/graspable/ros"
)

// Verdict is the outcome of evaluating one marker.
type Verdict int

const (
	// Reject means the marker is not the graspable object.
	Reject Verdict = iota
	// Accept means the marker satisfies every check of the policy.
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "Accepted"
	}
	return "Rejected"
}

// Names of the check a rejected marker failed first.
const (
	ReasonNamespace     = "namespace"
	ReasonHeight        = "height"
	ReasonLateralOffset = "lateral_offset"
	ReasonShapeType     = "shape_type"
)

// Evaluation is the diagnostic record of one policy evaluation.
type Evaluation struct {
	Namespace string
	Height    float64
	ShapeType ros.MarkerType
	Lateral   float64
	Verdict   Verdict
	// Reason names the first failed check; empty when accepted.
	Reason string
}

// Accepted reports whether the marker was accepted.
func (e Evaluation) Accepted() bool {
	return e.Verdict == Accept
}

// KeysAndValues renders the record for structured logging.
func (e Evaluation) KeysAndValues() []interface{} {
	kvs := []interface{}{"ns", e.Namespace, "height", e.Height, "type", e.ShapeType.String(), "y", e.Lateral}
	if e.Reason != "" {
		kvs = append(kvs, "reason", e.Reason)
	}
	return kvs
}

// Policy is an immutable acceptance policy for markers.
type Policy struct {
	namespace         *regexp.Regexp
	expectedHeight    float64
	heightTolerance   float64
	discriminator     Discriminator
	expectedLateral   float64
	lateralTolerance  float64
	requiredShapeType ros.MarkerType
}

// NewPolicy builds the policy described by cfg. Unset fields take their reference values.
func NewPolicy(cfg *Config) (*Policy, error) {
	withDefaults := *cfg
	withDefaults.ApplyDefaults()
	if err := withDefaults.Validate(""); err != nil {
		return nil, err
	}

	// The pattern must match the whole namespace, not a substring of it.
	namespace, err := regexp.Compile(`^(?:` + withDefaults.NamespacePattern + `)$`)
	if err != nil {
		return nil, errors.Wrap(err, "namespace_pattern")
	}
	return &Policy{
		namespace:         namespace,
		expectedHeight:    *withDefaults.ExpectedHeight,
		heightTolerance:   withDefaults.HeightTolerance,
		discriminator:     withDefaults.Discriminator,
		expectedLateral:   *withDefaults.ExpectedLateral,
		lateralTolerance:  withDefaults.LateralTolerance,
		requiredShapeType: *withDefaults.RequiredShapeType,
	}, nil
}

// Discriminator returns the active discriminator.
func (p *Policy) Discriminator() Discriminator {
	return p.discriminator
}

// Evaluate decides whether m is the graspable object. It has no side effects.
func (p *Policy) Evaluate(m *ros.Marker) Evaluation {
	eval := Evaluation{
		Namespace: m.Ns,
		Height:    m.Pose.Position.Z,
		ShapeType: m.Type,
		Lateral:   m.Pose.Position.Y,
		Verdict:   Reject,
	}

	switch {
	case !p.namespace.MatchString(m.Ns):
		eval.Reason = ReasonNamespace
	case !within(eval.Height, p.expectedHeight, p.heightTolerance):
		eval.Reason = ReasonHeight
	case p.discriminator == DiscriminatorLateralOffset && !within(eval.Lateral, p.expectedLateral, p.lateralTolerance):
		eval.Reason = ReasonLateralOffset
	case p.discriminator == DiscriminatorShapeType && m.Type != p.requiredShapeType:
		eval.Reason = ReasonShapeType
	default:
		eval.Verdict = Accept
	}
	return eval
}

// within is false for NaN inputs, so malformed coordinates are rejected.
func within(value, expected, tolerance float64) bool {
	return math.Abs(value-expected) < tolerance
}
