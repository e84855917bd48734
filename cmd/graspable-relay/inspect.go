package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/services/graspable"
)

type inspectLine struct {
	Namespace string  `json:"ns"`
	Height    float64 `json:"height"`
	Lateral   float64 `json:"y"`
	Type      string  `json:"type"`
	Verdict   string  `json:"verdict"`
	Reason    string  `json:"reason,omitempty"`
}

// runInspect evaluates every marker against the configured policy, for tuning tolerances
// against a recording.
func runInspect(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	policy, err := graspable.NewPolicy(cfg.Graspable)
	if err != nil {
		return err
	}
	markers, err := openMarkers(c, cfg.Graspable)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	var total, accepted int
	for {
		m, err := markers.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		eval := policy.Evaluate(m)
		total++
		if eval.Accepted() {
			accepted++
		}
		if err := enc.Encode(inspectLine{
			Namespace: eval.Namespace,
			Height:    eval.Height,
			Lateral:   eval.Lateral,
			Type:      eval.ShapeType.String(),
			Verdict:   eval.Verdict.String(),
			Reason:    eval.Reason,
		}); err != nil {
			return err
		}
	}
	logger.Infow("inspected markers", "total", total, "accepted", accepted,
		"discriminator", policy.Discriminator())
	return nil
}
