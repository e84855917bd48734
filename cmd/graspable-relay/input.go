package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/graspable/config"
	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/services/graspable"
)

// loadConfig returns the config file named by --config, or the --preset reference configuration.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	if path := c.String(flagConfig); path != "" {
		cfg, err := config.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %q", path)
		}
		if !c.Bool(flagDebug) {
			logger.SetLevel(cfg.LogLevel)
		}
		if c.IsSet(flagMetricsAddr) {
			cfg.MetricsAddr = c.String(flagMetricsAddr)
		}
		return cfg, nil
	}

	cfg := &config.Config{LogLevel: logger.GetLevel(), MetricsAddr: c.String(flagMetricsAddr)}
	switch graspable.Mode(c.String(flagPreset)) {
	case graspable.ModeContinuous:
		cfg.Graspable = graspable.ContinuousReferenceConfig()
	case graspable.ModeEventTriggered:
		cfg.Graspable = graspable.EventTriggeredReferenceConfig()
	default:
		return nil, errors.Errorf("unknown preset %q", c.String(flagPreset))
	}
	return cfg, nil
}

// openMarkers returns the marker source named by --bag, or stdin.
func openMarkers(c *cli.Context, cfg *graspable.Config) (ros.MarkerReader, error) {
	bagPath := c.String(flagBag)
	if bagPath == "" {
		return ros.NewJSONMarkerReader(c.App.Reader), nil
	}
	bag, err := ros.ReadBag(bagPath)
	if err != nil {
		return nil, err
	}
	topic := c.String(flagTopic)
	if topic == "" {
		topic = cfg.MarkerTopic
	}
	return ros.NewBagMarkerReader(bag, topic)
}
