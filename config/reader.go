package config

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/ros"
	"go.viam.com/graspable/services/graspable"
)

// Read reads a config from the given file, expanding ${VAR} references from the environment.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	var unprocessed fileConfig
	if err := json.NewDecoder(r).Decode(&unprocessed); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}

	cfg := &Config{ConfigFilePath: originalPath, LogLevel: logging.INFO, MetricsAddr: unprocessed.MetricsAddr}
	if unprocessed.LogLevel != "" {
		level, err := logging.LevelFromString(unprocessed.LogLevel)
		if err != nil {
			return nil, errors.Wrap(err, "log_level")
		}
		cfg.LogLevel = level
	}
	if unprocessed.Graspable != nil {
		graspableCfg, err := DecodeGraspableAttributes(unprocessed.Graspable)
		if err != nil {
			return nil, errors.Wrap(err, "failed to process Config")
		}
		cfg.Graspable = graspableCfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Graspable.ApplyDefaults()
	return cfg, nil
}

// DecodeGraspableAttributes converts a loosely typed attribute map into a graspable.Config.
// Durations may be given as strings ("500ms") and shape types by name ("CYLINDER"). Unknown
// keys are an error.
func DecodeGraspableAttributes(attributes map[string]interface{}) (*graspable.Config, error) {
	var out graspable.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &out,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToMarkerTypeHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return &out, nil
}

var markerTypeType = reflect.TypeOf(ros.MarkerType(0))

func stringToMarkerTypeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != markerTypeType {
			return data, nil
		}
		return ros.ParseMarkerType(data.(string))
	}
}
