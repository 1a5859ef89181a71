// Package config defines the robot configuration file: which motor controller and movement
// sensor to use and the calibration of the base.
package config

import (
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Config describes the robot.
type Config struct {
	ConfigFilePath string `json:"-"`

	Motors         Component    `json:"motors"`
	MovementSensor Component    `json:"movement_sensor"`
	Base           AttributeMap `json:"base,omitempty"`
}

// Component selects a model and the attributes it is built from.
type Component struct {
	Model      string       `json:"model"`
	Attributes AttributeMap `json:"attributes,omitempty"`
}

// Ensure validates the parts of the config that do not depend on a model.
func (c *Config) Ensure() error {
	if c.Motors.Model == "" {
		return utils.NewConfigValidationFieldRequiredError("motors", "model")
	}
	if c.MovementSensor.Model == "" && len(c.MovementSensor.Attributes) > 0 {
		return utils.NewConfigValidationFieldRequiredError("movement_sensor", "model")
	}
	return nil
}

// HasMovementSensor reports whether a movement sensor is configured.
func (c *Config) HasMovementSensor() bool {
	return c.MovementSensor.Model != ""
}

// AttributeMap holds the free-form attributes of a component, decoded with TransformAttributeMap.
type AttributeMap map[string]interface{}

// TransformAttributeMap decodes attributes into a new T using the json tags of T. Attributes that
// T has no field for are an error, so typos in the config do not go unnoticed.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   forResult,
		Metadata: &md,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	if len(md.Unused) != 0 {
		sort.Strings(md.Unused)
		return out, errors.Errorf("unknown attributes %v", md.Unused)
	}
	return out, nil
}
