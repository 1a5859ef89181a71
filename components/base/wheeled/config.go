package wheeled

import (
	"fmt"
	"time"

	"go.viam.com/utils"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
)

const (
	defaultCalibrationSamples = 1
	defaultLoopPeriod         = 10 * time.Millisecond
)

// Config is how you configure a wheeled base. Zero values select the defaults.
type Config struct {
	MinSpeed        float64 `json:"min_speed,omitempty"`
	TurnSpeed       float64 `json:"turn_speed,omitempty"`
	WheelDiameterMM float64 `json:"wheel_diameter_mm,omitempty"`

	SteeringCorrectionForward float64 `json:"steering_correction_forward,omitempty"`
	SteeringCorrectionBack    float64 `json:"steering_correction_back,omitempty"`
	DistanceCorrectionForward float64 `json:"distance_correction_forward,omitempty"`
	DistanceCorrectionBack    float64 `json:"distance_correction_back,omitempty"`
	TurnCorrectionLeft        float64 `json:"turn_correction_left,omitempty"`
	TurnCorrectionRight       float64 `json:"turn_correction_right,omitempty"`
	TurnOffsetLeftMs          float64 `json:"turn_offset_left_ms,omitempty"`
	TurnOffsetRightMs         float64 `json:"turn_offset_right_ms,omitempty"`

	CalibrationSamples int     `json:"calibration_samples,omitempty"`
	LoopPeriodMs       float64 `json:"loop_period_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.MinSpeed < 0 || cfg.MinSpeed > calibration.MaxPower {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("min_speed must be between 0 and %d, got %v", calibration.MaxPower, cfg.MinSpeed))
	}
	if cfg.TurnSpeed < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("turn_speed cannot be negative, got %v", cfg.TurnSpeed))
	}
	if cfg.WheelDiameterMM < 0 {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("wheel_diameter_mm cannot be negative, got %v", cfg.WheelDiameterMM))
	}
	if cfg.CalibrationSamples < 0 {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("calibration_samples cannot be negative, got %d", cfg.CalibrationSamples))
	}
	if cfg.LoopPeriodMs < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("loop_period_ms cannot be negative, got %v", cfg.LoopPeriodMs))
	}
	return nil
}

// Corrections converts the config into the initial calibration values of a base.
func (cfg *Config) Corrections() calibration.Corrections {
	c := calibration.DefaultCorrections()
	if cfg.MinSpeed > 0 {
		c.MinSpeed = cfg.MinSpeed
	}
	if cfg.TurnSpeed > 0 {
		c.TurnSpeed = cfg.TurnSpeed
	}
	c.TurnSpeed = c.ClampSpeed(c.TurnSpeed)
	if cfg.WheelDiameterMM > 0 {
		c.WheelDiameterMm = cfg.WheelDiameterMM
	}
	c.SteeringForward = cfg.SteeringCorrectionForward
	c.SteeringBack = cfg.SteeringCorrectionBack
	c.DistanceForward = cfg.DistanceCorrectionForward
	c.DistanceBack = cfg.DistanceCorrectionBack
	c.TurnLeft = cfg.TurnCorrectionLeft
	c.TurnRight = cfg.TurnCorrectionRight
	c.TurnLeftOffsetMs = cfg.TurnOffsetLeftMs
	c.TurnRightOffsetMs = cfg.TurnOffsetRightMs
	return c
}

func (cfg *Config) calibrationSamples() int {
	if cfg.CalibrationSamples == 0 {
		return defaultCalibrationSamples
	}
	return cfg.CalibrationSamples
}

func (cfg *Config) loopPeriod() time.Duration {
	if cfg.LoopPeriodMs == 0 {
		return defaultLoopPeriod
	}
	return time.Duration(cfg.LoopPeriodMs * float64(time.Millisecond))
}
