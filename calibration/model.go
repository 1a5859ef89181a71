// Package calibration maps commanded motor speeds onto measured real-world motion for one
// chassis. The polynomials are least-squares fits measured on the reference robot; the
// coefficients are hardware data and must stay exactly as written.
package calibration

import (
	"time"

	"github.com/pkg/errors"
)

// MaxPower is the largest power value the motor controller accepts.
const MaxPower = 255

// ErrDegenerateTurn is returned when the turn timing model cannot produce a positive pause for
// the requested turn speed and correction values.
var ErrDegenerateTurn = errors.New("turn timing is degenerate for this turn speed")

// SpeedAdjustment is the fitted turning bias per unit of commanded speed. It scales the steering
// correction and, for pivot turns, divides the pause time.
func SpeedAdjustment(speed float64) float64 {
	return 2e-07*speed*speed*speed - 9e-05*speed*speed + 0.0174*speed - 0.035
}

// Velocity is the fitted straight-line speed in mm/s for a commanded speed.
func Velocity(speed float64) float64 {
	return 5e-05*speed*speed*speed - 0.0229*speed*speed + 3.5795*speed + 3.8194
}

// TurnRate is the fitted wheel rotation rate in degrees/s for a commanded speed.
func TurnRate(speed float64) float64 {
	return 6e-05*speed*speed*speed - 0.0332*speed*speed + 6.28*speed - 12.616
}

// PercentFactor turns a signed correction percentage into a multiplier.
func PercentFactor(pct float64) float64 {
	return (100 + pct) / 100
}

// SteeringFactor is the multiplier applied to the left motor power when driving straight.
func SteeringFactor(speed, correctionPct float64) float64 {
	return (100 + correctionPct*SpeedAdjustment(speed)) / 100
}

// TimeForDistance is how long to run at speed to cover distanceMm. The caller applies any
// distance correction beforehand.
func TimeForDistance(speed, distanceMm float64) time.Duration {
	return millis(distanceMm / Velocity(speed) * 1000)
}

// TimeForDegrees is how long the wheels need at speed to rotate by degrees.
func TimeForDegrees(speed, degrees float64) time.Duration {
	return millis(1 / TurnRate(speed) * degrees * 1000)
}

// TurnPauseTime is how long a pivot turn at turnSpeed runs to rotate the chassis by degrees.
func TurnPauseTime(turnSpeed, degrees, correctionPct, offsetMs float64) (time.Duration, error) {
	adjustment := SpeedAdjustment(turnSpeed)
	if adjustment <= 0 {
		return 0, errors.Wrapf(ErrDegenerateTurn, "speed adjustment %.4f at turn speed %.1f", adjustment, turnSpeed)
	}
	pauseMs := (degrees/(0.2/PercentFactor(correctionPct)) + 10 + offsetMs) / adjustment
	if pauseMs <= 0 {
		return 0, errors.Wrapf(ErrDegenerateTurn, "pause of %.1fms for %.1f degrees", pauseMs, degrees)
	}
	return millis(pauseMs), nil
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
