// Package base defines the motion surface of a two-wheeled differential-drive robot.
package base

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
)

// ErrInvalidArgument is returned for a duration, distance or angle outside its documented
// range. Speeds are never rejected, they are clamped.
var ErrInvalidArgument = errors.New("invalid argument")

// A Base drives and turns the robot.
//
// Speeds are controller power values; anything outside [min speed, 255] is clamped. Timed and
// measured motions block until they finish and always stop the motors before returning.
type Base interface {
	// Drive starts driving in dir and returns immediately, leaving the motors running.
	Drive(ctx context.Context, dir calibration.Direction, speed float64) error
	// DriveTime drives for the given number of seconds, then stops.
	DriveTime(ctx context.Context, dir calibration.Direction, speed, seconds float64) error
	// DriveDistance drives distanceMm open loop using the calibrated velocity model, then stops.
	DriveDistance(ctx context.Context, dir calibration.Direction, speed, distanceMm float64) error
	// DriveDistancePID drives distanceMm while holding the starting heading from the movement sensor.
	DriveDistancePID(ctx context.Context, dir calibration.Direction, speed, distanceMm float64) error
	// TurnForTime pivots towards side for d, then stops.
	TurnForTime(ctx context.Context, side calibration.Side, d time.Duration) error
	// Turn pivots towards side by degrees using the calibrated turn model, then stops.
	Turn(ctx context.Context, side calibration.Side, degrees float64) error
	// Stop cancels any running motion and halts both motors.
	Stop(ctx context.Context) error
	// Profile returns the live correction values of this base.
	Profile() *calibration.Profile
	Close(ctx context.Context) error
}

// NewInvalidArgumentError returns an ErrInvalidArgument describing the offending value.
func NewInvalidArgumentError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
