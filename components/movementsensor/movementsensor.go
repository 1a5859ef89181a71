// Package movementsensor defines the inertial sensor the drive core reads heading from.
package movementsensor

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// ErrNotInitialized is returned when a sensor is read before Initialize succeeded.
var ErrNotInitialized = errors.New("movement sensor is not initialized")

// Orientation is an attitude estimate in degrees. Yaw is in [-180, 180) and grows when the robot
// turns clockwise seen from above, which is the direction a faster left wheel turns it.
type Orientation struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// A MovementSensor reports the orientation of the robot.
type MovementSensor interface {
	// Initialize brings the sensor into measurement mode. Calling it again after success is a no-op.
	Initialize(ctx context.Context) error
	// Calibrate measures the resting bias over samples readings and zeroes the heading.
	Calibrate(ctx context.Context, samples int) error
	// Orientation returns the latest estimate, or the error that keeps it from being current.
	Orientation(ctx context.Context) (Orientation, error)
	Close(ctx context.Context) error
}

// NormalizeYaw wraps any angle in degrees into [-180, 180).
func NormalizeYaw(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
