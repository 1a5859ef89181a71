package motor

import (
	"context"

	"github.com/pkg/errors"
)

// Pair issues symmetric commands to the left and right motors of a differential drive.
// It does not clamp power; callers hand it values already limited to [0, 255].
type Pair struct {
	driver Driver
}

// NewPair returns a Pair over driver.
func NewPair(driver Driver) *Pair {
	return &Pair{driver: driver}
}

// SetMotors sets the left motor and then the right motor.
func (p *Pair) SetMotors(
	ctx context.Context, leftDir Direction, leftPower uint8, rightDir Direction, rightPower uint8,
) error {
	if err := p.driver.SetPower(ctx, Left, leftDir, leftPower); err != nil {
		return errors.Wrap(err, "setting left motor")
	}
	if err := p.driver.SetPower(ctx, Right, rightDir, rightPower); err != nil {
		return errors.Wrap(err, "setting right motor")
	}
	return nil
}

// StopAll halts both motors.
func (p *Pair) StopAll(ctx context.Context) error {
	return errors.Wrap(p.driver.Stop(ctx, All), "stopping motors")
}
