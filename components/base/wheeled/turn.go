package wheeled

import (
	"context"
	"time"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
)

// TurnForTime pivots for exactly d. The turn correction of side is reported but not applied,
// timed turns are never rescaled.
func (wb *wheeledBase) TurnForTime(ctx context.Context, side calibration.Side, d time.Duration) error {
	if d < 0 {
		return base.NewInvalidArgumentError("turn duration cannot be negative, got %v", d)
	}
	ctx, done := wb.motions.Start(ctx)
	defer done()

	c := wb.profile.Snapshot()
	power := uint8(c.TurnSpeed)
	wb.logger.Debugw("received a TurnForTime",
		"side", side, "duration", d, "power", power, "unappliedCorrectionFactor", c.TurnCorrectionFactor(side))

	leftDir, rightDir := pivotDirections(side)
	return wb.run(ctx, leftDir, power, rightDir, power, d)
}

func (wb *wheeledBase) Turn(ctx context.Context, side calibration.Side, degrees float64) error {
	if degrees <= 0 {
		return base.NewInvalidArgumentError("turn angle must be positive, got %v degrees", degrees)
	}
	c := wb.profile.Snapshot()
	pause, err := c.TurnPause(degrees, side)
	if err != nil {
		return err
	}

	ctx, done := wb.motions.Start(ctx)
	defer done()

	power := uint8(c.TurnSpeed)
	wb.logger.Debugf("received a Turn with side:%s, degrees:%.1f, power:%d, pause:%v", side, degrees, power, pause)

	leftDir, rightDir := pivotDirections(side)
	return wb.run(ctx, leftDir, power, rightDir, power, pause)
}
