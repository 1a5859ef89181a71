package wheeled

import (
	"context"
	"time"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
)

// Drive starts both motors and returns, leaving them running until the next command.
func (wb *wheeledBase) Drive(ctx context.Context, dir calibration.Direction, speed float64) error {
	wb.motions.Preempt(ctx)
	c := wb.profile.Snapshot()
	speed = c.ClampSpeed(speed)
	left, right := straightPowers(c, speed, dir)
	wb.logger.Debugf("received a Drive with direction:%s, speed:%.2f (left:%d, right:%d)", dir, speed, left, right)

	md := motorDirection(dir)
	return wb.motors.SetMotors(ctx, md, left, md, right)
}

func (wb *wheeledBase) DriveTime(ctx context.Context, dir calibration.Direction, speed, seconds float64) error {
	if seconds < 0 {
		return base.NewInvalidArgumentError("drive time cannot be negative, got %vs", seconds)
	}
	ctx, done := wb.motions.Start(ctx)
	defer done()

	c := wb.profile.Snapshot()
	speed = c.ClampSpeed(speed)
	left, right := straightPowers(c, speed, dir)
	d := time.Duration(seconds * float64(time.Second))
	wb.logger.Debugf("received a DriveTime with direction:%s, speed:%.2f, duration:%v", dir, speed, d)

	md := motorDirection(dir)
	return wb.run(ctx, md, left, md, right, d)
}

func (wb *wheeledBase) DriveDistance(ctx context.Context, dir calibration.Direction, speed, distanceMm float64) error {
	if distanceMm <= 0 {
		return base.NewInvalidArgumentError("distance must be positive, got %vmm", distanceMm)
	}
	ctx, done := wb.motions.Start(ctx)
	defer done()

	c := wb.profile.Snapshot()
	speed = c.ClampSpeed(speed)
	left, right := straightPowers(c, speed, dir)
	d := c.DriveTime(speed, distanceMm, dir)
	wb.logger.Debugf("received a DriveDistance with direction:%s, speed:%.2f, distance:%.1fmm, run time:%v",
		dir, speed, distanceMm, d)

	md := motorDirection(dir)
	return wb.run(ctx, md, left, md, right, d)
}
