package wheeled

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/control"
)

// DriveDistancePID drives distanceMm in dir while steering back to the heading measured at the
// start. The run time is the same as DriveDistance, the sensor only affects the wheel split.
func (wb *wheeledBase) DriveDistancePID(
	ctx context.Context, dir calibration.Direction, speed, distanceMm float64,
) error {
	if distanceMm <= 0 {
		return base.NewInvalidArgumentError("distance must be positive, got %vmm", distanceMm)
	}
	ctx, done := wb.motions.Start(ctx)
	defer done()

	c := wb.profile.Snapshot()
	speed = c.ClampSpeed(speed)
	runTime := c.DriveTime(speed, distanceMm, dir)
	wb.logger.Debugf("received a DriveDistancePID with direction:%s, speed:%.2f, distance:%.1fmm, run time:%v",
		dir, speed, distanceMm, runTime)

	if err := wb.ensureSensor(ctx); err != nil {
		return err
	}
	if err := wb.ms.Calibrate(ctx, wb.calibrationSamples); err != nil {
		return errors.Wrap(err, "calibrating movement sensor")
	}
	return wb.holdHeading(ctx, motorDirection(dir), speed, runTime)
}

// holdHeading runs the heading loop until runTime has passed and then stops the motors.
func (wb *wheeledBase) holdHeading(
	ctx context.Context, dir motor.Direction, speed float64, runTime time.Duration,
) (err error) {
	defer func() {
		err = multierr.Combine(err, wb.motors.StopAll(context.WithoutCancel(ctx)))
	}()

	deadline := wb.clock.Now().Add(runTime)
	start, err := wb.ms.Orientation(ctx)
	if err != nil {
		return errors.Wrap(err, "reading starting heading")
	}
	pid := control.NewHeadingPID(start.Yaw)

	iterations := 0
	for wb.clock.Now().Before(deadline) {
		iterStart := wb.clock.Now()

		o, err := wb.ms.Orientation(ctx)
		if err != nil {
			return errors.Wrap(err, "reading heading")
		}
		step := pid.Next(o.Yaw)
		left, right := control.WheelSpeeds(speed, step.Correction)
		wb.logger.Debugw("heading hold",
			"heading", o.Yaw,
			"error", step.Error,
			"errorSum", step.ErrorSum,
			"errorChange", step.ErrorChange,
			"correction", step.Correction,
			"left", left,
			"right", right,
		)
		if err := wb.motors.SetMotors(ctx, dir, left, dir, right); err != nil {
			return err
		}
		iterations++

		now := wb.clock.Now()
		wait := wb.loopPeriod - now.Sub(iterStart)
		if remaining := deadline.Sub(now); wait > remaining {
			wait = remaining
		}
		if wait > 0 {
			if err := wb.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	wb.logger.Debugf("heading hold finished after %d iterations, target:%.2f", iterations, pid.Target())
	return nil
}
