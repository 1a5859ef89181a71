// Package wheeled implements a differential-drive base on top of a two motor driver and an
// optional movement sensor.
package wheeled

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/operation"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

// ErrSensorInit is matched by every error caused by a movement sensor that could not be brought up.
var ErrSensorInit = errors.New("movement sensor failed to initialize")

// SensorInitError carries the cause of a failed movement sensor initialization.
type SensorInitError struct {
	Err error
}

func (e *SensorInitError) Error() string {
	if e.Err == nil {
		return ErrSensorInit.Error()
	}
	return ErrSensorInit.Error() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *SensorInitError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSensorInit.
func (e *SensorInitError) Is(target error) bool {
	return target == ErrSensorInit
}

type wheeledBase struct {
	profile *calibration.Profile
	driver  motor.Driver
	motors  *motor.Pair
	ms      movementsensor.MovementSensor
	clock   timing.Source
	logger  logging.Logger
	motions operation.Manager

	sensorMu           sync.Mutex
	sensorReady        *atomic.Bool
	loopPeriod         time.Duration
	calibrationSamples int
}

// NewWheeledBase returns a base driving the two motors of driver. ms may be nil, in which case
// DriveDistancePID fails with ErrSensorInit and every open loop motion still works.
func NewWheeledBase(
	cfg *Config,
	driver motor.Driver,
	ms movementsensor.MovementSensor,
	clock timing.Source,
	logger logging.Logger,
) (base.Base, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate("base"); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, errors.New("wheeled base needs a motor driver")
	}
	if clock == nil {
		clock = timing.NewReal()
	}
	return &wheeledBase{
		profile:            calibration.NewProfile(cfg.Corrections()),
		driver:             driver,
		motors:             motor.NewPair(driver),
		ms:                 ms,
		clock:              clock,
		logger:             logger,
		sensorReady:        atomic.NewBool(false),
		loopPeriod:         cfg.loopPeriod(),
		calibrationSamples: cfg.calibrationSamples(),
	}, nil
}

func (wb *wheeledBase) Profile() *calibration.Profile {
	return wb.profile
}

// Stop cancels the running motion, if any, waits for it to return and halts both motors.
func (wb *wheeledBase) Stop(ctx context.Context) error {
	if wb.motions.Running() {
		wb.logger.Debug("stopping the running motion")
	}
	wb.motions.Preempt(ctx)
	return wb.motors.StopAll(ctx)
}

func (wb *wheeledBase) Close(ctx context.Context) error {
	err := wb.Stop(ctx)
	if wb.ms != nil {
		err = multierr.Combine(err, wb.ms.Close(ctx))
	}
	return multierr.Combine(err, wb.driver.Close(ctx))
}

// run sets both motors, waits d and stops. The motors are stopped even when ctx is cancelled.
func (wb *wheeledBase) run(
	ctx context.Context,
	leftDir motor.Direction, leftPower uint8,
	rightDir motor.Direction, rightPower uint8,
	d time.Duration,
) (err error) {
	defer func() {
		err = multierr.Combine(err, wb.motors.StopAll(context.WithoutCancel(ctx)))
	}()
	if err := wb.motors.SetMotors(ctx, leftDir, leftPower, rightDir, rightPower); err != nil {
		return err
	}
	return wb.clock.Sleep(ctx, d)
}

// ensureSensor initializes the movement sensor once per base. A failed attempt is retried by the
// next caller.
func (wb *wheeledBase) ensureSensor(ctx context.Context) error {
	if wb.ms == nil {
		return &SensorInitError{Err: errors.New("no movement sensor configured")}
	}
	if wb.sensorReady.Load() {
		return nil
	}
	wb.sensorMu.Lock()
	defer wb.sensorMu.Unlock()
	if wb.sensorReady.Load() {
		return nil
	}
	if err := wb.ms.Initialize(ctx); err != nil {
		return &SensorInitError{Err: err}
	}
	wb.sensorReady.Store(true)
	return nil
}

// straightPowers returns the powers for a straight drive: the right wheel runs at speed and the
// left wheel at speed scaled by the steering correction for dir.
func straightPowers(c calibration.Corrections, speed float64, dir calibration.Direction) (left, right uint8) {
	l := lo.Clamp(speed*c.SteeringCorrectionFactor(speed, dir), 0, calibration.MaxPower)
	return uint8(l), uint8(speed)
}

func motorDirection(dir calibration.Direction) motor.Direction {
	if dir == calibration.Back {
		return motor.Backward
	}
	return motor.Forward
}

// pivotDirections returns the wheel directions for turning on the spot towards side.
func pivotDirections(side calibration.Side) (left, right motor.Direction) {
	left = motor.Forward
	if side == calibration.Left {
		left = motor.Backward
	}
	return left, left.Opposite()
}
