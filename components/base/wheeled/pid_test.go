package wheeled

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor/fake"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	fakems "github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor/fake"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/testutils/inject"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

// scriptedSensor returns the yaws in order, advancing clk by step on every read.
func scriptedSensor(clk *timing.Mock, step time.Duration, yaws ...float64) *inject.MovementSensor {
	reads := 0
	return &inject.MovementSensor{
		InitializeFunc: func(ctx context.Context) error { return nil },
		CalibrateFunc:  func(ctx context.Context, samples int) error { return nil },
		OrientationFunc: func(ctx context.Context) (movementsensor.Orientation, error) {
			clk.Add(step)
			yaw := yaws[len(yaws)-1]
			if reads < len(yaws) {
				yaw = yaws[reads]
			}
			reads++
			return movementsensor.Orientation{Yaw: yaw}, nil
		},
	}
}

func TestDriveDistancePIDCorrections(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	driver := fake.NewDriver(logger)
	clk := timing.NewMock()
	ms := scriptedSensor(clk, 10*time.Millisecond, 0, 5, 5, -20)

	b, err := NewWheeledBase(nil, driver, ms, clk, logger)
	test.That(t, err, test.ShouldBeNil)

	// 5.5mm at speed 100 runs for just over 30ms, which leaves room for three samples
	test.That(t, b.DriveDistancePID(ctx, calibration.Forward, 100, 5.5), test.ShouldBeNil)
	test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
		{Motor: motor.Left, Direction: motor.Forward, Power: 47},
		{Motor: motor.Right, Direction: motor.Forward, Power: 152},
		{Motor: motor.Left, Direction: motor.Forward, Power: 49},
		{Motor: motor.Right, Direction: motor.Forward, Power: 150},
		{Motor: motor.Left, Direction: motor.Forward, Power: 255},
		{Motor: motor.Right, Direction: motor.Forward, Power: 0},
		{Motor: motor.All, Stop: true},
	})

	iterations := logs.FilterMessage("heading hold").All()
	test.That(t, iterations, test.ShouldHaveLength, 3)
	fields := iterations[2].ContextMap()
	test.That(t, fields["heading"], test.ShouldEqual, -20.0)
	test.That(t, fields["error"], test.ShouldEqual, 20.0)
	test.That(t, fields["errorChange"], test.ShouldEqual, 25.0)
	test.That(t, fields["correction"], test.ShouldAlmostEqual, 211.5)
}

// chassisSensor models a robot driving forward on driver: the heading turns clockwise at gain
// degrees per second for every unit of power the left wheel has over the right one. The heading
// is pushed by kick degrees on the read after the target is taken.
func chassisSensor(clk *timing.Mock, driver *fake.Driver, gain, kick float64) *inject.MovementSensor {
	var (
		yaw      float64
		reads    int
		lastRead = clk.Now()
	)
	return &inject.MovementSensor{
		InitializeFunc: func(ctx context.Context) error { return nil },
		CalibrateFunc:  func(ctx context.Context, samples int) error { return nil },
		OrientationFunc: func(ctx context.Context) (movementsensor.Orientation, error) {
			clk.Add(time.Millisecond)
			now := clk.Now()
			left := float64(driver.State(motor.Left).Power)
			right := float64(driver.State(motor.Right).Power)
			yaw += gain * (left - right) * now.Sub(lastRead).Seconds()
			lastRead = now
			reads++
			if reads == 2 {
				yaw += kick
			}
			return movementsensor.Orientation{Yaw: movementsensor.NormalizeYaw(yaw)}, nil
		},
	}
}

func TestDriveDistancePIDHoldsHeading(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	driver := fake.NewDriver(logger)
	clk := timing.NewMock()
	ms := chassisSensor(clk, driver, 0.5, 15)

	b, err := NewWheeledBase(nil, driver, ms, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.DriveDistancePID(ctx, calibration.Forward, 100, 500), test.ShouldBeNil)

	iterations := logs.FilterMessage("heading hold").All()
	test.That(t, len(iterations), test.ShouldBeGreaterThan, 100)
	headingError := func(i int) float64 {
		return iterations[i].ContextMap()["error"].(float64)
	}
	test.That(t, headingError(0), test.ShouldEqual, -15.0)
	// a clockwise kick is answered with a stronger right wheel
	first := driver.Commands()[:2]
	test.That(t, first[0].Power, test.ShouldBeLessThan, first[1].Power)

	// the kick is steered out and the heading stays near the target
	for i := 1; i < len(iterations); i++ {
		test.That(t, math.Abs(headingError(i)), test.ShouldBeLessThan, 15)
	}
	test.That(t, math.Abs(headingError(len(iterations)-1)), test.ShouldBeLessThan, 1)
}

func TestDriveDistancePIDBackward(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	driver := fake.NewDriver(logger)
	clk := timing.NewMock()
	ms := scriptedSensor(clk, 10*time.Millisecond, 0)

	b, err := NewWheeledBase(nil, driver, ms, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.DriveDistancePID(ctx, calibration.Back, 100, 5.5), test.ShouldBeNil)

	for _, cmd := range driver.Commands() {
		if !cmd.Stop {
			test.That(t, cmd.Direction, test.ShouldEqual, motor.Backward)
			test.That(t, cmd.Power, test.ShouldEqual, uint8(100))
		}
	}
}

func TestDriveDistancePIDTerminates(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	driver := fake.NewDriver(logger)
	clk := timing.NewMock()
	ms := fakems.NewMovementSensor(fakems.Config{DriftDegPerSec: 3, ReadLatencyMs: 3}, clk, logger)

	b, err := NewWheeledBase(nil, driver, ms, clk, logger)
	test.That(t, err, test.ShouldBeNil)

	runTime := calibration.TimeForDistance(100, 500)
	start := clk.Now()
	test.That(t, b.DriveDistancePID(ctx, calibration.Forward, 100, 500), test.ShouldBeNil)
	elapsed := clk.Now().Sub(start)
	test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, runTime)
	test.That(t, elapsed, test.ShouldBeLessThanOrEqualTo, runTime+defaultLoopPeriod)

	cmds := driver.Commands()
	test.That(t, cmds[len(cmds)-1], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
	test.That(t, driver.IsPowered(), test.ShouldBeFalse)

	var lefts int
	for _, cmd := range cmds[:len(cmds)-1] {
		test.That(t, cmd.Stop, test.ShouldBeFalse)
		if cmd.Motor == motor.Left {
			lefts++
		}
	}
	// one iteration per 10ms period
	test.That(t, lefts, test.ShouldBeBetweenOrEqual, 273, 274)

	// drift carries the heading past the target, so the right wheel is driven harder
	last := cmds[len(cmds)-3:]
	test.That(t, last[0].Power, test.ShouldBeLessThan, last[1].Power)

	inits, calibrations, _ := ms.Counts()
	test.That(t, inits, test.ShouldEqual, 1)
	test.That(t, calibrations, test.ShouldEqual, 1)
}

func TestDriveDistancePIDSensorInit(t *testing.T) {
	ctx := context.Background()

	t.Run("no sensor", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		err := b.DriveDistancePID(ctx, calibration.Forward, 100, 500)
		test.That(t, errors.Is(err, ErrSensorInit), test.ShouldBeTrue)
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})

	t.Run("failed init does not move", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		clk := timing.NewMock()
		ms := fakems.NewMovementSensor(fakems.Config{FailInit: true}, clk, logger)
		driver := fake.NewDriver(logger)
		b, err := NewWheeledBase(nil, driver, ms, clk, logger)
		test.That(t, err, test.ShouldBeNil)

		err = b.DriveDistancePID(ctx, calibration.Forward, 100, 500)
		test.That(t, errors.Is(err, ErrSensorInit), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "configured to fail")
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})

	t.Run("initializes once", func(t *testing.T) {
		clk := timing.NewMock()
		ms := scriptedSensor(clk, time.Millisecond, 0)
		inits := 0
		ms.InitializeFunc = func(ctx context.Context) error {
			inits++
			if inits == 1 {
				return errors.New("no ack")
			}
			return nil
		}
		var samples []int
		ms.CalibrateFunc = func(ctx context.Context, n int) error {
			samples = append(samples, n)
			return nil
		}
		b, driver, _ := newTestBaseOn(t, clk, &Config{CalibrationSamples: 4}, ms)

		err := b.DriveDistancePID(ctx, calibration.Forward, 100, 5)
		test.That(t, errors.Is(err, ErrSensorInit), test.ShouldBeTrue)
		test.That(t, driver.Commands(), test.ShouldBeEmpty)

		test.That(t, b.DriveDistancePID(ctx, calibration.Forward, 100, 5), test.ShouldBeNil)
		test.That(t, b.DriveDistancePID(ctx, calibration.Forward, 100, 5), test.ShouldBeNil)
		test.That(t, inits, test.ShouldEqual, 2)
		test.That(t, samples, test.ShouldResemble, []int{4, 4})
	})

	t.Run("concurrent callers initialize once", func(t *testing.T) {
		ms := scriptedSensor(timing.NewMock(), time.Millisecond, 0)
		inits := atomic.NewInt32(0)
		release := make(chan struct{})
		ms.InitializeFunc = func(ctx context.Context) error {
			inits.Inc()
			<-release
			return nil
		}
		b, _, _ := newTestBase(t, nil, ms)
		wb := b.(*wheeledBase)

		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				errs <- wb.ensureSensor(ctx)
			}()
		}
		close(release)
		test.That(t, <-errs, test.ShouldBeNil)
		test.That(t, <-errs, test.ShouldBeNil)
		test.That(t, inits.Load(), test.ShouldEqual, int32(1))
	})

	t.Run("failed calibration does not move", func(t *testing.T) {
		clk := timing.NewMock()
		ms := scriptedSensor(clk, time.Millisecond, 0)
		ms.CalibrateFunc = func(ctx context.Context, samples int) error {
			return errors.New("sensor busy")
		}
		b, driver, _ := newTestBase(t, nil, ms)
		err := b.DriveDistancePID(ctx, calibration.Forward, 100, 5)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "calibrating movement sensor")
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})
}

func TestDriveDistancePIDReadFailure(t *testing.T) {
	ctx := context.Background()
	clk := timing.NewMock()
	ms := scriptedSensor(clk, 10*time.Millisecond, 0)
	reads := 0
	ms.OrientationFunc = func(ctx context.Context) (movementsensor.Orientation, error) {
		reads++
		clk.Add(10 * time.Millisecond)
		if reads == 3 {
			return movementsensor.Orientation{}, errors.New("i2c timeout")
		}
		return movementsensor.Orientation{}, nil
	}
	b, driver, _ := newTestBaseOn(t, clk, nil, ms)

	err := b.DriveDistancePID(ctx, calibration.Forward, 100, 500)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "i2c timeout")
	test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
		{Motor: motor.Left, Direction: motor.Forward, Power: 100},
		{Motor: motor.Right, Direction: motor.Forward, Power: 100},
		{Motor: motor.All, Stop: true},
	})
}

func TestDriveDistancePIDCancel(t *testing.T) {
	clk := timing.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ms := scriptedSensor(clk, 10*time.Millisecond, 0)
	reads := 0
	ms.OrientationFunc = func(ctx context.Context) (movementsensor.Orientation, error) {
		reads++
		clk.Add(time.Millisecond)
		if reads == 4 {
			cancel()
		}
		return movementsensor.Orientation{}, nil
	}
	b, driver, _ := newTestBaseOn(t, clk, nil, ms)

	err := b.DriveDistancePID(ctx, calibration.Forward, 100, 500)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, reads, test.ShouldEqual, 4)
	cmds := driver.Commands()
	test.That(t, cmds, test.ShouldHaveLength, 7)
	test.That(t, cmds[6], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
}

func TestDriveDistancePIDInvalidDistance(t *testing.T) {
	b, driver, _ := newTestBase(t, nil, &inject.MovementSensor{})
	err := b.DriveDistancePID(context.Background(), calibration.Forward, 100, -3)
	test.That(t, errors.Is(err, base.ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, driver.Commands(), test.ShouldBeEmpty)
}
