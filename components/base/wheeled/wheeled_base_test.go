package wheeled

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor/fake"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/testutils/inject"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

func newTestBase(t *testing.T, cfg *Config, ms movementsensor.MovementSensor) (base.Base, *fake.Driver, *timing.Mock) {
	t.Helper()
	return newTestBaseOn(t, timing.NewMock(), cfg, ms)
}

func newTestBaseOn(
	t *testing.T, clk *timing.Mock, cfg *Config, ms movementsensor.MovementSensor,
) (base.Base, *fake.Driver, *timing.Mock) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	driver := fake.NewDriver(logger)
	b, err := NewWheeledBase(cfg, driver, ms, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	return b, driver, clk
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func TestNewWheeledBase(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := NewWheeledBase(&Config{}, nil, nil, timing.NewMock(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor driver")

	_, err = NewWheeledBase(&Config{MinSpeed: 300}, fake.NewDriver(logger), nil, timing.NewMock(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_speed")

	b, err := NewWheeledBase(nil, fake.NewDriver(logger), nil, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Profile().TurnSpeed(), test.ShouldEqual, float64(calibration.DefaultTurnSpeed))
	test.That(t, b.Profile().MinSpeed(), test.ShouldEqual, float64(calibration.DefaultMinSpeed))
}

func TestDrive(t *testing.T) {
	ctx := context.Background()

	t.Run("no correction drives both wheels equally", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		test.That(t, b.Drive(ctx, calibration.Forward, 30), test.ShouldBeNil)
		test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
			{Motor: motor.Left, Direction: motor.Forward, Power: 30},
			{Motor: motor.Right, Direction: motor.Forward, Power: 30},
		})
		test.That(t, driver.IsPowered(), test.ShouldBeTrue)
	})

	t.Run("steering correction scales the left wheel", func(t *testing.T) {
		b, driver, _ := newTestBase(t, &Config{SteeringCorrectionForward: 5}, nil)
		test.That(t, b.Drive(ctx, calibration.Forward, 100), test.ShouldBeNil)
		test.That(t, driver.State(motor.Left), test.ShouldResemble, fake.State{Direction: motor.Forward, Power: 105})
		test.That(t, driver.State(motor.Right), test.ShouldResemble, fake.State{Direction: motor.Forward, Power: 100})

		// the back correction is independent
		test.That(t, b.Drive(ctx, calibration.Back, 100), test.ShouldBeNil)
		test.That(t, driver.State(motor.Left), test.ShouldResemble, fake.State{Direction: motor.Backward, Power: 100})
	})

	t.Run("speed is clamped", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		test.That(t, b.Drive(ctx, calibration.Forward, 10), test.ShouldBeNil)
		test.That(t, driver.State(motor.Right).Power, test.ShouldEqual, uint8(30))
		test.That(t, b.Drive(ctx, calibration.Forward, 900), test.ShouldBeNil)
		test.That(t, driver.State(motor.Right).Power, test.ShouldEqual, uint8(255))
		test.That(t, driver.State(motor.Left).Power, test.ShouldEqual, uint8(255))
	})

	t.Run("left power never exceeds the controller range", func(t *testing.T) {
		b, driver, _ := newTestBase(t, &Config{SteeringCorrectionForward: 50}, nil)
		test.That(t, b.Drive(ctx, calibration.Forward, 250), test.ShouldBeNil)
		test.That(t, driver.State(motor.Left).Power, test.ShouldEqual, uint8(255))
		test.That(t, driver.State(motor.Right).Power, test.ShouldEqual, uint8(250))
	})

	t.Run("stop halts a running drive", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		test.That(t, b.Drive(ctx, calibration.Forward, 60), test.ShouldBeNil)
		test.That(t, b.Stop(ctx), test.ShouldBeNil)
		test.That(t, driver.IsPowered(), test.ShouldBeFalse)
	})
}

func TestDriveTime(t *testing.T) {
	ctx := context.Background()
	b, driver, clk := newTestBase(t, nil, nil)

	test.That(t, b.DriveTime(ctx, calibration.Back, 80, 1.5), test.ShouldBeNil)
	test.That(t, clk.Sleeps(), test.ShouldResemble, []time.Duration{1500 * time.Millisecond})
	test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
		{Motor: motor.Left, Direction: motor.Backward, Power: 80},
		{Motor: motor.Right, Direction: motor.Backward, Power: 80},
		{Motor: motor.All, Stop: true},
	})

	driver.Reset()
	err := b.DriveTime(ctx, calibration.Forward, 80, -1)
	test.That(t, errors.Is(err, base.ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, driver.Commands(), test.ShouldBeEmpty)
}

func TestDriveDistance(t *testing.T) {
	ctx := context.Background()

	t.Run("run time comes from the velocity model", func(t *testing.T) {
		b, driver, clk := newTestBase(t, nil, nil)
		test.That(t, b.DriveDistance(ctx, calibration.Forward, 100, 500), test.ShouldBeNil)
		sleeps := clk.Sleeps()
		test.That(t, sleeps, test.ShouldHaveLength, 1)
		test.That(t, toMs(sleeps[0]), test.ShouldAlmostEqual, 2735.69, 0.01)
		test.That(t, driver.IsPowered(), test.ShouldBeFalse)
		cmds := driver.Commands()
		test.That(t, cmds[len(cmds)-1], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
	})

	t.Run("each direction uses its own distance correction", func(t *testing.T) {
		b, _, clk := newTestBase(t, &Config{DistanceCorrectionForward: 10, DistanceCorrectionBack: -10}, nil)
		test.That(t, b.DriveDistance(ctx, calibration.Forward, 100, 500), test.ShouldBeNil)
		test.That(t, b.DriveDistance(ctx, calibration.Back, 100, 500), test.ShouldBeNil)
		sleeps := clk.Sleeps()
		test.That(t, toMs(sleeps[0]), test.ShouldAlmostEqual, 2735.69*1.1, 0.01)
		test.That(t, toMs(sleeps[1]), test.ShouldAlmostEqual, 2735.69*0.9, 0.01)
	})

	t.Run("distance must be positive", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		err := b.DriveDistance(ctx, calibration.Forward, 100, 0)
		test.That(t, errors.Is(err, base.ErrInvalidArgument), test.ShouldBeTrue)
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})

	t.Run("cancelled context still stops", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		err := b.DriveDistance(cancelCtx, calibration.Forward, 100, 500)
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
		test.That(t, driver.IsPowered(), test.ShouldBeFalse)
		cmds := driver.Commands()
		test.That(t, cmds[len(cmds)-1], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
	})

	t.Run("driver failure still stops", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		var stops int
		driver := &inject.MotorDriver{
			SetPowerFunc: func(ctx context.Context, id motor.ID, dir motor.Direction, power uint8) error {
				return errors.New("bus error")
			},
			StopFunc: func(ctx context.Context, id motor.ID) error {
				stops++
				return nil
			},
		}
		b, err := NewWheeledBase(nil, driver, nil, timing.NewMock(), logger)
		test.That(t, err, test.ShouldBeNil)
		err = b.DriveDistance(ctx, calibration.Forward, 100, 500)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "setting left motor")
		test.That(t, stops, test.ShouldEqual, 1)
	})
}

func TestTurnForTime(t *testing.T) {
	ctx := context.Background()
	b, driver, clk := newTestBase(t, &Config{TurnCorrectionLeft: 50}, nil)

	test.That(t, b.TurnForTime(ctx, calibration.Left, 500*time.Millisecond), test.ShouldBeNil)
	// the turn correction is not applied to timed turns
	test.That(t, clk.Sleeps(), test.ShouldResemble, []time.Duration{500 * time.Millisecond})
	test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
		{Motor: motor.Left, Direction: motor.Backward, Power: 50},
		{Motor: motor.Right, Direction: motor.Forward, Power: 50},
		{Motor: motor.All, Stop: true},
	})

	driver.Reset()
	err := b.TurnForTime(ctx, calibration.Right, -time.Second)
	test.That(t, errors.Is(err, base.ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, driver.Commands(), test.ShouldBeEmpty)
}

func TestTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("pause comes from the turn model", func(t *testing.T) {
		b, driver, clk := newTestBase(t, nil, nil)
		test.That(t, b.Turn(ctx, calibration.Right, 90), test.ShouldBeNil)
		sleeps := clk.Sleeps()
		test.That(t, sleeps, test.ShouldHaveLength, 1)
		test.That(t, toMs(sleeps[0]), test.ShouldAlmostEqual, 460/0.635, 0.01)
		test.That(t, driver.Commands(), test.ShouldResemble, []fake.Command{
			{Motor: motor.Left, Direction: motor.Forward, Power: 50},
			{Motor: motor.Right, Direction: motor.Backward, Power: 50},
			{Motor: motor.All, Stop: true},
		})
	})

	t.Run("profile changes apply to the next turn", func(t *testing.T) {
		b, driver, clk := newTestBase(t, nil, nil)
		b.Profile().SetTurnSpeed(100)
		b.Profile().SetTurnCorrectionOffset(calibration.Left, 20)
		test.That(t, b.Turn(ctx, calibration.Left, 90), test.ShouldBeNil)
		test.That(t, toMs(clk.Sleeps()[0]), test.ShouldAlmostEqual, 480/1.005, 0.01)
		test.That(t, driver.Commands()[0], test.ShouldResemble,
			fake.Command{Motor: motor.Left, Direction: motor.Backward, Power: 100})
	})

	t.Run("degenerate pause does not move", func(t *testing.T) {
		b, driver, _ := newTestBase(t, &Config{TurnOffsetLeftMs: -1000}, nil)
		err := b.Turn(ctx, calibration.Left, 90)
		test.That(t, errors.Is(err, calibration.ErrDegenerateTurn), test.ShouldBeTrue)
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})

	t.Run("angle must be positive", func(t *testing.T) {
		b, driver, _ := newTestBase(t, nil, nil)
		err := b.Turn(ctx, calibration.Left, 0)
		test.That(t, errors.Is(err, base.ErrInvalidArgument), test.ShouldBeTrue)
		test.That(t, driver.Commands(), test.ShouldBeEmpty)
	})
}

func TestProfileSettersAreIdempotent(t *testing.T) {
	b, _, _ := newTestBase(t, nil, nil)
	b.Profile().SetSteeringCorrection(calibration.Forward, 5)
	b.Profile().SetSteeringCorrection(calibration.Forward, 5)
	test.That(t, b.Profile().SteeringCorrection(calibration.Forward), test.ShouldEqual, 5.0)
	test.That(t, b.Profile().SteeringCorrection(calibration.Back), test.ShouldEqual, 0.0)
}

func TestStopWaitsForRunningMotion(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	driver := fake.NewDriver(logger)
	b, err := NewWheeledBase(nil, driver, nil, timing.NewReal(), logger)
	test.That(t, err, test.ShouldBeNil)

	done := make(chan error, 1)
	go func() {
		done <- b.DriveTime(ctx, calibration.Forward, 100, 3600)
	}()
	for !driver.IsPowered() {
		time.Sleep(time.Millisecond)
	}

	test.That(t, b.Stop(ctx), test.ShouldBeNil)
	// the drive has already stopped its motors when Stop returns
	cmds := driver.Commands()
	test.That(t, cmds, test.ShouldHaveLength, 4)
	test.That(t, cmds[2], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
	test.That(t, cmds[3], test.ShouldResemble, fake.Command{Motor: motor.All, Stop: true})
	test.That(t, errors.Is(<-done, context.Canceled), test.ShouldBeTrue)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	var sensorClosed bool
	ms := &inject.MovementSensor{CloseFunc: func(ctx context.Context) error {
		sensorClosed = true
		return nil
	}}
	b, driver, _ := newTestBase(t, nil, ms)
	test.That(t, b.Drive(ctx, calibration.Forward, 60), test.ShouldBeNil)
	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, driver.IsPowered(), test.ShouldBeFalse)
	test.That(t, driver.Closed(), test.ShouldBeTrue)
	test.That(t, sensorClosed, test.ShouldBeTrue)
}
