package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func parseDirection(s string) (calibration.Direction, error) {
	switch strings.ToLower(s) {
	case "forward", "f":
		return calibration.Forward, nil
	case "back", "backward", "b":
		return calibration.Back, nil
	default:
		return 0, errors.Errorf("unknown direction %q, expected forward or back", s)
	}
}

func parseSide(s string) (calibration.Side, error) {
	switch strings.ToLower(s) {
	case "left", "l":
		return calibration.Left, nil
	case "right", "r":
		return calibration.Right, nil
	default:
		return 0, errors.Errorf("unknown side %q, expected left or right", s)
	}
}

// withRobot builds the configured robot, runs fn and closes the robot, which stops the motors.
func (r *runner) withRobot(c *cli.Context, fn func(ctx context.Context, rob *robot) error) (err error) {
	conf, err := loadConfig(c.Context, c.String(flagConfig), r.logger)
	if err != nil {
		return err
	}
	rob, err := newRobot(c.Context, conf, c.Bool(flagFake), r.logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, rob.base.Close(context.WithoutCancel(c.Context)))
	}()
	return fn(c.Context, rob)
}

func (r *runner) driveAction(c *cli.Context) error {
	dir, err := parseDirection(c.String(flagDirection))
	if err != nil {
		return err
	}
	if c.IsSet(flagSeconds) && c.IsSet(flagDistance) {
		return errors.New("use either --seconds or --distance, not both")
	}
	if c.Bool(flagPID) && !c.IsSet(flagDistance) {
		return errors.New("--pid needs --distance")
	}
	speed := c.Float64(flagSpeed)

	return r.withRobot(c, func(ctx context.Context, rob *robot) error {
		start := rob.clock.Now()
		var err error
		switch {
		case c.Bool(flagPID):
			err = rob.base.DriveDistancePID(ctx, dir, speed, c.Float64(flagDistance))
		case c.IsSet(flagDistance):
			err = rob.base.DriveDistance(ctx, dir, speed, c.Float64(flagDistance))
		case c.IsSet(flagSeconds):
			err = rob.base.DriveTime(ctx, dir, speed, c.Float64(flagSeconds))
		default:
			if err := rob.base.Drive(ctx, dir, speed); err != nil {
				return err
			}
			printf(c.App.Writer, "driving %s, interrupt to stop", dir)
			<-ctx.Done()
			return rob.base.Stop(context.WithoutCancel(ctx))
		}
		if err != nil {
			return err
		}
		printf(c.App.Writer, "drove %s at speed %.0f for %v", dir, speed, rob.clock.Now().Sub(start))
		return nil
	})
}

func (r *runner) turnAction(c *cli.Context) error {
	side, err := parseSide(c.String(flagSide))
	if err != nil {
		return err
	}
	if c.IsSet(flagDegrees) == c.IsSet(flagDuration) {
		return errors.New("use exactly one of --degrees or --duration")
	}

	return r.withRobot(c, func(ctx context.Context, rob *robot) error {
		start := rob.clock.Now()
		var err error
		if c.IsSet(flagDegrees) {
			err = rob.base.Turn(ctx, side, c.Float64(flagDegrees))
		} else {
			err = rob.base.TurnForTime(ctx, side, c.Duration(flagDuration))
		}
		if err != nil {
			return err
		}
		printf(c.App.Writer, "turned %s for %v", side, rob.clock.Now().Sub(start))
		return nil
	})
}

func (r *runner) stopAction(c *cli.Context) error {
	return r.withRobot(c, func(ctx context.Context, rob *robot) error {
		if err := rob.base.Stop(ctx); err != nil {
			return err
		}
		printf(c.App.Writer, "stopped")
		return nil
	})
}

func (r *runner) estimateAction(c *cli.Context) error {
	dir, err := parseDirection(c.String(flagDirection))
	if err != nil {
		return err
	}
	side, err := parseSide(c.String(flagSide))
	if err != nil {
		return err
	}
	conf, err := loadConfig(c.Context, c.String(flagConfig), r.logger)
	if err != nil {
		return err
	}
	baseConf, err := baseConfig(conf)
	if err != nil {
		return err
	}
	corrections := baseConf.Corrections()
	speed := corrections.ClampSpeed(c.Float64(flagSpeed))
	distance := c.Float64(flagDistance)
	degrees := c.Float64(flagDegrees)

	printf(c.App.Writer, "drive %s %.0fmm at speed %.0f: %s",
		dir, distance, speed, millis(corrections.DriveTime(speed, distance, dir)))
	pause, err := corrections.TurnPause(degrees, side)
	if err != nil {
		printf(c.App.Writer, "turn %s %.0f degrees at turn speed %.0f: %v", side, degrees, corrections.TurnSpeed, err)
	} else {
		printf(c.App.Writer, "turn %s %.0f degrees at turn speed %.0f: %s", side, degrees, corrections.TurnSpeed, millis(pause))
	}
	printf(c.App.Writer, "wheels rotate %.0f degrees at speed %.0f in %s",
		degrees, speed, millis(calibration.TimeForDegrees(speed, degrees)))
	return nil
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
