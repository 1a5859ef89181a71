// Package cli contains the maqueen command line tool that drives the robot from a shell.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
)

const (
	// Flags.
	flagConfig    = "config"
	flagDebug     = "debug"
	flagLogLevel  = "log-level"
	flagFake      = "fake"
	flagDirection = "direction"
	flagSpeed     = "speed"
	flagSeconds   = "seconds"
	flagDistance  = "distance"
	flagPID       = "pid"
	flagSide      = "side"
	flagDegrees   = "degrees"
	flagDuration  = "duration"
)

type runner struct {
	logger logging.Logger
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	r := &runner{logger: logging.NewBlankLogger("maqueen")}

	return &cli.App{
		Name:            "maqueen",
		Usage:           "drive a Maqueen Plus V2 robot",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level, one of debug, info, warn or error",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  flagFake,
				Usage: "use simulated motors and gyroscope with a simulated clock",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				r.logger = logging.NewDebugLogger("maqueen")
				return nil
			}
			level, err := logging.LevelFromString(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			r.logger = logging.NewLogger("maqueen")
			r.logger.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "drive",
				Usage:     "drive straight",
				UsageText: "maqueen drive [--seconds S | --distance MM [--pid]]",
				Flags: []cli.Flag{
					directionFlag(),
					speedFlag(),
					&cli.Float64Flag{
						Name:  flagSeconds,
						Usage: "stop after this many seconds",
					},
					&cli.Float64Flag{
						Name:  flagDistance,
						Usage: "stop after this many millimetres",
					},
					&cli.BoolFlag{
						Name:  flagPID,
						Usage: "hold the starting heading with the gyroscope, needs --distance",
					},
				},
				Action: r.driveAction,
			},
			{
				Name:      "turn",
				Usage:     "turn on the spot",
				UsageText: "maqueen turn --side left|right (--degrees D | --duration 500ms)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagSide,
						Usage:    "side to turn towards, left or right",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  flagDegrees,
						Usage: "angle to turn by",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "time to turn for",
					},
				},
				Action: r.turnAction,
			},
			{
				Name:   "stop",
				Usage:  "stop both motors",
				Action: r.stopAction,
			},
			{
				Name:  "estimate",
				Usage: "print the timings the calibration model computes, without moving",
				Flags: []cli.Flag{
					directionFlag(),
					speedFlag(),
					&cli.Float64Flag{
						Name:  flagDistance,
						Value: 500,
						Usage: "distance to drive in millimetres",
					},
					&cli.StringFlag{
						Name:  flagSide,
						Value: calibration.Right.String(),
						Usage: "side to turn towards",
					},
					&cli.Float64Flag{
						Name:  flagDegrees,
						Value: 90,
						Usage: "angle to turn by",
					},
				},
				Action: r.estimateAction,
			},
		},
	}
}

func directionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  flagDirection,
		Value: calibration.Forward.String(),
		Usage: "direction to drive in, forward or back",
	}
}

func speedFlag() cli.Flag {
	return &cli.Float64Flag{
		Name:  flagSpeed,
		Value: 100,
		Usage: "motor power between the minimum speed and 255",
	}
}
