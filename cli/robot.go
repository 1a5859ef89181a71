package cli

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/host/v3"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/base/wheeled"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	fakemotor "github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor/fake"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor/maqueen"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	fakems "github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor/fake"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor/mpu6050"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/config"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

// Models that can be named in the config file.
const (
	modelFake    = "fake"
	modelMaqueen = "maqueen"
	modelMPU6050 = "mpu6050"
)

// defaultConfig is used when no config file is given: the stock robot with no corrections.
func defaultConfig() *config.Config {
	return &config.Config{
		Motors:         config.Component{Model: modelMaqueen},
		MovementSensor: config.Component{Model: modelMPU6050},
	}
}

func loadConfig(ctx context.Context, path string, logger logging.Logger) (*config.Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	return config.Read(ctx, path, logger)
}

func baseConfig(conf *config.Config) (*wheeled.Config, error) {
	baseConf, err := config.TransformAttributeMap[*wheeled.Config](conf.Base)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base attributes")
	}
	if err := baseConf.Validate("base"); err != nil {
		return nil, err
	}
	return baseConf, nil
}

type robot struct {
	base  base.Base
	clock timing.Source
}

// newRobot builds the base described by conf. With simulate set every component is replaced by
// its fake and time is simulated, so motions return immediately.
func newRobot(ctx context.Context, conf *config.Config, simulate bool, logger logging.Logger) (*robot, error) {
	baseConf, err := baseConfig(conf)
	if err != nil {
		return nil, err
	}

	var clock timing.Source = timing.NewReal()
	if simulate {
		clock = timing.NewMock()
	} else if conf.Motors.Model == modelMaqueen || conf.MovementSensor.Model == modelMPU6050 {
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "failed to load host drivers")
		}
	}

	driver, err := newMotorDriver(conf.Motors, simulate, logger.Sublogger("motors"))
	if err != nil {
		return nil, err
	}
	var ms movementsensor.MovementSensor
	if conf.HasMovementSensor() {
		ms, err = newMovementSensor(conf.MovementSensor, simulate, clock, logger.Sublogger("movement_sensor"))
		if err != nil {
			return nil, multierr.Combine(err, driver.Close(ctx))
		}
	} else {
		logger.Debug("no movement sensor configured, heading hold is unavailable")
	}
	b, err := wheeled.NewWheeledBase(baseConf, driver, ms, clock, logger.Sublogger("base"))
	if err != nil {
		err = multierr.Combine(err, driver.Close(ctx))
		if ms != nil {
			err = multierr.Combine(err, ms.Close(ctx))
		}
		return nil, err
	}
	return &robot{base: b, clock: clock}, nil
}

func newMotorDriver(comp config.Component, simulate bool, logger logging.Logger) (motor.Driver, error) {
	if simulate {
		return fakemotor.NewDriver(logger), nil
	}
	switch comp.Model {
	case modelFake:
		return fakemotor.NewDriver(logger), nil
	case modelMaqueen:
		cfg, err := config.TransformAttributeMap[*maqueen.Config](comp.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "invalid motors attributes")
		}
		if err := cfg.Validate("motors"); err != nil {
			return nil, err
		}
		d, err := maqueen.Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, errors.Errorf("unknown motors model %q", comp.Model)
	}
}

func newMovementSensor(
	comp config.Component, simulate bool, clock timing.Source, logger logging.Logger,
) (movementsensor.MovementSensor, error) {
	switch comp.Model {
	case modelFake:
		cfg, err := config.TransformAttributeMap[*fakems.Config](comp.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "invalid movement_sensor attributes")
		}
		if err := cfg.Validate("movement_sensor"); err != nil {
			return nil, err
		}
		return fakems.NewMovementSensor(*cfg, clock, logger), nil
	case modelMPU6050:
		if simulate {
			return fakems.NewMovementSensor(fakems.Config{}, clock, logger), nil
		}
		cfg, err := config.TransformAttributeMap[*mpu6050.Config](comp.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "invalid movement_sensor attributes")
		}
		if err := cfg.Validate("movement_sensor"); err != nil {
			return nil, err
		}
		mpu, err := mpu6050.Open(cfg, clock, logger)
		if err != nil {
			return nil, err
		}
		return mpu, nil
	default:
		return nil, errors.Errorf("unknown movement_sensor model %q", comp.Model)
	}
}
