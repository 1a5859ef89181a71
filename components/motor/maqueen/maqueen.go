// Package maqueen drives the two DC motors of a DFRobot Maqueen Plus V2 over I2C.
//
// The controller takes a register address followed by direction and power byte pairs. Writing
// from register 0x00 with two pairs sets both motors in one transaction.
package maqueen

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
)

// DefaultAddress is the factory I2C address of the motor controller.
const DefaultAddress = 0x10

const (
	regLeftMotor  = 0x00
	regRightMotor = 0x02

	dirForward  = 0x00
	dirBackward = 0x01
)

// Config adds Maqueen-specific config options.
type Config struct {
	// I2CBus names the bus as understood by periph, empty opens the first bus found.
	I2CBus  string `json:"i2c_bus,omitempty"`
	Address int    `json:"address,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Address < 0 || cfg.Address > 0x7f {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("address must be a 7 bit I2C address, got %#x", cfg.Address))
	}
	return nil
}

func (cfg *Config) address() uint16 {
	if cfg.Address == 0 {
		return DefaultAddress
	}
	return uint16(cfg.Address)
}

// Driver is the Maqueen motor controller.
type Driver struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	bus    i2c.BusCloser
	logger logging.Logger
}

// New returns a Driver talking to the controller at addr on bus. The caller keeps ownership of bus.
func New(bus i2c.Bus, addr uint16, logger logging.Logger) *Driver {
	return &Driver{dev: &i2c.Dev{Bus: bus, Addr: addr}, logger: logger}
}

// Open opens the configured bus and returns a Driver that closes it on Close. The periph host
// drivers must already be loaded.
func Open(cfg *Config, logger logging.Logger) (*Driver, error) {
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open I2C bus %q for the motor controller", cfg.I2CBus)
	}
	d := New(bus, cfg.address(), logger)
	d.bus = bus
	logger.Debugf("using address %#x on bus %s for the motor controller", cfg.address(), bus)
	return d, nil
}

func directionByte(dir motor.Direction) (byte, error) {
	switch dir {
	case motor.Forward:
		return dirForward, nil
	case motor.Backward:
		return dirBackward, nil
	default:
		return 0, motor.NewUnknownDirectionError(dir)
	}
}

// packet builds the register write that sets the motors selected by id.
func packet(id motor.ID, dir motor.Direction, power uint8) ([]byte, error) {
	d, err := directionByte(dir)
	if err != nil {
		return nil, err
	}
	switch id {
	case motor.Left:
		return []byte{regLeftMotor, d, power}, nil
	case motor.Right:
		return []byte{regRightMotor, d, power}, nil
	case motor.All:
		return []byte{regLeftMotor, d, power, d, power}, nil
	default:
		return nil, motor.NewUnknownIDError(id)
	}
}

// SetPower sets the direction and power of the motors selected by id.
func (d *Driver) SetPower(ctx context.Context, id motor.ID, dir motor.Direction, power uint8) error {
	w, err := packet(id, dir, power)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.Tx(w, nil); err != nil {
		return errors.Wrapf(err, "writing %s motor", id)
	}
	return nil
}

// Stop sets the power of the motors selected by id to zero.
func (d *Driver) Stop(ctx context.Context, id motor.ID) error {
	return d.SetPower(ctx, id, motor.Forward, 0)
}

// Close stops both motors and releases the bus if this driver opened it.
func (d *Driver) Close(ctx context.Context) error {
	err := d.Stop(ctx, motor.All)
	if d.bus != nil {
		err = multierr.Combine(err, d.bus.Close())
	}
	return err
}
