// Package fake implements a motor driver that records every command it is given.
package fake

import (
	"context"
	"sync"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
)

// Command is one call received by the fake driver.
type Command struct {
	Motor     motor.ID
	Direction motor.Direction
	Power     uint8
	Stop      bool
}

// State is what a single wheel motor is currently doing.
type State struct {
	Direction motor.Direction
	Power     uint8
}

// Driver is a fake motor controller.
type Driver struct {
	Logger logging.Logger

	mu       sync.Mutex
	commands []Command
	state    map[motor.ID]State
	closed   bool
}

// NewDriver returns a Driver with both motors stopped.
func NewDriver(logger logging.Logger) *Driver {
	return &Driver{Logger: logger, state: map[motor.ID]State{}}
}

// SetPower records the command and updates the addressed motors.
func (d *Driver) SetPower(ctx context.Context, id motor.ID, dir motor.Direction, power uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != motor.Left && id != motor.Right && id != motor.All {
		return motor.NewUnknownIDError(id)
	}
	d.commands = append(d.commands, Command{Motor: id, Direction: dir, Power: power})
	d.apply(id, State{Direction: dir, Power: power})
	if d.Logger != nil {
		d.Logger.Debugw("set power", "motor", id, "direction", dir, "power", power)
	}
	return nil
}

// Stop records the command and sets the addressed motors to zero power.
func (d *Driver) Stop(ctx context.Context, id motor.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != motor.Left && id != motor.Right && id != motor.All {
		return motor.NewUnknownIDError(id)
	}
	d.commands = append(d.commands, Command{Motor: id, Stop: true})
	d.apply(id, State{})
	if d.Logger != nil {
		d.Logger.Debugw("stop", "motor", id)
	}
	return nil
}

func (d *Driver) apply(id motor.ID, s State) {
	if d.state == nil {
		d.state = map[motor.ID]State{}
	}
	if id == motor.All {
		d.state[motor.Left] = s
		d.state[motor.Right] = s
		return
	}
	d.state[id] = s
}

// Commands returns every command received so far, oldest first.
func (d *Driver) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// Reset forgets the recorded commands but keeps the motor state.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = nil
}

// State returns what the motor id is doing.
func (d *Driver) State(id motor.ID) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[id]
}

// IsPowered reports whether either motor has non-zero power.
func (d *Driver) IsPowered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[motor.Left].Power > 0 || d.state[motor.Right].Power > 0
}

// Close stops both motors.
func (d *Driver) Close(ctx context.Context) error {
	if err := d.Stop(ctx, motor.All); err != nil {
		return err
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
