// Package motor defines the two-wheel motor controller interface and the thin command layer
// that turns left/right power pairs into controller calls.
package motor

import (
	"context"
)

// ID selects the motor a command is addressed to.
type ID int

const (
	// Left is the left wheel motor.
	Left ID = iota
	// Right is the right wheel motor.
	Right
	// All addresses both motors in one command.
	All
)

func (id ID) String() string {
	switch id {
	case Left:
		return "left"
	case Right:
		return "right"
	case All:
		return "all"
	}
	return "unknown"
}

// Direction is the rotation direction of a single motor.
type Direction int

const (
	// Forward turns the wheel so the chassis moves forward.
	Forward Direction = iota
	// Backward turns the wheel so the chassis moves backward.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// A Driver is a motor controller that sets open-loop power on the wheel motors. Power is in
// [0, 255]; Stop on an already stopped motor is a no-op.
type Driver interface {
	SetPower(ctx context.Context, id ID, dir Direction, power uint8) error
	Stop(ctx context.Context, id ID) error
	Close(ctx context.Context) error
}
