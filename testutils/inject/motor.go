// Package inject provides drivers and sensors whose behaviour is supplied by function fields.
package inject

import (
	"context"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/motor"
)

// MotorDriver is an injected motor.Driver.
type MotorDriver struct {
	motor.Driver
	SetPowerFunc func(ctx context.Context, id motor.ID, dir motor.Direction, power uint8) error
	StopFunc     func(ctx context.Context, id motor.ID) error
	CloseFunc    func(ctx context.Context) error
}

// SetPower calls the injected SetPower or the real version.
func (m *MotorDriver) SetPower(ctx context.Context, id motor.ID, dir motor.Direction, power uint8) error {
	if m.SetPowerFunc == nil {
		return m.Driver.SetPower(ctx, id, dir, power)
	}
	return m.SetPowerFunc(ctx, id, dir, power)
}

// Stop calls the injected Stop or the real version.
func (m *MotorDriver) Stop(ctx context.Context, id motor.ID) error {
	if m.StopFunc == nil {
		return m.Driver.Stop(ctx, id)
	}
	return m.StopFunc(ctx, id)
}

// Close calls the injected Close or the real version.
func (m *MotorDriver) Close(ctx context.Context) error {
	if m.CloseFunc == nil {
		if m.Driver == nil {
			return nil
		}
		return m.Driver.Close(ctx)
	}
	return m.CloseFunc(ctx)
}
