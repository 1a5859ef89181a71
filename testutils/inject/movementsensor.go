package inject

import (
	"context"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
)

// MovementSensor is an injected MovementSensor.
type MovementSensor struct {
	movementsensor.MovementSensor
	InitializeFunc  func(ctx context.Context) error
	CalibrateFunc   func(ctx context.Context, samples int) error
	OrientationFunc func(ctx context.Context) (movementsensor.Orientation, error)
	CloseFunc       func(ctx context.Context) error
}

// Initialize calls the injected Initialize or the real version.
func (i *MovementSensor) Initialize(ctx context.Context) error {
	if i.InitializeFunc == nil {
		return i.MovementSensor.Initialize(ctx)
	}
	return i.InitializeFunc(ctx)
}

// Calibrate calls the injected Calibrate or the real version.
func (i *MovementSensor) Calibrate(ctx context.Context, samples int) error {
	if i.CalibrateFunc == nil {
		return i.MovementSensor.Calibrate(ctx, samples)
	}
	return i.CalibrateFunc(ctx, samples)
}

// Orientation calls the injected Orientation or the real version.
func (i *MovementSensor) Orientation(ctx context.Context) (movementsensor.Orientation, error) {
	if i.OrientationFunc == nil {
		return i.MovementSensor.Orientation(ctx)
	}
	return i.OrientationFunc(ctx)
}

// Close calls the injected Close or the real version.
func (i *MovementSensor) Close(ctx context.Context) error {
	if i.CloseFunc == nil {
		if i.MovementSensor == nil {
			return nil
		}
		return i.MovementSensor.Close(ctx)
	}
	return i.CloseFunc(ctx)
}
