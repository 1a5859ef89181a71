// Package fake implements a simulated gyroscope whose heading drifts at a fixed rate.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

// Config describes the simulated sensor.
type Config struct {
	// positive drift turns the heading clockwise
	DriftDegPerSec float64 `json:"drift_deg_per_sec,omitempty"`
	ReadLatencyMs  float64 `json:"read_latency_ms,omitempty"`
	FailInit       bool    `json:"fail_init,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ReadLatencyMs < 0 {
		return errors.Errorf("%s: read_latency_ms cannot be negative", path)
	}
	return nil
}

// MovementSensor is a fake movement sensor.
type MovementSensor struct {
	cfg    Config
	clock  timing.Source
	logger logging.Logger

	mu           sync.Mutex
	initialized  bool
	inits        int
	calibrations int
	reads        int
	zeroedAt     time.Time
	yawOffset    float64
}

// NewMovementSensor returns a simulated sensor reading time from clock.
func NewMovementSensor(cfg Config, clock timing.Source, logger logging.Logger) *MovementSensor {
	return &MovementSensor{cfg: cfg, clock: clock, logger: logger, zeroedAt: clock.Now()}
}

// Initialize fails when the config asks it to, and otherwise marks the sensor ready.
func (ms *MovementSensor) Initialize(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.inits++
	if ms.cfg.FailInit {
		return errors.New("fake movement sensor configured to fail initialization")
	}
	ms.initialized = true
	return nil
}

// Calibrate zeroes the heading.
func (ms *MovementSensor) Calibrate(ctx context.Context, samples int) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.initialized {
		return movementsensor.ErrNotInitialized
	}
	ms.calibrations++
	ms.zeroedAt = ms.clock.Now()
	ms.yawOffset = 0
	ms.logger.Debugf("calibrated over %d samples", samples)
	return nil
}

// Orientation waits the configured read latency and returns the drifted heading.
func (ms *MovementSensor) Orientation(ctx context.Context) (movementsensor.Orientation, error) {
	ms.mu.Lock()
	initialized := ms.initialized
	ms.mu.Unlock()
	if !initialized {
		return movementsensor.Orientation{}, movementsensor.ErrNotInitialized
	}
	latency := time.Duration(ms.cfg.ReadLatencyMs * float64(time.Millisecond))
	if err := ms.clock.Sleep(ctx, latency); err != nil {
		return movementsensor.Orientation{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.reads++
	elapsed := ms.clock.Now().Sub(ms.zeroedAt).Seconds()
	yaw := movementsensor.NormalizeYaw(ms.yawOffset + ms.cfg.DriftDegPerSec*elapsed)
	return movementsensor.Orientation{Yaw: yaw}, nil
}

// Rotate turns the simulated heading by deg, as if the chassis was pushed.
func (ms *MovementSensor) Rotate(deg float64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.yawOffset += deg
}

// Counts returns how many times Initialize, Calibrate and Orientation succeeded or were tried.
func (ms *MovementSensor) Counts() (inits, calibrations, reads int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.inits, ms.calibrations, ms.reads
}

// Close is a no-op.
func (ms *MovementSensor) Close(ctx context.Context) error {
	return nil
}
