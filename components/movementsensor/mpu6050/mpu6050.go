// Package mpu6050 implements the movement sensor for an MPU-6050 6-axis gyroscope and
// accelerometer. A description of the I2C registers is at
// https://invensense.tdk.com/wp-content/uploads/2015/02/MPU-6000-Register-Map1.pdf
//
// Yaw is the integral of the gyroscope Z rate, corrected by the bias measured in Calibrate. The
// chip is expected to be mounted with Z pointing up, where a positive Z rate is a counter-clockwise
// turn, so the rate is subtracted to make yaw grow clockwise. Pitch and roll come from the
// direction of gravity in the accelerometer reading.
//
// The chip has two possible I2C addresses, which can be selected by wiring the AD0 pin to either
// hot or ground:
//   - if AD0 is wired to ground, it uses the default I2C address of 0x68
//   - if AD0 is wired to hot, it uses the alternate I2C address of 0x69
//
// If you use the alternate address, your config file for this component must set its
// "use_alt_i2c_address" boolean to true.
package mpu6050

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/components/movementsensor"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/logging"
	"github.com/mpoelzl/pxt-easymaqueenplusv2/timing"
)

const (
	defaultAddress   = 0x68
	alternateAddress = 0x69

	regGyroConfig = 0x1b
	regAccelXHigh = 0x3b
	regPowerMgmt1 = 0x6b
	regWhoAmI     = 0x75

	sleepBit = 1 << 6

	// Full scale of the default gyroscope and accelerometer ranges.
	maxRotation     = 250.0               // degrees per second
	maxAcceleration = 2.0 * 9.81 * 1000.0 // mm/sec/sec

	defaultPollInterval = time.Millisecond
)

// Config is used to configure the attributes of the chip.
type Config struct {
	I2CBus                 string  `json:"i2c_bus,omitempty"`
	UseAlternateI2CAddress bool    `json:"use_alt_i2c_address,omitempty"`
	PollIntervalMs         float64 `json:"poll_interval_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PollIntervalMs < 0 {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("poll_interval_ms cannot be negative, got %v", cfg.PollIntervalMs))
	}
	return nil
}

func (cfg *Config) address() uint16 {
	if cfg.UseAlternateI2CAddress {
		return alternateAddress
	}
	return defaultAddress
}

func (cfg *Config) pollInterval() time.Duration {
	if cfg.PollIntervalMs == 0 {
		return defaultPollInterval
	}
	return time.Duration(cfg.PollIntervalMs * float64(time.Millisecond))
}

// reading is one decoded block of sensor registers.
type reading struct {
	// degrees per second
	angularVelocity r3.Vector
	// mm/sec/sec
	linearAcceleration r3.Vector
	temperature        float64
}

// MPU6050 is the gyroscope.
type MPU6050 struct {
	dev          *i2c.Dev
	bus          i2c.BusCloser
	clock        timing.Source
	pollInterval time.Duration
	logger       logging.Logger

	busMu sync.Mutex

	mu        sync.Mutex
	latest    reading
	yaw       float64
	biasZ     float64
	lastRead  time.Time
	// the error of the latest sample, cleared by the next good one
	sampleErr error

	initialized             *atomic.Bool
	backgroundContext       context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// New returns a sensor on bus. Nothing is sent to the chip before Initialize. The caller keeps
// ownership of bus.
func New(bus i2c.Bus, cfg *Config, clock timing.Source, logger logging.Logger) *MPU6050 {
	backgroundContext, cancelFunc := context.WithCancel(context.Background())
	return &MPU6050{
		dev:               &i2c.Dev{Bus: bus, Addr: cfg.address()},
		clock:             clock,
		pollInterval:      cfg.pollInterval(),
		logger:            logger,
		initialized:       atomic.NewBool(false),
		backgroundContext: backgroundContext,
		cancelFunc:        cancelFunc,
	}
}

// Open opens the configured bus and returns a sensor that closes it on Close. The periph host
// drivers must already be loaded.
func Open(cfg *Config, clock timing.Source, logger logging.Logger) (*MPU6050, error) {
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open I2C bus %q for MPU6050 sensor", cfg.I2CBus)
	}
	mpu := New(bus, cfg, clock, logger)
	mpu.bus = bus
	logger.Debugf("using address %#x on bus %s for MPU6050 sensor", cfg.address(), bus)
	return mpu, nil
}

// Initialize checks the chip identity, wakes it up and starts the background poller.
func (mpu *MPU6050) Initialize(ctx context.Context) error {
	if mpu.initialized.Load() {
		return nil
	}
	if err := mpu.wake(); err != nil {
		return err
	}
	if _, err := mpu.sample(); err != nil {
		return errors.Wrap(err, "first MPU6050 reading failed")
	}
	mpu.initialized.Store(true)

	mpu.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer mpu.activeBackgroundWorkers.Done()
		mpu.poll(mpu.backgroundContext)
	})
	return nil
}

// wake verifies the device and sets it to measurement mode at the ±250 dps gyroscope range.
func (mpu *MPU6050) wake() error {
	// To check that we're able to talk to the chip, we should be able to read the WHO_AM_I
	// register and get back the device's non-alternative address (0x68)
	id, err := mpu.readBlock(regWhoAmI, 1)
	if err != nil {
		return errors.Wrapf(err, "can't read from I2C address %#x", mpu.dev.Addr)
	}
	if id[0] != defaultAddress {
		return errors.Errorf("unexpected non-MPU6050 device at address %#x: response %#x", mpu.dev.Addr, id[0])
	}

	// The chip starts out in standby mode (the Sleep bit in the power management register defaults
	// to 1). Set it to measurement mode by turning off the Sleep bit.
	if err := mpu.writeByte(regPowerMgmt1, 0); err != nil {
		return errors.Wrap(err, "unable to wake up MPU6050")
	}
	if err := mpu.writeByte(regGyroConfig, 0); err != nil {
		return errors.Wrap(err, "unable to set MPU6050 gyroscope range")
	}
	return nil
}

func (mpu *MPU6050) poll(ctx context.Context) {
	for {
		if err := mpu.clock.Sleep(ctx, mpu.pollInterval); err != nil {
			return
		}
		if _, err := mpu.sample(); err != nil {
			mpu.logger.Infof("error reading MPU6050 sensor: '%s'", err)
		}
	}
}

// sample reads the sensor registers and integrates the yaw rate since the previous sample. The
// error, if any, is kept for Orientation.
func (mpu *MPU6050) sample() (reading, error) {
	rawData, err := mpu.readBlock(regAccelXHigh, 14)

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	mpu.sampleErr = err
	if err != nil {
		return reading{}, err
	}
	r := decode(rawData)

	// Calibrate may have moved lastRead past the time this sample was taken
	now := mpu.clock.Now()
	if dt := now.Sub(mpu.lastRead).Seconds(); !mpu.lastRead.IsZero() && dt > 0 {
		mpu.yaw = movementsensor.NormalizeYaw(mpu.yaw - (r.angularVelocity.Z-mpu.biasZ)*dt)
	}
	if now.After(mpu.lastRead) {
		mpu.lastRead = now
	}
	mpu.latest = r
	return r, nil
}

// Calibrate averages the Z rate over samples readings, taken one poll interval apart, and uses
// it as the bias from now on. The heading is reset to zero.
func (mpu *MPU6050) Calibrate(ctx context.Context, samples int) error {
	if !mpu.initialized.Load() {
		return movementsensor.ErrNotInitialized
	}
	if samples < 1 {
		samples = 1
	}
	rates := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 {
			if err := mpu.clock.Sleep(ctx, mpu.pollInterval); err != nil {
				return err
			}
		}
		rawData, err := mpu.readBlock(regAccelXHigh, 14)
		if err != nil {
			return errors.Wrap(err, "reading MPU6050 during calibration")
		}
		rates = append(rates, decode(rawData).angularVelocity.Z)
	}
	bias, err := stats.Mean(rates)
	if err != nil {
		return err
	}
	spread, err := stats.StandardDeviation(rates)
	if err != nil {
		return err
	}
	mpu.logger.Debugw("calibrated gyroscope", "samples", samples, "biasZ", bias, "stddev", spread)

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	mpu.biasZ = bias
	mpu.yaw = 0
	mpu.lastRead = mpu.clock.Now()
	return nil
}

// Orientation returns the integrated yaw and the attitude derived from gravity, or the error of
// the latest sample.
func (mpu *MPU6050) Orientation(ctx context.Context) (movementsensor.Orientation, error) {
	if !mpu.initialized.Load() {
		return movementsensor.Orientation{}, movementsensor.ErrNotInitialized
	}
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	if mpu.sampleErr != nil {
		return movementsensor.Orientation{}, mpu.sampleErr
	}
	pitch, roll := tilt(mpu.latest.linearAcceleration)
	return movementsensor.Orientation{Yaw: mpu.yaw, Pitch: pitch, Roll: roll}, nil
}

// Readings returns the raw values of the last sample.
func (mpu *MPU6050) Readings(ctx context.Context) (map[string]interface{}, error) {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()

	readings := make(map[string]interface{})
	readings["linear_acceleration"] = mpu.latest.linearAcceleration
	readings["temperature_celsius"] = mpu.latest.temperature
	readings["angular_velocity"] = mpu.latest.angularVelocity
	readings["bias_z"] = mpu.biasZ
	return readings, nil
}

// Close stops the poller, puts the chip back to sleep and releases the bus if Open created it.
func (mpu *MPU6050) Close(ctx context.Context) error {
	mpu.cancelFunc()
	mpu.activeBackgroundWorkers.Wait()

	var err error
	if mpu.initialized.Load() {
		// Set the Sleep bit in the power management register.
		err = mpu.writeByte(regPowerMgmt1, sleepBit)
	}
	if mpu.bus != nil {
		err = multierr.Combine(err, mpu.bus.Close())
	}
	return err
}

func (mpu *MPU6050) readBlock(register byte, length int) ([]byte, error) {
	mpu.busMu.Lock()
	defer mpu.busMu.Unlock()
	result := make([]byte, length)
	if err := mpu.dev.Tx([]byte{register}, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (mpu *MPU6050) writeByte(register, value byte) error {
	mpu.busMu.Lock()
	defer mpu.busMu.Unlock()
	return mpu.dev.Tx([]byte{register, value}, nil)
}

// decode unpacks the 14 bytes starting at the accelerometer X register.
func decode(rawData []byte) reading {
	return reading{
		linearAcceleration: toVector(rawData[0:6], maxAcceleration),
		// Taken straight from the MPU6050 register map. Yes, these are weird constants.
		temperature:     float64(int16FromBytesBE(rawData[6:8]))/340.0 + 36.53,
		angularVelocity: toVector(rawData[8:14], maxRotation),
	}
}

func int16FromBytesBE(data []byte) int16 {
	return int16(binary.BigEndian.Uint16(data))
}

// Given a value, scales it so that the range of int16s becomes the range of +/- maxValue.
func setScale(value int16, maxValue float64) float64 {
	return float64(value) * maxValue / (1 << 15)
}

// toVector takes 6 bytes of big endian X, Y and Z values and scales them to +/- maxValue.
func toVector(data []byte, maxValue float64) r3.Vector {
	return r3.Vector{
		X: setScale(int16FromBytesBE(data[0:2]), maxValue),
		Y: setScale(int16FromBytesBE(data[2:4]), maxValue),
		Z: setScale(int16FromBytesBE(data[4:6]), maxValue),
	}
}

// tilt returns pitch and roll in degrees for a chassis at rest.
func tilt(gravity r3.Vector) (pitch, roll float64) {
	if gravity.Norm() == 0 {
		return 0, 0
	}
	pitch = math.Atan2(-gravity.X, math.Hypot(gravity.Y, gravity.Z)) * 180 / math.Pi
	roll = math.Atan2(gravity.Y, gravity.Z) * 180 / math.Pi
	return pitch, roll
}
