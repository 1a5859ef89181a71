// Package control implements the feedback controllers used by the drive core.
package control

import (
	"github.com/samber/lo"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/calibration"
)

// Fixed gains for holding a heading while driving straight.
const (
	HeadingKp = 10
	HeadingKi = 0.1
	HeadingKd = 0.5

	// maxIntegralStep bounds how much a single sample can add to the error sum.
	maxIntegralStep = 10
)

// HeadingPID holds a target yaw using the error between it and the measured yaw. It keeps
// state between samples and must not be shared between loops.
type HeadingPID struct {
	Kp, Ki, Kd float64

	target    float64
	lastError float64
	errorSum  float64
}

// HeadingStep is the result of feeding one heading sample through the controller.
type HeadingStep struct {
	Error       float64
	ErrorChange float64
	// ErrorSum is the accumulated error after this step.
	ErrorSum   float64
	Correction float64
}

// NewHeadingPID returns a controller holding target degrees with the default gains.
func NewHeadingPID(target float64) *HeadingPID {
	return &HeadingPID{Kp: HeadingKp, Ki: HeadingKi, Kd: HeadingKd, target: target}
}

// Target returns the heading being held.
func (p *HeadingPID) Target() float64 {
	return p.target
}

// Next computes the steering correction for a measured heading. The integral term uses the
// error sum from before this sample.
func (p *HeadingPID) Next(heading float64) HeadingStep {
	err := HeadingError(p.target, heading)
	change := err - p.lastError
	correction := p.Kp*err + p.Ki*p.errorSum + p.Kd*change

	p.errorSum += IntegralIncrement(err)
	p.lastError = err

	return HeadingStep{Error: err, ErrorChange: change, ErrorSum: p.errorSum, Correction: correction}
}

// HeadingError is target minus heading, folded once into [-180, 180].
func HeadingError(target, heading float64) float64 {
	err := target - heading
	if err > 180 {
		err -= 360
	}
	if err < -180 {
		err += 360
	}
	return err
}

// IntegralIncrement is what an error adds to the error sum: the error itself while it is
// within ±10 degrees, otherwise ±10.
func IntegralIncrement(err float64) float64 {
	return lo.Clamp(err, -maxIntegralStep, maxIntegralStep)
}

// WheelSpeeds splits a correction between the wheels, limited to the controller's power range.
// A positive correction speeds up the left wheel.
func WheelSpeeds(speed, correction float64) (left, right uint8) {
	l := lo.Clamp(speed+correction, 0, calibration.MaxPower)
	r := lo.Clamp(speed-correction, 0, calibration.MaxPower)
	return uint8(l), uint8(r)
}
