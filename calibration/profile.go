package calibration

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Direction is the travel direction of a straight drive.
type Direction int

const (
	// Forward drives towards the front of the chassis.
	Forward Direction = iota
	// Back drives in reverse.
	Back
)

func (d Direction) String() string {
	if d == Back {
		return "back"
	}
	return "forward"
}

// Side is the direction of a pivot turn.
type Side int

const (
	// Left turns anti-clockwise seen from above.
	Left Side = iota
	// Right turns clockwise seen from above.
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Defaults measured on the reference chassis.
const (
	DefaultMinSpeed        = 30
	DefaultTurnSpeed       = 50
	DefaultWheelDiameterMm = 43
)

// Corrections is an immutable view of every tuning value. Operations work on a Corrections
// snapshot so that concurrent setter calls cannot change a motion half way through.
type Corrections struct {
	SteeringForward, SteeringBack float64
	DistanceForward, DistanceBack float64
	TurnLeft, TurnRight           float64
	TurnLeftOffsetMs              float64
	TurnRightOffsetMs             float64
	WheelDiameterMm               float64
	MinSpeed                      float64
	TurnSpeed                     float64
}

// DefaultCorrections returns zero corrections with the reference chassis constants.
func DefaultCorrections() Corrections {
	return Corrections{
		WheelDiameterMm: DefaultWheelDiameterMm,
		MinSpeed:        DefaultMinSpeed,
		TurnSpeed:       DefaultTurnSpeed,
	}
}

// ClampSpeed limits a commanded speed to [MinSpeed, MaxPower].
func (c Corrections) ClampSpeed(speed float64) float64 {
	return lo.Clamp(speed, c.MinSpeed, MaxPower)
}

// Steering returns the steering correction percentage for dir.
func (c Corrections) Steering(dir Direction) float64 {
	if dir == Forward {
		return c.SteeringForward
	}
	return c.SteeringBack
}

// Distance returns the distance correction percentage for dir.
func (c Corrections) Distance(dir Direction) float64 {
	if dir == Forward {
		return c.DistanceForward
	}
	return c.DistanceBack
}

// Turn returns the turn correction percentage and offset in ms for side.
func (c Corrections) Turn(side Side) (pct, offsetMs float64) {
	if side == Left {
		return c.TurnLeft, c.TurnLeftOffsetMs
	}
	return c.TurnRight, c.TurnRightOffsetMs
}

// SteeringCorrectionFactor multiplies the left motor power for a straight drive at speed.
func (c Corrections) SteeringCorrectionFactor(speed float64, dir Direction) float64 {
	return SteeringFactor(speed, c.Steering(dir))
}

// DistanceCorrectionFactor scales a requested distance before it is turned into a run time.
func (c Corrections) DistanceCorrectionFactor(dir Direction) float64 {
	return PercentFactor(c.Distance(dir))
}

// TurnCorrectionFactor is the multiplier derived from the turn correction of side.
func (c Corrections) TurnCorrectionFactor(side Side) float64 {
	pct, _ := c.Turn(side)
	return PercentFactor(pct)
}

// DriveTime is the corrected run time for driving distanceMm at speed in dir.
func (c Corrections) DriveTime(speed, distanceMm float64, dir Direction) time.Duration {
	return TimeForDistance(speed, distanceMm*c.DistanceCorrectionFactor(dir))
}

// TurnPause is the pivot duration for turning degrees towards side at the turn speed.
func (c Corrections) TurnPause(degrees float64, side Side) (time.Duration, error) {
	pct, offset := c.Turn(side)
	return TurnPauseTime(c.TurnSpeed, degrees, pct, offset)
}

// Profile is the mutable, goroutine safe holder of the corrections for one robot.
type Profile struct {
	mu          sync.Mutex
	corrections Corrections
}

// NewProfile returns a Profile starting from c.
func NewProfile(c Corrections) *Profile {
	return &Profile{corrections: c}
}

// Snapshot returns the current corrections.
func (p *Profile) Snapshot() Corrections {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.corrections
}

// SetSteeringCorrection sets the steering percentage for dir. Positive values steer right.
func (p *Profile) SetSteeringCorrection(dir Direction, pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dir == Forward {
		p.corrections.SteeringForward = pct
	} else {
		p.corrections.SteeringBack = pct
	}
}

// SteeringCorrection returns the last steering percentage set for dir.
func (p *Profile) SteeringCorrection(dir Direction) float64 {
	return p.Snapshot().Steering(dir)
}

// SetDistanceCorrection sets the distance percentage for dir.
func (p *Profile) SetDistanceCorrection(dir Direction, pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dir == Forward {
		p.corrections.DistanceForward = pct
	} else {
		p.corrections.DistanceBack = pct
	}
}

// DistanceCorrection returns the last distance percentage set for dir.
func (p *Profile) DistanceCorrection(dir Direction) float64 {
	return p.Snapshot().Distance(dir)
}

// SetTurnCorrection sets the turn percentage for side.
func (p *Profile) SetTurnCorrection(side Side, pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if side == Right {
		p.corrections.TurnRight = pct
	} else {
		p.corrections.TurnLeft = pct
	}
}

// TurnCorrection returns the turn percentage for side.
func (p *Profile) TurnCorrection(side Side) float64 {
	pct, _ := p.Snapshot().Turn(side)
	return pct
}

// SetTurnCorrectionOffset sets the fixed turn time offset for side, in milliseconds.
func (p *Profile) SetTurnCorrectionOffset(side Side, offsetMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if side == Right {
		p.corrections.TurnRightOffsetMs = offsetMs
	} else {
		p.corrections.TurnLeftOffsetMs = offsetMs
	}
}

// TurnCorrectionOffset returns the turn time offset for side, in milliseconds.
func (p *Profile) TurnCorrectionOffset(side Side) float64 {
	_, offset := p.Snapshot().Turn(side)
	return offset
}

// SetWheelDiameter records the wheel diameter. The timing model does not depend on it.
func (p *Profile) SetWheelDiameter(mm float64) error {
	if mm <= 0 {
		return errors.Errorf("wheel diameter must be positive, got %v", mm)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrections.WheelDiameterMm = mm
	return nil
}

// WheelDiameter returns the wheel diameter in mm.
func (p *Profile) WheelDiameter() float64 {
	return p.Snapshot().WheelDiameterMm
}

// SetTurnSpeed sets the pivot turn speed, clamped to [MinSpeed, MaxPower].
func (p *Profile) SetTurnSpeed(speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrections.TurnSpeed = p.corrections.ClampSpeed(speed)
}

// TurnSpeed returns the pivot turn speed.
func (p *Profile) TurnSpeed() float64 {
	return p.Snapshot().TurnSpeed
}

// MinSpeed returns the lowest speed any drive will run at.
func (p *Profile) MinSpeed() float64 {
	return p.Snapshot().MinSpeed
}
