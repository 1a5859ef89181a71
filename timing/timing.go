// Package timing provides the monotonic clock and blocking sleep used by timed drives and the
// heading-hold loop.
package timing

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// A Source tells the time and blocks for durations.
type Source interface {
	Now() time.Time
	// Sleep blocks for d, returning early with the context's error if it is cancelled first.
	Sleep(ctx context.Context, d time.Duration) error
}

type clockSource struct {
	clock clock.Clock
}

// New returns a Source backed by the given clock.
func New(clk clock.Clock) Source {
	return &clockSource{clock: clk}
}

// NewReal returns a Source backed by the system clock.
func NewReal() Source {
	return New(clock.New())
}

func (cs *clockSource) Now() time.Time {
	return cs.clock.Now()
}

func (cs *clockSource) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := cs.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
