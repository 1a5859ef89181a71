package timing

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Mock is a Source over a clock.Mock where Sleep advances the mock clock instead of blocking.
// It records every requested sleep so tests can assert on computed durations.
type Mock struct {
	*clock.Mock

	mu     sync.Mutex
	sleeps []time.Duration
}

// NewMock returns a Mock whose clock starts at the Unix epoch.
func NewMock() *Mock {
	return &Mock{Mock: clock.NewMock()}
}

// Sleep records d and moves the clock forward by it.
func (m *Mock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.mu.Unlock()
	if d > 0 {
		m.Mock.Add(d)
	}
	return nil
}

// Sleeps returns every duration passed to Sleep, oldest first.
func (m *Mock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.sleeps...)
}
