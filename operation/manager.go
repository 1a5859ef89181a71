// Package operation runs the motions of a base one at a time.
package operation

import (
	"context"
	"sync"
)

// Manager hands out the motors of a base to one motion at a time. Starting a motion preempts the
// one in progress and waits until it has returned, so the final stop of the old motion always
// lands before the first command of the new one.
type Manager struct {
	mu      sync.Mutex
	current *motion
}

type motion struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// preemptAndWait cancels mo and blocks until its finish func ran. A nil motion is a no-op.
func (mo *motion) preemptAndWait() {
	if mo == nil {
		return
	}
	mo.cancel()
	<-mo.done
}

type motionKey struct{}

// Start preempts the running motion and returns the context of a new one. finish must be called
// once the motion has stopped its motors. Starting from inside a motion joins it instead.
func (m *Manager) Start(ctx context.Context) (context.Context, func()) {
	if ctx.Value(motionKey{}) != nil {
		return ctx, func() {}
	}

	mo := &motion{done: make(chan struct{})}
	ctx, mo.cancel = context.WithCancel(context.WithValue(ctx, motionKey{}, mo))

	m.mu.Lock()
	prev := m.current
	m.current = mo
	m.mu.Unlock()

	prev.preemptAndWait()

	return ctx, func() {
		m.mu.Lock()
		if m.current == mo {
			m.current = nil
		}
		m.mu.Unlock()
		mo.cancel()
		close(mo.done)
	}
}

// Preempt cancels the running motion and waits for it to return. Called from inside a motion it
// does nothing.
func (m *Manager) Preempt(ctx context.Context) {
	if ctx.Value(motionKey{}) != nil {
		return
	}
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	cur.preemptAndWait()
}

// Running reports whether a motion holds the motors.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}
