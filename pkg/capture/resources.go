package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/vitals"
)

// sessionHandle wraps an engine session so Terminate reaches the engine
// at most once.
type sessionHandle struct {
	session    vitals.Session
	terminated atomic.Bool
}

func (h *sessionHandle) live() bool {
	return h != nil && !h.terminated.Load()
}

// terminate reports whether this call reached the engine.
func (h *sessionHandle) terminate(ctx context.Context) (bool, error) {
	if h == nil || !h.terminated.CompareAndSwap(false, true) {
		return false, nil
	}
	return true, h.session.Terminate(ctx)
}

// resources holds what the setup goroutine hands over to the screen.
// Once released, nothing more is adopted.
type resources struct {
	mu       sync.Mutex
	closed   bool
	creating bool
	guard    *camera.Guard
	session  *sessionHandle
}

func (r *resources) adoptStream(s camera.Stream) (*camera.Guard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := camera.NewGuard(s)
	if r.closed {
		return g, false
	}
	r.guard = g
	return g, true
}

func (r *resources) beginCreate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return ErrClosed
	case r.creating, r.session.live():
		return ErrSessionBusy
	}
	r.creating = true
	return nil
}

func (r *resources) abortCreate() {
	r.mu.Lock()
	r.creating = false
	r.mu.Unlock()
}

func (r *resources) adoptSession(h *sessionHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creating = false
	if r.closed {
		return false
	}
	r.session = h
	return true
}

func (r *resources) current() *sessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *resources) camera() *camera.Guard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.guard
}

func (r *resources) release() (*camera.Guard, *sessionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.guard, r.session
}
