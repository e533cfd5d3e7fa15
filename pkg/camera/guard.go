package camera

import "sync/atomic"

// Guard stops the tracks of a stream at most once, however many
// teardown paths reach it.
type Guard struct {
	stream  Stream
	stopped atomic.Bool
}

func NewGuard(s Stream) *Guard {
	return &Guard{stream: s}
}

// Stream returns the guarded stream, or nil for a nil guard.
func (g *Guard) Stream() Stream {
	if g == nil {
		return nil
	}
	return g.stream
}

// Stop stops every track and reports whether this call did the work.
// It is safe on a nil guard and on a guard without a stream.
func (g *Guard) Stop() bool {
	if g == nil || g.stream == nil {
		return false
	}
	if !g.stopped.CompareAndSwap(false, true) {
		return false
	}
	for _, t := range g.stream.Tracks() {
		t.Stop()
	}
	return true
}

func (g *Guard) Stopped() bool {
	if g == nil {
		return true
	}
	return g.stopped.Load()
}
