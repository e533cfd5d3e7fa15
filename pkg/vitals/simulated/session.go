package simulated

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitals-scan-be/pkg/vitals"

	"github.com/benbjohnson/clock"
)

type Session struct {
	clock  clock.Clock
	script Script
	opts   vitals.SessionOptions

	mu         sync.Mutex
	state      vitals.SessionState
	created    time.Time
	measureAt  time.Time
	lastTick   time.Time
	processed  time.Duration
	ticks      int
	fired      map[int]bool
	starts     int
	stops      int
	terminates int

	quit     chan struct{}
	quitOnce sync.Once
}

func (s *Session) run() {
	t := s.clock.Ticker(s.script.FrameInterval)
	defer t.Stop()

	s.mu.Lock()
	fresh := s.state == vitals.StateInit
	if fresh {
		s.state = vitals.StateActive
	}
	s.mu.Unlock()
	if !fresh {
		return
	}
	s.emitState(vitals.StateActive)

	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.frame(s.clock.Now())
		}
	}
}

func (s *Session) frame(now time.Time) {
	var calls []func()

	s.mu.Lock()
	if s.state == vitals.StateTerminated {
		s.mu.Unlock()
		return
	}
	validity := s.script.Face(now.Sub(s.created))
	calls = append(calls, func() { s.emitImage(validity) })

	if s.state == vitals.StateMeasuring {
		calls = append(calls, s.measureLocked(now, validity)...)
	}
	s.mu.Unlock()

	for _, fn := range calls {
		fn()
	}
}

func (s *Session) measureLocked(now time.Time, validity vitals.ImageValidity) []func() {
	var calls []func()
	since := now.Sub(s.measureAt)

	for i, se := range s.script.Errors {
		if s.fired[i] || since < se.At {
			continue
		}
		s.fired[i] = true
		err := se.Err
		calls = append(calls, func() { s.emitError(err) })
		if err.Domain == vitals.DomainMeasurement {
			s.state = vitals.StateActive
			calls = append(calls, func() { s.emitState(vitals.StateActive) })
			return calls
		}
	}

	if since < s.script.StartupLatency || validity != vitals.ValidityValid {
		return calls
	}

	s.processed += s.script.FrameInterval
	if s.lastTick.IsZero() || now.Sub(s.lastTick) >= s.script.TickInterval {
		s.lastTick = now
		s.ticks++
		partial := s.partialLocked()
		calls = append(calls, func() { s.emitVital(partial) })
	}

	if s.processed >= time.Duration(s.opts.ProcessingTime)*time.Second {
		final := s.finalLocked()
		s.state = vitals.StateActive
		calls = append(calls,
			func() { s.emitFinal(final) },
			func() { s.emitState(vitals.StateStopping) },
			func() { s.emitState(vitals.StateActive) },
		)
	}
	return calls
}

func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.state != vitals.StateActive {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("simulated: cannot start in state %s", st)
	}
	s.state = vitals.StateMeasuring
	s.measureAt = s.clock.Now()
	s.lastTick = time.Time{}
	s.processed = 0
	s.starts++
	s.mu.Unlock()

	s.emitState(vitals.StateMeasuring)
	return nil
}

func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stops++
	if s.state != vitals.StateMeasuring {
		s.mu.Unlock()
		return nil
	}
	s.state = vitals.StateActive
	s.mu.Unlock()

	s.emitState(vitals.StateStopping)
	s.emitState(vitals.StateActive)
	return nil
}

func (s *Session) Terminate(ctx context.Context) error {
	s.mu.Lock()
	s.terminates++
	first := s.state != vitals.StateTerminated
	s.state = vitals.StateTerminated
	s.mu.Unlock()

	s.quitOnce.Do(func() { close(s.quit) })
	if first {
		s.emitState(vitals.StateTerminated)
	}
	return nil
}

func (s *Session) Options() vitals.SessionOptions {
	return s.opts
}

func (s *Session) State() vitals.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Session) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *Session) Terminates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminates
}

func (s *Session) partialLocked() vitals.Result {
	return vitals.Result{
		vitals.MetricPulseRate:       {Value: 68 + s.ticks%5, Confidence: confidence(0.6)},
		vitals.MetricRespirationRate: {Value: 14 + s.ticks%3},
	}
}

func (s *Session) finalLocked() vitals.Result {
	r := s.partialLocked()
	r[vitals.MetricStressLevel] = vitals.Metric{Value: 2, Confidence: confidence(0.8)}
	r[vitals.MetricSDNN] = vitals.Metric{Value: 48}
	if s.opts.User != nil && s.opts.User.Age > 0 && s.opts.User.Sex != vitals.SexUnspecified {
		r[vitals.MetricBloodPressure] = vitals.Metric{Value: map[string]int{"systolic": 118, "diastolic": 76}}
	}
	return r
}

func confidence(v float64) *float64 {
	return &v
}

func (s *Session) emitImage(v vitals.ImageValidity) {
	if fn := s.opts.Callbacks.OnImageData; fn != nil {
		fn(v)
	}
}

func (s *Session) emitVital(r vitals.Result) {
	if fn := s.opts.Callbacks.OnVitalSign; fn != nil {
		fn(r)
	}
}

func (s *Session) emitFinal(r vitals.Result) {
	if fn := s.opts.Callbacks.OnFinalResults; fn != nil {
		fn(r)
	}
}

func (s *Session) emitError(e vitals.Error) {
	if fn := s.opts.Callbacks.OnError; fn != nil {
		fn(e)
	}
}

func (s *Session) emitState(st vitals.SessionState) {
	if fn := s.opts.Callbacks.OnStateChange; fn != nil {
		fn(st)
	}
}
