// Package simulated is a scripted stand-in for the vital-signs engine. It
// follows the engine's callback contract closely enough to drive a real
// capture screen: frame validity is reported on every frame, ticks start
// after a startup latency and only valid frames count towards the
// processing time.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vitals-scan-be/pkg/vitals"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// ScheduledError is raised once, At after the measurement started.
type ScheduledError struct {
	At  time.Duration
	Err vitals.Error
}

// Script describes how the simulated engine behaves.
type Script struct {
	FrameInterval  time.Duration
	StartupLatency time.Duration
	TickInterval   time.Duration
	// Face reports frame validity given the time since session creation.
	Face      func(elapsed time.Duration) vitals.ImageValidity
	Errors    []ScheduledError
	InitErr   error
	CreateErr error
}

func DefaultScript() Script {
	return Script{
		FrameInterval:  100 * time.Millisecond,
		StartupLatency: 8 * time.Second,
		TickInterval:   time.Second,
		Face:           Steady,
	}
}

// Steady keeps the face valid throughout.
func Steady(time.Duration) vitals.ImageValidity {
	return vitals.ValidityValid
}

// FaceAfter reports no face until d has passed.
func FaceAfter(d time.Duration) func(time.Duration) vitals.ImageValidity {
	return func(elapsed time.Duration) vitals.ImageValidity {
		if elapsed < d {
			return vitals.ValidityInvalidROI
		}
		return vitals.ValidityValid
	}
}

// FaceLost reports a valid face except between from and to.
func FaceLost(from, to time.Duration) func(time.Duration) vitals.ImageValidity {
	return func(elapsed time.Duration) vitals.ImageValidity {
		if elapsed >= from && elapsed < to {
			return vitals.ValidityInvalidROI
		}
		return vitals.ValidityValid
	}
}

var ErrNotInitialized = errors.New("simulated: engine not initialized")

type Engine struct {
	clock  clock.Clock
	script Script

	mu          sync.Mutex
	initialized bool
	inits       int
	sessions    []*Session
}

func New(c clock.Clock, s Script) *Engine {
	d := DefaultScript()
	if s.FrameInterval <= 0 {
		s.FrameInterval = d.FrameInterval
	}
	if s.TickInterval <= 0 {
		s.TickInterval = d.TickInterval
	}
	if s.Face == nil {
		s.Face = d.Face
	}
	if c == nil {
		c = clock.New()
	}
	return &Engine{clock: c, script: s}
}

func (e *Engine) Initialize(ctx context.Context, opts vitals.InitOptions) error {
	e.mu.Lock()
	e.inits++
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if e.script.InitErr != nil {
		return e.script.InitErr
	}
	if err := vitals.ValidateLicenseKey(opts.LicenseKey); err != nil {
		return vitals.Error{Domain: vitals.DomainLicense, Code: vitals.CodeLicenseInvalidFormat, Message: err.Error()}
	}

	if fn := opts.License.OnActivation; fn != nil {
		fn(uuid.NewString())
	}
	if fn := opts.License.OnEnabledVitalSigns; fn != nil {
		fn([]string{vitals.MetricPulseRate, vitals.MetricRespirationRate, vitals.MetricStressLevel, vitals.MetricBloodPressure, vitals.MetricSDNN})
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) CreateSession(ctx context.Context, opts vitals.SessionOptions) (vitals.Session, error) {
	e.mu.Lock()
	ready := e.initialized
	e.mu.Unlock()

	if !ready {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.script.CreateErr != nil {
		return nil, e.script.CreateErr
	}
	if opts.ProcessingTime <= 0 {
		return nil, fmt.Errorf("simulated: processing time must be positive, got %d", opts.ProcessingTime)
	}

	s := &Session{
		clock:   e.clock,
		script:  e.script,
		opts:    opts,
		state:   vitals.StateInit,
		created: e.clock.Now(),
		fired:   make(map[int]bool),
		quit:    make(chan struct{}),
	}

	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()

	go s.run()
	return s, nil
}

func (e *Engine) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, len(e.sessions))
	copy(out, e.sessions)
	return out
}
