// Package capture coordinates one camera-capture screen: it owns the
// camera stream and the engine session, decides when to start and stop
// a measurement, and derives progress and guidance from engine callbacks.
package capture

import (
	"time"

	"vitals-scan-be/pkg/vitals"
)

type autoStart int

const (
	autoNone autoStart = iota
	autoValid
	autoAny
	autoRestart
)

// MachineConfig parameterizes a Machine.
type MachineConfig struct {
	Timings        Timings
	ProcessingTime time.Duration
	// Host is named in domain authorization messages.
	Host string
}

// Machine is the state record of one capture screen and its transition
// function. It never blocks and never performs I/O: Handle returns the
// effects the caller must carry out.
type Machine struct {
	timings  Timings
	duration time.Duration
	host     string

	state      vitals.SessionState
	hasSession bool
	loading    bool

	seenFrame    bool
	validity     vitals.ImageValidity
	faceValid    bool
	invalidSince time.Time
	// lastValidAt is the last valid frame, moved up to the MEASURING
	// entry so face loss is timed from the start of a measurement.
	lastValidAt time.Time

	startRequested bool
	stopRequested  bool
	processing     bool
	measureStart   time.Time
	lastTickAt     time.Time
	paused         time.Duration
	pausedAt       time.Time
	progress       float64
	tickerOn       bool

	autoKind       autoStart
	autoGen        uint64
	resultsGen     uint64
	measurementErr bool
	// awaitValid holds a restart back until a fresh valid frame arrives.
	awaitValid bool

	fatal   *ErrorInfo
	lastErr *ErrorInfo
	notice  string
	warning *vitals.Warning

	completed    bool
	results      vitals.Result
	latest       vitals.Result
	cancelPrompt bool
	exited       bool
}

func NewMachine(cfg MachineConfig) *Machine {
	if cfg.ProcessingTime <= 0 {
		cfg.ProcessingTime = DefaultProcessingTime
	}
	return &Machine{
		timings:  cfg.Timings,
		duration: cfg.ProcessingTime,
		host:     cfg.Host,
		state:    vitals.StateInit,
		loading:  true,
		validity: vitals.ValidityInvalidROI,
	}
}

// Handle applies ev at time now and returns the resulting effects.
func (m *Machine) Handle(now time.Time, ev Event) []Effect {
	var fx []Effect

	switch e := ev.(type) {
	case SessionReady:
		m.hasSession = true
		m.loading = false
	case SetupFailed:
		fx = m.fail(&ErrorInfo{Class: e.Class, Message: e.Message})
	case ImageData:
		m.onImageData(now, e.Validity)
	case VitalSign:
		m.onVitalSign(now, e.Result)
	case FinalResults:
		fx = m.onFinalResults(e.Result)
	case EngineError:
		fx = m.onEngineError(e.Err)
	case EngineWarning:
		w := e.Warning
		m.warning = &w
	case StateChanged:
		m.onStateChanged(now, e.State)
	case TimerFired:
		fx = m.onTimer(e)
	case ProgressTick:
	case StartFailed:
		m.startRequested = false
		m.measurementErr = true
		m.awaitValid = true
		m.lastErr = &ErrorInfo{Class: ClassMeasurement, Message: startFailedMessage, Recoverable: true}
	case CancelRequested:
		if !m.exited && !m.completed {
			m.cancelPrompt = true
		}
	case CancelDismissed:
		m.cancelPrompt = false
	case ExitConfirmed:
		fx = m.onExit()
	}

	return append(fx, m.reconcile(now)...)
}

func (m *Machine) onImageData(now time.Time, v vitals.ImageValidity) {
	m.seenFrame = true
	m.validity = v
	m.faceValid = v == vitals.ValidityValid

	if !m.faceValid {
		if m.invalidSince.IsZero() {
			m.invalidSince = now
		}
		return
	}

	m.invalidSince = time.Time{}
	m.awaitValid = false
	m.notice = ""
	m.resume(now)
	m.lastValidAt = now
}

func (m *Machine) onVitalSign(now time.Time, r vitals.Result) {
	m.latest = m.latest.Merge(r)
	if m.state != vitals.StateMeasuring || m.stopRequested || m.completed || m.measurementErr {
		return
	}
	if !m.processing {
		m.processing = true
		if m.measureStart.IsZero() {
			m.measureStart = now
		}
		m.resume(now)
	}
	m.lastTickAt = now
}

// resume closes an open pause interval.
func (m *Machine) resume(now time.Time) {
	if m.pausedAt.IsZero() {
		return
	}
	if now.After(m.pausedAt) {
		m.paused += now.Sub(m.pausedAt)
	}
	m.pausedAt = time.Time{}
}

func (m *Machine) onFinalResults(r vitals.Result) []Effect {
	if m.exited || m.completed {
		return nil
	}
	m.completed = true
	m.results = r
	m.latest = m.latest.Merge(r)
	m.processing = false
	m.pausedAt = time.Time{}
	m.progress = 100
	m.cancelPrompt = false
	m.resultsGen++
	return []Effect{ScheduleTimer{Timer: TimerResults, Delay: m.timings.ResultsDelay, Gen: m.resultsGen}}
}

func (m *Machine) onEngineError(e vitals.Error) []Effect {
	c := vitals.Classify(e, m.host)
	info := &ErrorInfo{Class: classOf(c.Category), Message: c.Message, Recoverable: !c.Fatal}

	switch c.Category {
	case vitals.CategoryResourceExhausted:
		return append(m.fail(info), InvokeTerminate{})
	case vitals.CategoryLicensing:
		return m.fail(info)
	case vitals.CategoryMeasurement:
		m.measurementErr = true
		m.awaitValid = true
		m.lastErr = info
		m.processing = false
		m.pausedAt = time.Time{}
		if m.state == vitals.StateActive {
			m.startRequested = false
		}
	default:
		m.lastErr = info
	}
	return nil
}

// fail records a non-recoverable error and releases the camera.
func (m *Machine) fail(info *ErrorInfo) []Effect {
	info.Recoverable = false
	if m.fatal == nil {
		m.fatal = info
	}
	m.loading = false
	m.processing = false
	m.pausedAt = time.Time{}
	m.cancelPrompt = false
	return []Effect{ReleaseCamera{}}
}

func (m *Machine) onStateChanged(now time.Time, s vitals.SessionState) {
	m.state = s

	switch s {
	case vitals.StateActive:
		m.startRequested = false
		m.stopRequested = false
		m.processing = false
		m.pausedAt = time.Time{}
	case vitals.StateMeasuring:
		m.stopRequested = false
		m.processing = false
		m.measureStart = time.Time{}
		m.lastTickAt = time.Time{}
		m.paused = 0
		m.pausedAt = time.Time{}
		m.measurementErr = false
		m.awaitValid = false
		m.lastErr = nil
		m.notice = ""
		m.lastValidAt = latest(m.lastValidAt, now)
	case vitals.StateStopping:
		m.processing = false
		m.pausedAt = time.Time{}
	case vitals.StateTerminated:
		m.processing = false
		m.pausedAt = time.Time{}
		m.hasSession = false
		m.startRequested = false
	}
}

func (m *Machine) onTimer(e TimerFired) []Effect {
	switch e.Timer {
	case TimerAutoStart:
		if e.Gen != m.autoGen || m.autoKind == autoNone || !m.startEligible() {
			return nil
		}
		m.autoKind = autoNone
		m.startRequested = true
		return []Effect{InvokeStart{}}
	case TimerResults:
		if e.Gen != m.resultsGen || !m.completed || m.exited {
			return nil
		}
		m.exited = true
		return []Effect{DeliverResults{Result: m.results}, ReleaseCamera{}, InvokeTerminate{}}
	}
	return nil
}

func (m *Machine) onExit() []Effect {
	if m.exited {
		return nil
	}
	m.exited = true
	m.cancelPrompt = false
	m.processing = false
	return []Effect{ReleaseCamera{}, InvokeTerminate{}, NavigateBack{}}
}

func (m *Machine) startEligible() bool {
	return m.state == vitals.StateActive &&
		m.hasSession &&
		!m.startRequested &&
		m.fatal == nil &&
		!m.completed &&
		!m.exited
}

// reconcile applies the time-driven rules and brings timers and the
// progress ticker in line with the current record.
func (m *Machine) reconcile(now time.Time) []Effect {
	var fx []Effect

	if m.processing && !m.faceValid && !m.invalidSince.IsZero() {
		grace := m.timings.ProcessingGrace
		if now.Sub(m.invalidSince) > grace && now.Sub(m.lastTickAt) > grace {
			m.processing = false
			m.pausedAt = latest(m.invalidSince.Add(grace), m.lastTickAt.Add(grace))
		}
	}

	if m.state == vitals.StateMeasuring && !m.stopRequested && !m.faceValid &&
		!m.lastValidAt.IsZero() && now.Sub(m.lastValidAt) > m.timings.FaceLossTimeout {
		m.stopRequested = true
		m.processing = false
		m.pausedAt = time.Time{}
		m.notice = TextFaceLost
		fx = append(fx, InvokeStop{})
	}

	fx = append(fx, m.reconcileAutoStart()...)

	if want := m.processing && !m.completed && !m.exited; want != m.tickerOn {
		m.tickerOn = want
		if want {
			fx = append(fx, StartTicker{Interval: m.timings.ProgressInterval})
		} else {
			fx = append(fx, StopTicker{})
		}
	}

	m.progress = m.computeProgress(now)
	return fx
}

func (m *Machine) reconcileAutoStart() []Effect {
	kind := autoNone
	if m.startEligible() {
		switch {
		case m.measurementErr && m.faceValid && !m.awaitValid:
			kind = autoRestart
		case m.measurementErr:
			kind = autoNone
		case m.faceValid:
			kind = autoValid
		default:
			kind = autoAny
		}
	}
	if kind == m.autoKind {
		return nil
	}

	var fx []Effect
	if m.autoKind != autoNone {
		fx = append(fx, CancelTimer{Timer: TimerAutoStart})
	}
	m.autoKind = kind
	m.autoGen++
	if kind != autoNone {
		fx = append(fx, ScheduleTimer{Timer: TimerAutoStart, Delay: m.startDelay(kind), Gen: m.autoGen})
	}
	return fx
}

func (m *Machine) startDelay(k autoStart) time.Duration {
	switch k {
	case autoValid:
		return m.timings.ValidStartDelay
	case autoRestart:
		return m.timings.RestartDelay
	default:
		return m.timings.AnyStartDelay
	}
}

func (m *Machine) computeProgress(now time.Time) float64 {
	if m.completed {
		return 100
	}
	if !m.processing || m.measureStart.IsZero() || m.duration <= 0 {
		return 0
	}
	elapsed := now.Sub(m.measureStart) - m.paused
	if elapsed <= 0 {
		return 0
	}
	p := 100 * float64(elapsed) / float64(m.duration)
	if p > 100 {
		return 100
	}
	return p
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// State returns the last engine-reported state.
func (m *Machine) State() vitals.SessionState { return m.state }

// Processing reports whether the engine is actively producing results.
func (m *Machine) Processing() bool { return m.processing }

func (m *Machine) Progress() float64 { return m.progress }

func (m *Machine) Instruction() string { return m.instruction() }
