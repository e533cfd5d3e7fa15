package capture

import (
	"time"

	"vitals-scan-be/pkg/vitals"
)

// Event is anything fed into the machine. Engine callbacks, timer
// expirations, setup continuations and user commands are all events.
type Event interface {
	event()
}

type (
	// SessionReady reports that the engine session exists and is owned.
	SessionReady struct{}

	// SetupFailed ends the screen before a session exists.
	SetupFailed struct {
		Class   ErrorClass
		Message string
		Err     error
	}

	ImageData struct {
		Validity vitals.ImageValidity
	}

	VitalSign struct {
		Result vitals.Result
	}

	FinalResults struct {
		Result vitals.Result
	}

	EngineError struct {
		Err vitals.Error
	}

	EngineWarning struct {
		Warning vitals.Warning
	}

	StateChanged struct {
		State vitals.SessionState
	}

	TimerFired struct {
		Timer TimerKind
		Gen   uint64
	}

	ProgressTick struct{}

	// StartFailed reports that a start request was rejected.
	StartFailed struct {
		Err error
	}

	CancelRequested struct{}
	CancelDismissed struct{}
	ExitConfirmed   struct{}
)

func (SessionReady) event()    {}
func (SetupFailed) event()     {}
func (ImageData) event()       {}
func (VitalSign) event()       {}
func (FinalResults) event()    {}
func (EngineError) event()     {}
func (EngineWarning) event()   {}
func (StateChanged) event()    {}
func (TimerFired) event()      {}
func (ProgressTick) event()    {}
func (StartFailed) event()     {}
func (CancelRequested) event() {}
func (CancelDismissed) event() {}
func (ExitConfirmed) event()   {}

type TimerKind int

const (
	TimerAutoStart TimerKind = iota
	TimerResults
)

func (k TimerKind) String() string {
	if k == TimerResults {
		return "results"
	}
	return "auto_start"
}

// Effect is a side effect requested by the machine. The orchestrator
// performs effects in the order they are returned.
type Effect interface {
	effect()
}

type (
	InvokeStart     struct{}
	InvokeStop      struct{}
	InvokeTerminate struct{}
	ReleaseCamera   struct{}

	ScheduleTimer struct {
		Timer TimerKind
		Delay time.Duration
		Gen   uint64
	}

	CancelTimer struct {
		Timer TimerKind
	}

	StartTicker struct {
		Interval time.Duration
	}

	StopTicker struct{}

	DeliverResults struct {
		Result vitals.Result
	}

	NavigateBack struct{}
)

func (InvokeStart) effect()     {}
func (InvokeStop) effect()      {}
func (InvokeTerminate) effect() {}
func (ReleaseCamera) effect()   {}
func (ScheduleTimer) effect()   {}
func (CancelTimer) effect()     {}
func (StartTicker) effect()     {}
func (StopTicker) effect()      {}
func (DeliverResults) effect()  {}
func (NavigateBack) effect()    {}
