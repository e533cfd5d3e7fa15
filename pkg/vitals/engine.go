package vitals

import (
	"context"

	"vitals-scan-be/pkg/camera"
)

// Callbacks is the callback set bound to one session. Nil members are skipped.
type Callbacks struct {
	OnImageData    func(ImageValidity)
	OnVitalSign    func(Result)
	OnFinalResults func(Result)
	OnError        func(Error)
	OnWarning      func(Warning)
	OnStateChange  func(SessionState)
}

// LicenseCallbacks report the license lifecycle during Initialize.
type LicenseCallbacks struct {
	OnActivation         func(activationID string)
	OnEnabledVitalSigns  func(signs []string)
	OnOfflineMeasurement func(remaining int)
}

type InitOptions struct {
	LicenseKey string
	ProductID  string
	License    LicenseCallbacks
}

type SessionOptions struct {
	Input          camera.Stream
	CameraDeviceID string
	// ProcessingTime is the measurement length in seconds.
	ProcessingTime int
	Callbacks      Callbacks
	Orientation    DeviceOrientation
	StrictGuidance bool
	User           *UserInformation
}

// Engine is the vendor engine entry point.
type Engine interface {
	Initialize(ctx context.Context, opts InitOptions) error
	CreateSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is one measurement session. Start, Stop and Terminate only
// request a transition; the outcome arrives through OnStateChange.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Terminate(ctx context.Context) error
}
