// Package vitals is the contract of the face-video vital-signs engine:
// its lifecycle, its callback surface and the payloads it produces.
package vitals

import (
	"fmt"
	"strings"
)

// SessionState is the lifecycle state reported by the engine.
type SessionState int

const (
	StateInit SessionState = iota
	StateActive
	StateMeasuring
	StateStopping
	StateTerminated
)

var stateNames = [...]string{"INIT", "ACTIVE", "MEASURING", "STOPPING", "TERMINATED"}

func (s SessionState) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
	return stateNames[s]
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(b []byte) error {
	v, err := ParseSessionState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSessionState(v string) (SessionState, error) {
	for i, n := range stateNames {
		if strings.EqualFold(v, n) {
			return SessionState(i), nil
		}
	}
	return StateInit, fmt.Errorf("vitals: unknown session state %q", v)
}

// ImageValidity is the engine's judgement of a single camera frame.
type ImageValidity int

const (
	ValidityValid ImageValidity = iota
	ValidityInvalidROI
	ValidityTiltedHead
	ValidityUnevenLight
	ValidityInvalidDeviceOrientation
)

var validityNames = [...]string{"VALID", "INVALID_ROI", "TILTED_HEAD", "UNEVEN_LIGHT", "INVALID_DEVICE_ORIENTATION"}

func (v ImageValidity) String() string {
	if int(v) < 0 || int(v) >= len(validityNames) {
		return fmt.Sprintf("ImageValidity(%d)", int(v))
	}
	return validityNames[v]
}

func (v ImageValidity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ImageValidity) UnmarshalText(b []byte) error {
	p, err := ParseImageValidity(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

func ParseImageValidity(s string) (ImageValidity, error) {
	for i, n := range validityNames {
		if strings.EqualFold(s, n) {
			return ImageValidity(i), nil
		}
	}
	return ValidityInvalidROI, fmt.Errorf("vitals: unknown image validity %q", s)
}

// FaceDetected reports whether a face was found at all, valid or not.
func (v ImageValidity) FaceDetected() bool {
	return v != ValidityInvalidROI && v != ValidityInvalidDeviceOrientation
}

type DeviceOrientation int

const (
	OrientationPortrait DeviceOrientation = iota
	OrientationLandscapeLeft
	OrientationLandscapeRight
)

var orientationNames = [...]string{"PORTRAIT", "LANDSCAPE_LEFT", "LANDSCAPE_RIGHT"}

func (o DeviceOrientation) String() string {
	if int(o) < 0 || int(o) >= len(orientationNames) {
		return fmt.Sprintf("DeviceOrientation(%d)", int(o))
	}
	return orientationNames[o]
}

func (o DeviceOrientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *DeviceOrientation) UnmarshalText(b []byte) error {
	v, err := ParseDeviceOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func ParseDeviceOrientation(s string) (DeviceOrientation, error) {
	for i, n := range orientationNames {
		if strings.EqualFold(s, n) {
			return DeviceOrientation(i), nil
		}
	}
	return OrientationPortrait, fmt.Errorf("vitals: unknown device orientation %q", s)
}

type Sex string

const (
	SexUnspecified Sex = ""
	SexMale        Sex = "MALE"
	SexFemale      Sex = "FEMALE"
)

type SmokingStatus string

const (
	SmokingUnspecified SmokingStatus = ""
	SmokingSmoker      SmokingStatus = "SMOKER"
	SmokingNonSmoker   SmokingStatus = "NON_SMOKER"
)

// UserInformation is the demographic input that unlocks derived-risk outputs.
type UserInformation struct {
	Age     int           `json:"age"`
	Sex     Sex           `json:"sex"`
	Height  *int          `json:"height,omitempty"`
	Weight  *int          `json:"weight,omitempty"`
	Smoking SmokingStatus `json:"smoking_status,omitempty"`
}

// Well-known metric names. Engines may report more.
const (
	MetricPulseRate       = "pulseRate"
	MetricRespirationRate = "respirationRate"
	MetricStressLevel     = "stressLevel"
	MetricBloodPressure   = "bloodPressure"
	MetricSDNN            = "sdnn"
)

type Metric struct {
	Value      interface{} `json:"value"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// Result is an opaque bag of named metrics. It is forwarded, never interpreted.
type Result map[string]Metric

// Merge copies the metrics of other into r, replacing existing names.
func (r Result) Merge(other Result) Result {
	if r == nil {
		r = make(Result, len(other))
	}
	for k, v := range other {
		r[k] = v
	}
	return r
}

type Warning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
