// Package camera describes the video source a measurement session is bound to.
package camera

import (
	"context"
	"errors"
)

type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

type DeviceKind string

const (
	KindVideoInput  DeviceKind = "videoinput"
	KindAudioInput  DeviceKind = "audioinput"
	KindAudioOutput DeviceKind = "audiooutput"
)

// Constraints are the parameters of a stream request.
type Constraints struct {
	FacingMode FacingMode `json:"facing_mode"`
	Audio      bool       `json:"audio"`
}

// DefaultConstraints requests the rear camera without audio.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingEnvironment, Audio: false}
}

type Device struct {
	ID    string     `json:"device_id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

// Source acquires live streams and lists the available input devices.
type Source interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
	Devices(ctx context.Context) ([]Device, error)
}

// Stream is a live media stream made of one or more tracks.
type Stream interface {
	ID() string
	Tracks() []Track
}

type Track interface {
	ID() string
	Kind() string
	Stop()
}

var (
	ErrPermissionDenied = errors.New("camera: permission denied")
	ErrNoCamera         = errors.New("camera: no camera found")
	ErrUnsupported      = errors.New("camera: media devices not supported")
)

// FirstVideoInput returns the first video input in devs.
func FirstVideoInput(devs []Device) (Device, bool) {
	for _, d := range devs {
		if d.Kind == KindVideoInput {
			return d, true
		}
	}
	return Device{}, false
}

// Describe turns an acquisition failure into the text shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Allow camera access in your browser settings and reload the page."
	case errors.Is(err, ErrNoCamera):
		return "No camera was found on this device."
	case errors.Is(err, ErrUnsupported):
		return "This browser does not support camera access."
	default:
		return "Unable to access the camera."
	}
}
