package capture

import "vitals-scan-be/pkg/vitals"

const (
	TextPlaceFace    = "Place your face in the frame"
	TextTiltedHead   = "Keep your head straight and look at the camera"
	TextUnevenLight  = "Move to a spot with even lighting"
	TextOrientation  = "Hold your device upright"
	TextFaceDetected = "Face detected, starting measurement"
	TextRestarting   = "Face detected, restarting measurement"
	TextWaiting      = "Analysis started, waiting to begin processing"
	TextProcessing   = "Analysis in progress, keep still"
	TextComplete     = "Analysis complete"
	TextFaceLost     = "Face left the frame, reposition to continue"
	TextRetry        = "The measurement stopped. Please retry the measurement."
)

type Oval string

const (
	OvalDefault Oval = "default"
	OvalWarning Oval = "warning"
	OvalSuccess Oval = "success"
)

func validityText(v vitals.ImageValidity) string {
	switch v {
	case vitals.ValidityInvalidDeviceOrientation:
		return TextOrientation
	case vitals.ValidityTiltedHead:
		return TextTiltedHead
	case vitals.ValidityUnevenLight:
		return TextUnevenLight
	default:
		return TextPlaceFace
	}
}

// instruction derives the guidance line. Order matters.
func (m *Machine) instruction() string {
	switch {
	case m.fatal != nil:
		return TextRetry
	case m.completed:
		return TextComplete
	case !m.faceValid && m.notice != "":
		return m.notice
	case !m.faceValid && m.seenFrame:
		return validityText(m.validity)
	case m.faceValid && m.processing:
		return TextProcessing
	case m.faceValid && m.state == vitals.StateMeasuring:
		return TextWaiting
	case m.faceValid && m.measurementErr:
		return TextRestarting
	case m.faceValid:
		return TextFaceDetected
	default:
		return TextPlaceFace
	}
}

func (m *Machine) oval() Oval {
	switch {
	case !m.faceDetected():
		return OvalWarning
	case m.faceValid:
		return OvalSuccess
	default:
		return OvalDefault
	}
}

func (m *Machine) faceDetected() bool {
	return m.seenFrame && m.validity.FaceDetected()
}
