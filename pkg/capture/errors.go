package capture

import (
	"errors"

	"vitals-scan-be/pkg/vitals"
)

// ErrorClass groups failures by what the user can do about them.
type ErrorClass string

const (
	ClassConfiguration     ErrorClass = "configuration"
	ClassPermission        ErrorClass = "permission"
	ClassInitialization    ErrorClass = "initialization"
	ClassSession           ErrorClass = "session"
	ClassLicensing         ErrorClass = "licensing"
	ClassMeasurement       ErrorClass = "measurement"
	ClassResourceExhausted ErrorClass = "resource_exhausted"
	ClassUnclassified      ErrorClass = "unclassified"
)

// ErrorInfo is the classified, user-visible form of a failure.
type ErrorInfo struct {
	Class       ErrorClass `json:"class"`
	Message     string     `json:"message"`
	Recoverable bool       `json:"recoverable"`
}

var (
	ErrSessionBusy = errors.New("capture: a session is already being created or is still live")
	ErrClosed      = errors.New("capture: orchestrator closed")
	ErrNoSession   = errors.New("capture: no session")
)

func classOf(c vitals.Category) ErrorClass {
	switch c {
	case vitals.CategoryLicensing:
		return ClassLicensing
	case vitals.CategoryMeasurement:
		return ClassMeasurement
	case vitals.CategoryResourceExhausted:
		return ClassResourceExhausted
	default:
		return ClassUnclassified
	}
}

func configurationMessage(err error) string {
	if errors.Is(err, vitals.ErrLicenseMalformed) {
		return "The license key is malformed. Check the configured license key."
	}
	return "No license key is configured. Set the license key and reload."
}

const (
	initFailedMessage  = "The measurement engine could not be initialized. Please reload the page."
	startFailedMessage = "The measurement could not be started. Reposition your face to retry."
)
