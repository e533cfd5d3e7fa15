package vitals

import (
	"errors"
	"fmt"
	"strings"
)

// Error domains used by the engine.
const (
	DomainLicense     = 2000
	DomainMeasurement = 3000
)

// License codes.
const (
	CodeLicenseInvalid       = 1001
	CodeLicenseInvalidFormat = 1002
	CodeLicenseExpired       = 1003
	CodeDomainNotAuthorized  = 2007
)

// Measurement codes.
const (
	CodeInvalidFrames    = 3003
	CodeActivationFailed = 3006
)

// Error is an engine error payload.
type Error struct {
	Domain  int                    `json:"domain"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("vitals: domain %d code %d: %s", e.Domain, e.Code, e.Message)
}

var (
	ErrLicenseMissing   = errors.New("vitals: license key is not configured")
	ErrLicenseMalformed = errors.New("vitals: license key is malformed")
)

// ValidateLicenseKey checks the shape of a license key before any engine
// or camera call is made.
func ValidateLicenseKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrLicenseMissing
	}
	if !strings.Contains(key, "-") {
		return ErrLicenseMalformed
	}
	return nil
}
