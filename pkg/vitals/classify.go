package vitals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Category int

const (
	CategoryUnclassified Category = iota
	CategoryLicensing
	CategoryMeasurement
	CategoryResourceExhausted
)

func (c Category) String() string {
	switch c {
	case CategoryLicensing:
		return "licensing"
	case CategoryMeasurement:
		return "measurement"
	case CategoryResourceExhausted:
		return "resource_exhausted"
	default:
		return "unclassified"
	}
}

// Classification is the local reading of an engine error.
type Classification struct {
	Category Category
	Fatal    bool
	Message  string
}

var exhaustionMarkers = []string{"oom", "out of memory", "aborted"}

// Classify maps an engine error to a category and a user-facing message.
// host names the page origin in domain authorization failures.
func Classify(e Error, host string) Classification {
	if resourceExhausted(e) {
		return Classification{
			Category: CategoryResourceExhausted,
			Fatal:    true,
			Message:  "The device ran out of memory during the measurement. Reload the page to continue.",
		}
	}

	switch e.Domain {
	case DomainLicense:
		return Classification{Category: CategoryLicensing, Fatal: true, Message: LicenseMessage(e.Code, host)}
	case DomainMeasurement:
		return Classification{Category: CategoryMeasurement, Message: measurementMessage(e.Code)}
	default:
		return Classification{
			Category: CategoryUnclassified,
			Message:  "Something went wrong during the measurement. Please try again.",
		}
	}
}

// LicenseMessage is the persistent text for a licensing failure.
func LicenseMessage(code int, host string) string {
	switch code {
	case CodeLicenseInvalid, CodeLicenseInvalidFormat:
		return "The license key is invalid. Check the configured license key."
	case CodeLicenseExpired:
		return "The license has expired. Contact your provider to renew it."
	case CodeDomainNotAuthorized:
		if host == "" {
			return "This domain is not authorized for the license."
		}
		return fmt.Sprintf("This domain (%s) is not authorized for the license.", host)
	default:
		return fmt.Sprintf("License error (code %d).", code)
	}
}

func measurementMessage(code int) string {
	switch code {
	case CodeInvalidFrames:
		return "Your face was not positioned correctly. Center your face in the frame and try again."
	case CodeActivationFailed:
		return "The measurement could not be activated. Check your network connection and try again."
	default:
		return fmt.Sprintf("Measurement error (code %d). Reposition your face and try again.", code)
	}
}

// SessionFailureMessage is the text for a failed session creation.
func SessionFailureMessage(err error, host string) string {
	var e Error
	if errors.As(err, &e) {
		if e.Domain == DomainLicense || (e.Code >= CodeLicenseInvalid && e.Code <= CodeLicenseExpired) {
			return LicenseMessage(e.Code, host)
		}
	}
	return "The measurement session could not be started. Please reload the page."
}

func resourceExhausted(e Error) bool {
	raw, err := json.Marshal(e)
	if err != nil {
		raw = []byte(e.Message)
	}
	s := strings.ToLower(string(raw))
	for _, m := range exhaustionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
