package vitals

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLicenseKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", ErrLicenseMissing},
		{"blank", "   ", ErrLicenseMissing},
		{"no separator", "ABCDEF123456", ErrLicenseMalformed},
		{"valid", "ABCD-1234-EF56", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateLicenseKey(tt.key), tt.want)
			if tt.want == nil {
				assert.NoError(t, ValidateLicenseKey(tt.key))
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      Error
		category Category
		fatal    bool
		contains string
	}{
		{"invalid key", Error{Domain: DomainLicense, Code: CodeLicenseInvalid}, CategoryLicensing, true, "invalid"},
		{"invalid key format", Error{Domain: DomainLicense, Code: CodeLicenseInvalidFormat}, CategoryLicensing, true, "invalid"},
		{"expired", Error{Domain: DomainLicense, Code: CodeLicenseExpired}, CategoryLicensing, true, "expired"},
		{"domain", Error{Domain: DomainLicense, Code: CodeDomainNotAuthorized}, CategoryLicensing, true, "scan.example.com"},
		{"other license", Error{Domain: DomainLicense, Code: 2099}, CategoryLicensing, true, "2099"},
		{"invalid frames", Error{Domain: DomainMeasurement, Code: CodeInvalidFrames}, CategoryMeasurement, false, "Center your face"},
		{"activation", Error{Domain: DomainMeasurement, Code: CodeActivationFailed}, CategoryMeasurement, false, "network"},
		{"other measurement", Error{Domain: DomainMeasurement, Code: 3010}, CategoryMeasurement, false, "3010"},
		{"oom in message", Error{Domain: DomainMeasurement, Code: 3001, Message: "Out Of Memory"}, CategoryResourceExhausted, true, "Reload"},
		{"aborted in details", Error{Domain: DomainLicense, Code: 1001, Details: map[string]interface{}{"reason": "wasm Aborted()"}}, CategoryResourceExhausted, true, "Reload"},
		{"oom token", Error{Domain: 9999, Message: "OOM"}, CategoryResourceExhausted, true, "memory"},
		{"unknown", Error{Domain: 42, Code: 7}, CategoryUnclassified, false, "try again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err, "scan.example.com")
			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.fatal, c.Fatal)
			assert.Contains(t, c.Message, tt.contains)
		})
	}
}

func TestSessionFailureMessage(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", Error{Domain: 0, Code: CodeLicenseExpired})
	assert.Contains(t, SessionFailureMessage(wrapped, ""), "expired")
	assert.Contains(t, SessionFailureMessage(fmt.Errorf("boom"), ""), "could not be started")
}

func TestEnumText(t *testing.T) {
	type enums struct {
		State       SessionState      `json:"state"`
		Validity    ImageValidity     `json:"validity"`
		Orientation DeviceOrientation `json:"orientation"`
	}
	raw, err := json.Marshal(enums{StateMeasuring, ValidityTiltedHead, OrientationLandscapeLeft})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"MEASURING","validity":"TILTED_HEAD","orientation":"LANDSCAPE_LEFT"}`, string(raw))

	var back enums
	require.NoError(t, json.Unmarshal([]byte(`{"state":"stopping","validity":"UNEVEN_LIGHT","orientation":"landscape_right"}`), &back))
	assert.Equal(t, StateStopping, back.State)
	assert.Equal(t, ValidityUnevenLight, back.Validity)
	assert.Equal(t, OrientationLandscapeRight, back.Orientation)

	assert.Error(t, json.Unmarshal([]byte(`{"orientation":"UPSIDE_DOWN"}`), &back))

	_, err = ParseImageValidity("BLURRY")
	assert.Error(t, err)
}

func TestFaceDetected(t *testing.T) {
	assert.True(t, ValidityValid.FaceDetected())
	assert.True(t, ValidityTiltedHead.FaceDetected())
	assert.True(t, ValidityUnevenLight.FaceDetected())
	assert.False(t, ValidityInvalidROI.FaceDetected())
	assert.False(t, ValidityInvalidDeviceOrientation.FaceDetected())
}

func TestResultMerge(t *testing.T) {
	var r Result
	r = r.Merge(Result{MetricPulseRate: {Value: 70}})
	r = r.Merge(Result{MetricPulseRate: {Value: 72}, MetricStressLevel: {Value: 1}})
	assert.Len(t, r, 2)
	assert.Equal(t, 72, r[MetricPulseRate].Value)
}
