// Package bridge drives a vitals engine and camera that live in a remote
// client (the browser) over a websocket. Commands are correlated with
// replies by id; engine callbacks arrive as unsolicited frames.
package bridge

import (
	"encoding/json"

	"vitals-scan-be/pkg/vitals"
)

const (
	FrameCommand  = "command"
	FrameReply    = "reply"
	FrameCallback = "callback"
	FrameSnapshot = "snapshot"
	FrameNavigate = "navigate"
)

// Commands sent to the client.
const (
	CmdInitialize       = "initialize"
	CmdOpenCamera       = "open_camera"
	CmdEnumerateDevices = "enumerate_devices"
	CmdStopTracks       = "stop_tracks"
	CmdCreateSession    = "create_session"
	CmdStart            = "start"
	CmdStop             = "stop"
	CmdTerminate        = "terminate"
)

// Callbacks received from the client.
const (
	CbImageData          = "image_data"
	CbVitalSign          = "vital_sign"
	CbFinalResults       = "final_results"
	CbError              = "error"
	CbWarning            = "warning"
	CbStateChange        = "state_change"
	CbActivation         = "activation"
	CbEnabledVitalSigns  = "enabled_vital_signs"
	CbOfflineMeasurement = "offline_measurement"
)

type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

// RemoteError is a failure reported by the client. Name carries the
// browser exception name for camera failures; Domain and Code are set
// for engine failures.
type RemoteError struct {
	Name    string                 `json:"name,omitempty"`
	Message string                 `json:"message"`
	Domain  int                    `json:"domain,omitempty"`
	Code    int                    `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type initializePayload struct {
	LicenseKey string `json:"license_key"`
	ProductID  string `json:"product_id,omitempty"`
}

type trackInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type streamInfo struct {
	StreamID string      `json:"stream_id"`
	Tracks   []trackInfo `json:"tracks"`
}

type streamRef struct {
	StreamID string `json:"stream_id"`
}

type createSessionPayload struct {
	StreamID        string                   `json:"stream_id"`
	CameraDeviceID  string                   `json:"camera_device_id,omitempty"`
	ProcessingTime  int                      `json:"processing_time"`
	Orientation     vitals.DeviceOrientation `json:"orientation"`
	StrictGuidance  bool                     `json:"strict_guidance"`
	UserInformation *vitals.UserInformation  `json:"user_information,omitempty"`
}

type sessionRef struct {
	SessionID string `json:"session_id"`
}

type imageDataPayload struct {
	Validity vitals.ImageValidity `json:"validity"`
}

type resultPayload struct {
	Result vitals.Result `json:"result"`
}

type stateChangePayload struct {
	State vitals.SessionState `json:"state"`
}

type activationPayload struct {
	ActivationID string `json:"activation_id"`
}

type enabledVitalSignsPayload struct {
	Signs []string `json:"signs"`
}

type offlineMeasurementPayload struct {
	Remaining int `json:"remaining"`
}
