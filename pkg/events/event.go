package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "MEASUREMENT_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	MeasurementStarted   = "MEASUREMENT_STARTED"
	MeasurementCompleted = "MEASUREMENT_COMPLETED"
	MeasurementFailed    = "MEASUREMENT_FAILED"
	MeasurementCancelled = "MEASUREMENT_CANCELLED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewMeasurementEvent builds a lifecycle event. The measurement id and the
// occurrence time travel in the payload so subscribers can rebuild them.
func NewMeasurementEvent(eventType string, measurementID uuid.UUID, at time.Time, data map[string]interface{}) BaseEvent {
	payload := map[string]interface{}{
		"measurement_id": measurementID.String(),
		"occurred_at":    at.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: at}
}
