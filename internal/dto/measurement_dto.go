package dto

import (
	"time"

	"vitals-scan-be/pkg/capture"
	"vitals-scan-be/pkg/vitals"

	"github.com/google/uuid"
)

type CreateMeasurementRequest struct {
	ProfileId *uuid.UUID `json:"profile_id"`
}

type CreateMeasurementResponse struct {
	Id             uuid.UUID `json:"id"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	WsPath         string    `json:"ws_path"`
	ProcessingTime int       `json:"processing_time"`
	Engine         string    `json:"engine"`
}

type MeasurementResponse struct {
	Id             uuid.UUID          `json:"id"`
	Status         string             `json:"status"`
	ProcessingTime int                `json:"processing_time"`
	Snapshot       *capture.Snapshot  `json:"snapshot,omitempty"`
	Error          *capture.ErrorInfo `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type MeasurementResultsResponse struct {
	Id         uuid.UUID     `json:"id"`
	Results    vitals.Result `json:"results"`
	FinishedAt *time.Time    `json:"finished_at"`
}

// PublishMeasurementResultsMessage is the results hand-off payload on the
// internal bus.
type PublishMeasurementResultsMessage struct {
	MeasurementId uuid.UUID     `json:"measurement_id"`
	Results       vitals.Result `json:"results"`
}
