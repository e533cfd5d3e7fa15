package model

import (
	"time"

	"vitals-scan-be/pkg/capture"
	"vitals-scan-be/pkg/vitals"

	"github.com/google/uuid"
)

type MeasurementStatus string

const (
	MeasurementPending   MeasurementStatus = "pending"
	MeasurementRunning   MeasurementStatus = "running"
	MeasurementCompleted MeasurementStatus = "completed"
	MeasurementFailed    MeasurementStatus = "failed"
	MeasurementCancelled MeasurementStatus = "cancelled"
)

func (s MeasurementStatus) Final() bool {
	return s == MeasurementCompleted || s == MeasurementFailed || s == MeasurementCancelled
}

// Measurement records one capture screen. User is the profile snapshot
// taken at creation and never changes afterwards.
type Measurement struct {
	Id             uuid.UUID
	ProfileId      *uuid.UUID
	User           *vitals.UserInformation
	ProcessingTime int // seconds
	Status         MeasurementStatus
	Results        vitals.Result
	Error          *capture.ErrorInfo
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// Clone returns a deep copy. Metric values are opaque and stay shared.
func (m *Measurement) Clone() *Measurement {
	c := *m
	if m.ProfileId != nil {
		id := *m.ProfileId
		c.ProfileId = &id
	}
	if m.User != nil {
		u := *m.User
		u.Height = cloneInt(m.User.Height)
		u.Weight = cloneInt(m.User.Weight)
		c.User = &u
	}
	if m.Results != nil {
		c.Results = make(vitals.Result, len(m.Results))
		for k, v := range m.Results {
			if v.Confidence != nil {
				conf := *v.Confidence
				v.Confidence = &conf
			}
			c.Results[k] = v
		}
	}
	if m.Error != nil {
		e := *m.Error
		c.Error = &e
	}
	c.StartedAt = cloneTime(m.StartedAt)
	c.FinishedAt = cloneTime(m.FinishedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
