package dto

import (
	"time"

	"github.com/google/uuid"
)

type UpdateGoalsRequest struct {
	Goals []string `json:"goals" validate:"max=2,unique,dive,oneof=stress heart energy recovery"`
}

type UpdateDemographicsRequest struct {
	Sex           string `json:"sex" validate:"omitempty,oneof=male female"`
	BirthDate     string `json:"birth_date" validate:"omitempty,datetime=02.01.2006"`
	Height        *int   `json:"height" validate:"omitempty,gt=0"`
	Weight        *int   `json:"weight" validate:"omitempty,gt=0"`
	SmokingStatus string `json:"smoking_status" validate:"omitempty,oneof=smoker non_smoker"`
}

type UpdateActivityRequest struct {
	Activity string `json:"activity" validate:"required,oneof=physical caffeine smoking none"`
}

type ProfileResponse struct {
	Id            uuid.UUID `json:"id"`
	Goals         []string  `json:"goals"`
	Sex           string    `json:"sex,omitempty"`
	BirthDate     string    `json:"birth_date,omitempty"`
	Age           *int      `json:"age,omitempty"`
	Height        *int      `json:"height,omitempty"`
	Weight        *int      `json:"weight,omitempty"`
	SmokingStatus string    `json:"smoking_status,omitempty"`
	Activity      string    `json:"activity,omitempty"`
	// Complete reports whether age and sex are both known, which derived
	// risk outputs need.
	Complete  bool      `json:"complete"`
	UpdatedAt time.Time `json:"updated_at"`
}
