package model

import (
	"time"

	"vitals-scan-be/pkg/vitals"

	"github.com/google/uuid"
)

const (
	GoalStress   = "stress"
	GoalHeart    = "heart"
	GoalEnergy   = "energy"
	GoalRecovery = "recovery"

	MaxGoals = 2
)

const (
	ActivityPhysical = "physical"
	ActivityCaffeine = "caffeine"
	ActivitySmoking  = "smoking"
	ActivityNone     = "none"
)

// UserProfile is the questionnaire state. It lives in memory only.
type UserProfile struct {
	Id        uuid.UUID
	Goals     []string
	Sex       vitals.Sex
	BirthDate string // DD.MM.YYYY
	Age       *int
	Height    *int // cm
	Weight    *int // kg
	Smoking   vitals.SmokingStatus
	Activity  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserInformation returns nil unless both age and sex are known.
func (p *UserProfile) UserInformation() *vitals.UserInformation {
	if p == nil || p.Age == nil || p.Sex == vitals.SexUnspecified {
		return nil
	}
	return &vitals.UserInformation{
		Age:     *p.Age,
		Sex:     p.Sex,
		Height:  p.Height,
		Weight:  p.Weight,
		Smoking: p.Smoking,
	}
}

func (p *UserProfile) Clone() *UserProfile {
	c := *p
	c.Goals = append([]string(nil), p.Goals...)
	c.Age = cloneInt(p.Age)
	c.Height = cloneInt(p.Height)
	c.Weight = cloneInt(p.Weight)
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
