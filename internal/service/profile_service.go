package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vitals-scan-be/internal/dto"
	"vitals-scan-be/internal/model"
	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/internal/repository/contract"
	"vitals-scan-be/pkg/vitals"

	"github.com/google/uuid"
)

const (
	birthDateLayout = "02.01.2006"
	minBirthYear    = 1900
	maxAge          = 150
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidBirthDate = errors.New("invalid birth date")
)

type IProfileService interface {
	Create(ctx context.Context) (*dto.ProfileResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateGoals(ctx context.Context, id uuid.UUID, req *dto.UpdateGoalsRequest) (*dto.ProfileResponse, error)
	UpdateDemographics(ctx context.Context, id uuid.UUID, req *dto.UpdateDemographicsRequest) (*dto.ProfileResponse, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, req *dto.UpdateActivityRequest) (*dto.ProfileResponse, error)
	// UserInformation snapshots what the engine needs from a profile.
	UserInformation(ctx context.Context, id uuid.UUID) (*vitals.UserInformation, error)
}

type profileService struct {
	repo   contract.ProfileRepository
	logger logger.ILogger
	now    func() time.Time
}

func NewProfileService(repo contract.ProfileRepository, log logger.ILogger) IProfileService {
	return &profileService{repo: repo, logger: log, now: time.Now}
}

func (s *profileService) Create(ctx context.Context) (*dto.ProfileResponse, error) {
	now := s.now()
	p := &model.UserProfile{Id: uuid.New(), CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return toProfileResponse(p), nil
}

func (s *profileService) Get(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProfileResponse(p), nil
}

func (s *profileService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *profileService) UpdateGoals(ctx context.Context, id uuid.UUID, req *dto.UpdateGoalsRequest) (*dto.ProfileResponse, error) {
	if len(req.Goals) > model.MaxGoals {
		return nil, fmt.Errorf("at most %d goals can be selected", model.MaxGoals)
	}
	return s.update(ctx, id, func(p *model.UserProfile) error {
		p.Goals = append([]string(nil), req.Goals...)
		return nil
	})
}

// UpdateDemographics replaces the demographic answers. Empty fields clear
// the stored value.
func (s *profileService) UpdateDemographics(ctx context.Context, id uuid.UUID, req *dto.UpdateDemographicsRequest) (*dto.ProfileResponse, error) {
	var age *int
	if req.BirthDate != "" {
		a, err := AgeFromBirthDate(req.BirthDate, s.now())
		if err != nil {
			return nil, err
		}
		age = &a
	}

	return s.update(ctx, id, func(p *model.UserProfile) error {
		p.Sex = parseSex(req.Sex)
		p.BirthDate = req.BirthDate
		p.Age = age
		p.Height = req.Height
		p.Weight = req.Weight
		p.Smoking = parseSmoking(req.SmokingStatus)
		return nil
	})
}

func (s *profileService) UpdateActivity(ctx context.Context, id uuid.UUID, req *dto.UpdateActivityRequest) (*dto.ProfileResponse, error) {
	return s.update(ctx, id, func(p *model.UserProfile) error {
		p.Activity = req.Activity
		return nil
	})
}

func (s *profileService) UserInformation(ctx context.Context, id uuid.UUID) (*vitals.UserInformation, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	info := p.UserInformation()
	if info == nil {
		s.logger.Warn("ProfileService", "Profile lacks age or sex, derived risk outputs unavailable", map[string]interface{}{
			"profile_id": id,
		})
	}
	return info, nil
}

func (s *profileService) find(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) update(ctx context.Context, id uuid.UUID, fn func(p *model.UserProfile) error) (*dto.ProfileResponse, error) {
	p, err := s.repo.Update(ctx, id, func(p *model.UserProfile) error {
		if err := fn(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return toProfileResponse(p), nil
}

// AgeFromBirthDate parses a DD.MM.YYYY date and returns the age in whole
// years at now.
func AgeFromBirthDate(value string, now time.Time) (int, error) {
	// time.Parse normalizes nothing: 31.02.2000 is rejected
	born, err := time.Parse(birthDateLayout, value)
	if err != nil {
		return 0, fmt.Errorf("%w: expected DD.MM.YYYY", ErrInvalidBirthDate)
	}
	if born.Year() < minBirthYear || born.Year() > now.Year() {
		return 0, fmt.Errorf("%w: year must be between %d and %d", ErrInvalidBirthDate, minBirthYear, now.Year())
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if born.After(today) {
		return 0, fmt.Errorf("%w: date is in the future", ErrInvalidBirthDate)
	}

	age := today.Year() - born.Year()
	if today.Month() < born.Month() || (today.Month() == born.Month() && today.Day() < born.Day()) {
		age--
	}
	if age > maxAge {
		return 0, fmt.Errorf("%w: age cannot exceed %d", ErrInvalidBirthDate, maxAge)
	}
	return age, nil
}

func parseSex(v string) vitals.Sex {
	switch v {
	case "male":
		return vitals.SexMale
	case "female":
		return vitals.SexFemale
	}
	return vitals.SexUnspecified
}

func parseSmoking(v string) vitals.SmokingStatus {
	switch v {
	case "smoker":
		return vitals.SmokingSmoker
	case "non_smoker":
		return vitals.SmokingNonSmoker
	}
	return vitals.SmokingUnspecified
}

func toProfileResponse(p *model.UserProfile) *dto.ProfileResponse {
	resp := &dto.ProfileResponse{
		Id:        p.Id,
		Goals:     p.Goals,
		BirthDate: p.BirthDate,
		Age:       p.Age,
		Height:    p.Height,
		Weight:    p.Weight,
		Activity:  p.Activity,
		Complete:  p.UserInformation() != nil,
		UpdatedAt: p.UpdatedAt,
	}
	if resp.Goals == nil {
		resp.Goals = []string{}
	}
	switch p.Sex {
	case vitals.SexMale:
		resp.Sex = "male"
	case vitals.SexFemale:
		resp.Sex = "female"
	}
	switch p.Smoking {
	case vitals.SmokingSmoker:
		resp.SmokingStatus = "smoker"
	case vitals.SmokingNonSmoker:
		resp.SmokingStatus = "non_smoker"
	}
	return resp
}
