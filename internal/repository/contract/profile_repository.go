package contract

import (
	"context"

	"vitals-scan-be/internal/model"

	"github.com/google/uuid"
)

type ProfileRepository interface {
	Save(ctx context.Context, profile *model.UserProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Update applies fn to the stored profile atomically.
	Update(ctx context.Context, id uuid.UUID, fn func(p *model.UserProfile) error) (*model.UserProfile, error)
}
