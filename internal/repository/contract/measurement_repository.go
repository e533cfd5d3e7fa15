package contract

import (
	"context"

	"vitals-scan-be/internal/model"

	"github.com/google/uuid"
)

type MeasurementRepository interface {
	Save(ctx context.Context, m *model.Measurement) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Measurement, error)
	// Update applies fn to the stored record atomically.
	Update(ctx context.Context, id uuid.UUID, fn func(m *model.Measurement) error) (*model.Measurement, error)
}
