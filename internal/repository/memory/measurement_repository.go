package memory

import (
	"context"
	"sync"
	"time"

	"vitals-scan-be/internal/model"
	"vitals-scan-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type MeasurementRepository struct {
	cache *cache.Cache
	// serializes read-modify-write in Update
	mu sync.Mutex
}

func NewMeasurementRepository(ttl time.Duration) *MeasurementRepository {
	return &MeasurementRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *MeasurementRepository) Save(ctx context.Context, m *model.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(m.Id.String(), m.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *MeasurementRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *MeasurementRepository) Update(ctx context.Context, id uuid.UUID, fn func(m *model.Measurement) error) (*model.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.find(id)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	r.cache.Set(id.String(), m.Clone(), cache.DefaultExpiration)
	return m, nil
}

func (r *MeasurementRepository) find(id uuid.UUID) (*model.Measurement, error) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, contract.ErrNotFound
	}
	return x.(*model.Measurement).Clone(), nil
}
