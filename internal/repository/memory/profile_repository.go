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

type ProfileRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewProfileRepository(ttl time.Duration) *ProfileRepository {
	// Profiles are kept for the lifetime of a visit; expired items are
	// purged every 10 minutes.
	c := cache.New(ttl, 10*time.Minute)
	return &ProfileRepository{
		cache: c,
	}
}

// Save stores a copy so callers cannot mutate the stored profile.
func (r *ProfileRepository) Save(ctx context.Context, profile *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(profile.Id.String(), profile.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*model.UserProfile).Clone(), nil
	}
	return nil, contract.ErrNotFound
}

func (r *ProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.cache.Get(id.String()); !found {
		return contract.ErrNotFound
	}
	r.cache.Delete(id.String())
	return nil
}

func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, fn func(p *model.UserProfile) error) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(id.String())
	if !found {
		return nil, contract.ErrNotFound
	}
	p := x.(*model.UserProfile).Clone()
	if err := fn(p); err != nil {
		return nil, err
	}
	r.cache.Set(id.String(), p.Clone(), cache.DefaultExpiration)
	return p, nil
}
