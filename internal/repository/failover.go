package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"campusrun/internal/domain"
	"campusrun/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository routes to primary until it fails, then to fallback,
// retrying primary once per recoveryInterval.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverStateRepository) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary state repository recovered")
	}
}

// route runs call against primary while it is healthy and against fallback otherwise.
func route[T any](r *FailoverStateRepository, call func(domain.StateRepository) (T, error)) (T, error) {
	if r.usePrimary() {
		out, err := call(r.primary)
		if err == nil {
			r.recovered()
			return out, nil
		}
		r.markDown(err)
	}
	return call(r.fallback)
}

func (r *FailoverStateRepository) ApplyView(ctx context.Context, view *models.MissionView) (bool, error) {
	apply := func(repo domain.StateRepository) (bool, error) { return repo.ApplyView(ctx, view) }
	return route(r, apply)
}

func (r *FailoverStateRepository) GetView(ctx context.Context, missionID string) (*models.MissionView, error) {
	get := func(repo domain.StateRepository) (*models.MissionView, error) { return repo.GetView(ctx, missionID) }
	return route(r, get)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	check := func(repo domain.StateRepository) (bool, error) {
		return repo.CheckRateLimit(ctx, key, limit, window)
	}
	return route(r, check)
}
