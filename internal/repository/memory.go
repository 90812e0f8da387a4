package repository

import (
	"context"
	"sync"
	"time"

	"campusrun/internal/models"
)

// MemoryStateRepository keeps views and rate limit windows in process.
// It is the fallback when Redis is unavailable. Views expire ttl after their
// last write, as they do in Redis; a non-positive ttl keeps them forever.
type MemoryStateRepository struct {
	mu         sync.Mutex
	views      map[string]*viewEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type viewEntry struct {
	view      models.MissionView
	expiresAt time.Time
}

func (e *viewEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		views:      make(map[string]*viewEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

// lookup returns the live entry for missionID, dropping it once expired.
// Callers hold r.mu.
func (r *MemoryStateRepository) lookup(missionID string, now time.Time) (*viewEntry, bool) {
	entry, ok := r.views[missionID]
	if !ok {
		return nil, false
	}
	if entry.expired(now) {
		delete(r.views, missionID)
		return nil, false
	}
	return entry, true
}

// ApplyView stores view unless a live view with the same or a newer version is present.
func (r *MemoryStateRepository) ApplyView(ctx context.Context, view *models.MissionView) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if cur, ok := r.lookup(view.MissionID, now); ok && cur.view.Version >= view.Version {
		return false, nil
	}

	entry := &viewEntry{view: *view}
	if r.ttl > 0 {
		entry.expiresAt = now.Add(r.ttl)
	}
	r.views[view.MissionID] = entry
	return true, nil
}

func (r *MemoryStateRepository) GetView(ctx context.Context, missionID string) (*models.MissionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.lookup(missionID, r.now())
	if !ok {
		return nil, nil
	}
	v := cur.view
	return &v, nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
