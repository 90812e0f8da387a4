package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/models"

	"github.com/redis/go-redis/v9"
)

// applyViewScript writes the view only when its version is newer than the stored one.
var applyViewScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

const (
	viewKeyPrefix      = "campusrun:view:"
	rateLimitKeyPrefix = "campusrun:ratelimit:"
)

var errNoRedisClient = errors.New("redis client is nil")

// RedisStateRepository keeps mission views and rate limit counters in Redis
// so every API and notifier instance shares them.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{client: client, ttl: ttl}
}

func viewKey(missionID string) string {
	return viewKeyPrefix + missionID
}

func (r *RedisStateRepository) ApplyView(ctx context.Context, view *models.MissionView) (bool, error) {
	if r.client == nil {
		return false, errNoRedisClient
	}
	data, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("encode view %s: %w", view.MissionID, err)
	}

	keys := []string{viewKey(view.MissionID)}
	written, err := applyViewScript.Run(ctx, r.client, keys, view.Version, data, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("apply view %s: %w", view.MissionID, err)
	}
	return written == 1, nil
}

func (r *RedisStateRepository) GetView(ctx context.Context, missionID string) (*models.MissionView, error) {
	if r.client == nil {
		return nil, errNoRedisClient
	}
	raw, err := r.client.HGet(ctx, viewKey(missionID), "data").Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get view %s: %w", missionID, err)
	}

	view := &models.MissionView{}
	if err := json.Unmarshal(raw, view); err != nil {
		return nil, fmt.Errorf("decode view %s: %w", missionID, err)
	}
	return view, nil
}

// CheckRateLimit counts calls for key in a fixed window that starts with the
// first call.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNoRedisClient
	}
	k := rateLimitKeyPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit window %s: %w", key, err)
		}
	}
	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
