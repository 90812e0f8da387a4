package repository

import (
	"context"
	"testing"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("ApplyAndGetView", func(t *testing.T) {
		view := &models.MissionView{
			MissionID: "m1",
			Status:    models.StatusPendingRunnerConfirmation,
			Version:   2,
			StudentID: "s1",
			UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}

		applied, err := repo.ApplyView(ctx, view)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetView(ctx, "m1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, view.Status, got.Status)
		assert.Equal(t, view.Version, got.Version)
		assert.True(t, view.UpdatedAt.Equal(got.UpdatedAt))

		assert.True(t, s.Exists(viewKey("m1")))
		assert.Greater(t, s.TTL(viewKey("m1")), time.Duration(0))
	})

	t.Run("OlderVersionIgnored", func(t *testing.T) {
		applied, err := repo.ApplyView(ctx, &models.MissionView{MissionID: "m1", Status: models.StatusRequested, Version: 1})
		require.NoError(t, err)
		assert.False(t, applied)

		applied, err = repo.ApplyView(ctx, &models.MissionView{MissionID: "m1", Status: models.StatusRunnerSelected, Version: 3, RunnerID: "r1"})
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetView(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, "r1", got.RunnerID)
	})

	t.Run("GetMissingView", func(t *testing.T) {
		got, err := repo.GetView(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "ip:10.0.0.1"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStateRepository(nil, time.Hour)
		_, err := repo.GetView(ctx, "m1")
		assert.ErrorIs(t, err, errNoRedisClient)
		_, err = repo.ApplyView(ctx, &models.MissionView{MissionID: "m1"})
		assert.ErrorIs(t, err, errNoRedisClient)
		_, err = repo.CheckRateLimit(ctx, "u1", 1, time.Second)
		assert.ErrorIs(t, err, errNoRedisClient)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
	})
}
