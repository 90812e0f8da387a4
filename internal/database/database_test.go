package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campusrun/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func createTestMission(t *testing.T, db *DB, id, studentID string) *models.Mission {
	t.Helper()
	m := &models.Mission{
		ID:             id,
		StudentID:      studentID,
		Type:           "food_delivery",
		PickupAddress:  "Cafeteria",
		DropoffAddress: "Dorm 4",
		ItemCost:       15000,
		ServiceFee:     2000,
		PriceEstimate:  models.ComputePriceEstimate(15000, 2000, 0),
		Status:         models.StatusRequested,
		PaymentMethod:  "gcash",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.CreateMission(context.Background(), m))
	return m
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_ReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	createTestMission(t, db, "m1", "s1")
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	m, err := db.GetMission(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, m.Status)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	assert.NoError(t, db.PingContext(context.Background()))
}

func TestPriceFieldsAreImmutable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")

	_, err := db.ExecContext(ctx, `UPDATE missions SET price_estimate = 1 WHERE id = ?`, "m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	_, err = db.TransitionMission(ctx, models.Transition{
		MissionID: "m1",
		From:      []string{models.StatusRequested},
		To:        models.StatusCancelled,
		ActorID:   "s1",
		Set:       map[string]interface{}{"additional_cost": int64(900)},
	})
	require.Error(t, err)

	m, err := db.GetMission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(17000), m.PriceEstimate)
	assert.Equal(t, models.StatusRequested, m.Status)
}

func TestUnknownStatusIsRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")

	_, err := db.ExecContext(ctx, `UPDATE missions SET status = 'delivering' WHERE id = ?`, "m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK constraint")
}
