package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/database"
	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	Type    string
	Payload events.MissionEventPayload
}

type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Type: eventType, Payload: payload.(events.MissionEventPayload)})
	return nil
}

func (b *recordingBus) ofType(eventType string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, missionID string, mission *models.Mission, status string) error {
	return m.Called(ctx, taskType, missionID, mission, status).Error(0)
}

var testPricing = config.PricingConfig{ServiceFee: 2000, Currency: "PHP", DefaultPaymentMethod: "gcash"}

type testEnv struct {
	svc *MissionService
	db  *database.DB
	bus *recordingBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newEnvWithStore(t, db)
}

func newFileTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "missions.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newEnvWithStore(t, db)
}

func newEnvWithStore(t *testing.T, db *database.DB) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	bus := &recordingBus{}
	svc := NewMissionService(db, bus, nil, testPricing, &logger)

	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})
	return &testEnv{svc: svc, db: db, bus: bus}
}

func defaultInput() domain.CreateMissionInput {
	return domain.CreateMissionInput{
		Type:           "grocery",
		PickupAddress:  "Campus Mart",
		DropoffAddress: "Dorm B, Room 204",
		Details:        "2L milk, bread",
		ItemCost:       10000,
	}
}

func (e *testEnv) createMission(t *testing.T, studentID string) *models.Mission {
	t.Helper()
	m, err := e.svc.CreateMission(context.Background(), studentID, defaultInput())
	require.NoError(t, err)
	return m
}

// assignedMission returns a mission with runnerID confirmed.
func (e *testEnv) assignedMission(t *testing.T, studentID, runnerID string) *models.Mission {
	t.Helper()
	ctx := context.Background()
	m := e.createMission(t, studentID)
	_, err := e.svc.ApplyToMission(ctx, runnerID, m.ID)
	require.NoError(t, err)
	m, err = e.svc.ConfirmRunner(ctx, studentID, m.ID, runnerID)
	require.NoError(t, err)
	return m
}

// activeMission returns a mission whose payment has been accepted.
func (e *testEnv) activeMission(t *testing.T, studentID, runnerID string) *models.Mission {
	t.Helper()
	ctx := context.Background()
	m := e.assignedMission(t, studentID, runnerID)
	_, err := e.svc.SubmitPaymentProof(ctx, studentID, m.ID, "https://cdn.example.com/r/1.jpg", "REF-1")
	require.NoError(t, err)
	m, err = e.svc.VerifyPayment(ctx, runnerID, m.ID, true, "")
	require.NoError(t, err)
	return m
}

// deliveredMission returns a mission awaiting ratings.
func (e *testEnv) deliveredMission(t *testing.T, studentID, runnerID string) *models.Mission {
	t.Helper()
	ctx := context.Background()
	m := e.activeMission(t, studentID, runnerID)
	_, err := e.svc.SubmitProofOfDelivery(ctx, runnerID, m.ID, "https://cdn.example.com/p/1.jpg")
	require.NoError(t, err)
	m, err = e.svc.ConfirmDelivery(ctx, studentID, m.ID)
	require.NoError(t, err)
	return m
}
