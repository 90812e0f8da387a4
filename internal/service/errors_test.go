package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campusrun/internal/database"
	"campusrun/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		in   error
		kind Kind
	}{
		{in: database.ErrNotFound, kind: KindNotFound},
		{in: fmt.Errorf("wrapped: %w", database.ErrStatusConflict), kind: KindInvalidState},
		{in: database.ErrRunnerBusy, kind: KindRunnerBusy},
		{in: database.ErrDuplicateApplication, kind: KindDuplicateApplication},
		{in: database.ErrNotApplicant, kind: KindNotApplicant},
		{in: errors.New("disk full"), kind: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(translate(tt.in)), tt.in.Error())
	}
	assert.NoError(t, translate(nil))

	busy := translate(database.ErrRunnerBusy)
	assert.Equal(t, runnerBusyMessage, busy.Error())
	assert.ErrorIs(t, busy, database.ErrRunnerBusy)
}

func TestErrorIs(t *testing.T) {
	err := newError(KindForbidden, "nope")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("ctx: %w", err), ErrForbidden)
	assert.NotErrorIs(t, err, &Error{Kind: KindForbidden, Message: "other"})
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateMission(ctx context.Context, mission *models.Mission) error {
	return m.Called(ctx, mission).Error(0)
}

func (m *mockStore) GetMission(ctx context.Context, id string) (*models.Mission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *mockStore) ListMissions(ctx context.Context, filter models.MissionFilter) ([]*models.Mission, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Mission), args.Error(1)
}

func (m *mockStore) TransitionMission(ctx context.Context, tr models.Transition) (*models.Mission, error) {
	args := m.Called(ctx, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *mockStore) AddApplicant(ctx context.Context, missionID, runnerID string, at time.Time) (*models.Mission, error) {
	args := m.Called(ctx, missionID, runnerID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *mockStore) AssignRunner(ctx context.Context, missionID, runnerID, actorID string, at time.Time) (*models.Mission, error) {
	args := m.Called(ctx, missionID, runnerID, actorID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *mockStore) ListApplicants(ctx context.Context, missionID string) ([]*models.Applicant, error) {
	args := m.Called(ctx, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Applicant), args.Error(1)
}

func (m *mockStore) GetMissionHistory(ctx context.Context, missionID string) ([]*models.TransitionRecord, error) {
	args := m.Called(ctx, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TransitionRecord), args.Error(1)
}

func TestInternalStoreErrorsAreWrapped(t *testing.T) {
	store := &mockStore{}
	svc := NewMissionService(store, nil, nil, testPricing, nil)
	ctx := context.Background()

	boom := errors.New("database is locked")
	store.On("GetMission", ctx, "m1").Return(nil, boom)

	_, err := svc.GetMission(ctx, "m1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Kind(""), KindOf(err))
	assert.Contains(t, err.Error(), "get_mission")
	store.AssertExpectations(t)
}

func TestStoreConflictSurfacesAsInvalidState(t *testing.T) {
	store := &mockStore{}
	svc := NewMissionService(store, nil, nil, testPricing, nil)
	ctx := context.Background()

	runner := "R"
	m := &models.Mission{ID: "m1", StudentID: "S", RunnerID: &runner, Status: models.StatusProofSubmitted, Version: 7}
	store.On("GetMission", ctx, "m1").Return(m, nil)
	store.On("TransitionMission", ctx, mock.MatchedBy(func(tr models.Transition) bool {
		return tr.MissionID == "m1" && tr.To == models.StatusAwaitingStudentConfirmation && tr.ActorID == "S"
	})).Return(nil, fmt.Errorf("%w: mission m1 changed", database.ErrStatusConflict))

	_, err := svc.ConfirmDelivery(ctx, "S", "m1")
	assert.ErrorIs(t, err, ErrInvalidState)
	store.AssertExpectations(t)
}

func TestNilListsBecomeEmpty(t *testing.T) {
	store := &mockStore{}
	svc := NewMissionService(store, nil, nil, testPricing, nil)
	ctx := context.Background()

	store.On("ListMissions", ctx, mock.Anything).Return(nil, nil)

	open, err := svc.ListOpenMissions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, open)
	assert.Empty(t, open)
}
