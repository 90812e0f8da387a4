package database

import (
	"context"
	"testing"
	"time"

	"campusrun/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetMission(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	want := createTestMission(t, db, "m1", "s1")

	got, err := db.GetMission(ctx, "m1")
	require.NoError(t, err)

	opts := cmpopts.EquateApproxTime(time.Millisecond)
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("mission mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(1), got.Version)
	assert.Nil(t, got.RunnerID)
}

func TestGetMission_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetMission(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionMission(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")

	reason := "changed my mind"
	m, err := db.TransitionMission(ctx, models.Transition{
		MissionID: "m1",
		From:      models.CancellableStatuses,
		To:        models.StatusCancelled,
		ActorID:   "s1",
		Set:       map[string]interface{}{"cancellation_reason": reason},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, m.Status)
	assert.Equal(t, int64(2), m.Version)
	require.NotNil(t, m.CancellationReason)
	assert.Equal(t, reason, *m.CancellationReason)

	t.Run("stale expected status", func(t *testing.T) {
		_, err := db.TransitionMission(ctx, models.Transition{
			MissionID: "m1",
			From:      models.CancellableStatuses,
			To:        models.StatusCancelled,
			ActorID:   "s1",
		})
		assert.ErrorIs(t, err, ErrStatusConflict)
		assert.Contains(t, err.Error(), models.StatusCancelled)
	})

	t.Run("unknown mission", func(t *testing.T) {
		_, err := db.TransitionMission(ctx, models.Transition{
			MissionID: "nope",
			From:      []string{models.StatusRequested},
			To:        models.StatusCancelled,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransitionMission_RequireNull(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")
	_, err := db.ExecContext(ctx, `UPDATE missions SET status = ?, student_rating = 5 WHERE id = ?`,
		models.StatusAwaitingStudentConfirmation, "m1")
	require.NoError(t, err)

	_, err = db.TransitionMission(ctx, models.Transition{
		MissionID:   "m1",
		From:        []string{models.StatusAwaitingStudentConfirmation},
		To:          models.StatusCompleted,
		ActorID:     "s1",
		Set:         map[string]interface{}{"student_rating": 3},
		RequireNull: []string{"student_rating"},
	})
	assert.ErrorIs(t, err, ErrStatusConflict)

	m, err := db.GetMission(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, m.StudentRating)
	assert.Equal(t, 5, *m.StudentRating)
}

func TestTransitionMission_ThroughRecordsHistory(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")
	_, err := db.ExecContext(ctx, `UPDATE missions SET status = ? WHERE id = ?`, models.StatusPaymentSubmitted, "m1")
	require.NoError(t, err)

	m, err := db.TransitionMission(ctx, models.Transition{
		MissionID: "m1",
		From:      []string{models.StatusPaymentSubmitted},
		Through:   models.StatusPaymentVerified,
		To:        models.StatusActiveMission,
		ActorID:   "r1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActiveMission, m.Status)

	history, err := db.GetMissionHistory(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusPaymentVerified, history[0].ToStatus)
	assert.Equal(t, models.StatusPaymentVerified, history[1].FromStatus)
	assert.Equal(t, models.StatusActiveMission, history[1].ToStatus)
	assert.Equal(t, "r1", history[1].ActorID)
}

func TestListMissions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	createTestMission(t, db, "m1", "s1")
	createTestMission(t, db, "m2", "s1")
	createTestMission(t, db, "m3", "s2")

	_, err := db.TransitionMission(ctx, models.Transition{
		MissionID: "m2", From: models.CancellableStatuses, To: models.StatusCancelled, ActorID: "s1",
	})
	require.NoError(t, err)

	open, err := db.ListMissions(ctx, models.MissionFilter{Statuses: models.OpenStatuses})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	mine, err := db.ListMissions(ctx, models.MissionFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	limited, err := db.ListMissions(ctx, models.MissionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAssignRunner(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	createTestMission(t, db, "m1", "s1")
	createTestMission(t, db, "m2", "s2")

	t.Run("not an applicant", func(t *testing.T) {
		_, err := db.AssignRunner(ctx, "m1", "r1", "s1", now)
		assert.ErrorIs(t, err, ErrNotApplicant)
	})

	_, err := db.AddApplicant(ctx, "m1", "r1", now)
	require.NoError(t, err)
	_, err = db.AddApplicant(ctx, "m2", "r1", now)
	require.NoError(t, err)

	m, err := db.AssignRunner(ctx, "m1", "r1", "s1", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunnerSelected, m.Status)
	assert.Equal(t, "r1", m.Runner())

	count, err := db.CountActiveMissions(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("runner busy", func(t *testing.T) {
		_, err := db.AssignRunner(ctx, "m2", "r1", "s2", now)
		assert.ErrorIs(t, err, ErrRunnerBusy)

		m2, err := db.GetMission(ctx, "m2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingRunnerConfirmation, m2.Status)
		assert.Nil(t, m2.RunnerID)
	})

	t.Run("already confirmed", func(t *testing.T) {
		_, err := db.AssignRunner(ctx, "m1", "r1", "s1", now)
		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("unique index backs the count", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `UPDATE missions SET runner_id = ?, status = ? WHERE id = ?`,
			"r1", models.StatusRunnerSelected, "m2")
		require.Error(t, err)
		assert.True(t, isUniqueViolation(err))
	})
}
