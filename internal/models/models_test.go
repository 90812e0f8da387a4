package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePriceEstimate(t *testing.T) {
	assert.Equal(t, int64(12500), ComputePriceEstimate(10000, 2000, 500))
	assert.Equal(t, int64(2000), ComputePriceEstimate(0, 2000, 0))
}

func TestMission_RunnerHelpers(t *testing.T) {
	m := &Mission{Status: StatusRequested}
	assert.False(t, m.HasRunner("r1"))
	assert.Equal(t, "", m.Runner())

	r := "r1"
	m.RunnerID = &r
	assert.True(t, m.HasRunner("r1"))
	assert.False(t, m.HasRunner("r2"))
	assert.Equal(t, "r1", m.Runner())
}

func TestStatusSets(t *testing.T) {
	for _, s := range TerminalStatuses {
		assert.True(t, IsTerminalStatus(s), s)
		assert.False(t, StatusIn(s, ActiveRunnerStatuses), s)
		assert.False(t, StatusIn(s, CancellableStatuses), s)
	}

	assert.False(t, StatusIn(StatusAwaitingStudentConfirmation, ActiveRunnerStatuses))
	assert.False(t, StatusIn(StatusPaymentSubmitted, CancellableStatuses))
	assert.True(t, IsValidStatus(StatusAwaitingPayment))
	assert.False(t, IsValidStatus("delivering"))
	assert.Len(t, AllStatuses, 12)
}

func TestApplicantOutcome(t *testing.T) {
	m := &Mission{Status: StatusPendingRunnerConfirmation}
	assert.Equal(t, OutcomePending, ApplicantOutcome(m, "r1"))

	r := "r1"
	m.RunnerID = &r
	m.Status = StatusRunnerSelected
	assert.Equal(t, OutcomeSelected, ApplicantOutcome(m, "r1"))
	assert.Equal(t, OutcomeNotSelected, ApplicantOutcome(m, "r2"))

	cancelled := &Mission{Status: StatusCancelled}
	assert.Equal(t, OutcomeNotSelected, ApplicantOutcome(cancelled, "r1"))
}
