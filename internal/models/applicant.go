package models

import "time"

type Applicant struct {
	MissionID string    `json:"mission_id"`
	RunnerID  string    `json:"runner_id"`
	AppliedAt time.Time `json:"applied_at"`
	// Outcome is derived from the mission, never stored.
	Outcome string `json:"outcome,omitempty"`
}

// ApplicantOutcome derives the applicant's standing from the mission's runner.
func ApplicantOutcome(m *Mission, runnerID string) string {
	if m.RunnerID == nil {
		if m.Status == StatusCancelled {
			return OutcomeNotSelected
		}
		return OutcomePending
	}
	if *m.RunnerID == runnerID {
		return OutcomeSelected
	}
	return OutcomeNotSelected
}
