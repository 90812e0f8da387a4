package service

import (
	"context"

	"campusrun/internal/events"
	"campusrun/internal/models"
)

// MatchingService handles applications and runner confirmation.
type MatchingService struct {
	*lifecycle
}

func (s *MatchingService) ApplyToMission(ctx context.Context, runnerID, missionID string) (*models.Mission, error) {
	const op = "apply_to_mission"

	if err := checkIDs(runnerID, missionID); err != nil {
		return nil, s.fail(op, err)
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID == runnerID {
		return nil, s.fail(op, newError(KindForbidden, "you cannot apply to your own mission"))
	}
	if err := s.requireStatus(op, m, models.OpenStatuses, "apply"); err != nil {
		return nil, err
	}

	updated, err := s.store.AddApplicant(ctx, missionID, runnerID, s.now())
	if err != nil {
		return nil, s.fail(op, translate(err))
	}

	s.publishEvent(events.EventApplicantAdded, updated, m.Status, runnerID, runnerID)
	if updated.Version != m.Version {
		s.missionChanged(ctx, events.EventMissionChanged, updated, m.Status, runnerID)
	}

	s.logger.Info().Str("mission_id", missionID).Str("runner_id", runnerID).Msg("Runner applied")
	return updated, nil
}

// ConfirmRunner binds an applicant to the mission. The store enforces that the
// runner holds no other active mission at commit time.
func (s *MatchingService) ConfirmRunner(ctx context.Context, studentID, missionID, runnerID string) (*models.Mission, error) {
	const op = "confirm_runner"

	if err := checkIDs(studentID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	if runnerID == "" {
		return nil, s.fail(op, newError(KindValidation, "runner_id is required"))
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID != studentID {
		return nil, s.fail(op, newError(KindForbidden, "only the student who posted the mission can confirm a runner"))
	}
	if err := s.requireStatus(op, m, models.OpenStatuses, "confirm a runner"); err != nil {
		return nil, err
	}

	updated, err := s.store.AssignRunner(ctx, missionID, runnerID, studentID, s.now())
	if err != nil {
		return nil, s.fail(op, translate(err))
	}

	s.missionChanged(ctx, events.EventMissionChanged, updated, m.Status, studentID)
	s.logger.Info().Str("mission_id", missionID).Str("runner_id", runnerID).Msg("Runner confirmed")
	return updated, nil
}
