package service

import (
	"context"
	"strings"

	"campusrun/internal/models"
)

// DeliveryService covers proof of delivery, confirmation, disputes, ratings and cancellation.
type DeliveryService struct {
	*lifecycle
}

func (s *DeliveryService) SubmitProofOfDelivery(ctx context.Context, runnerID, missionID, proofURL string) (*models.Mission, error) {
	const op = "submit_proof_of_delivery"

	if err := checkIDs(runnerID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	in := proofInput{ProofURL: strings.TrimSpace(proofURL)}
	if err := validateStruct(in); err != nil {
		return nil, s.fail(op, err)
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if !m.HasRunner(runnerID) {
		return nil, s.fail(op, newError(KindForbidden, "only the assigned runner can submit proof of delivery"))
	}
	if err := s.requireStatus(op, m, []string{models.StatusActiveMission}, "submit proof of delivery"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    []string{models.StatusActiveMission},
		To:      models.StatusProofSubmitted,
		ActorID: runnerID,
		Set:     map[string]interface{}{"proof_url": in.ProofURL},
	})
}

func (s *DeliveryService) ConfirmDelivery(ctx context.Context, studentID, missionID string) (*models.Mission, error) {
	const op = "confirm_delivery"

	if err := checkIDs(studentID, missionID); err != nil {
		return nil, s.fail(op, err)
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID != studentID {
		return nil, s.fail(op, newError(KindForbidden, "only the student who posted the mission can confirm delivery"))
	}
	if err := s.requireStatus(op, m, []string{models.StatusProofSubmitted}, "confirm delivery"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    []string{models.StatusProofSubmitted},
		To:      models.StatusAwaitingStudentConfirmation,
		ActorID: studentID,
	})
}

func (s *DeliveryService) DisputeMission(ctx context.Context, studentID, missionID, reason string) (*models.Mission, error) {
	const op = "dispute_mission"

	if err := checkIDs(studentID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	reason = strings.TrimSpace(reason)
	if err := validateStruct(reasonInput{Reason: reason}); err != nil {
		return nil, s.fail(op, newError(KindValidation, "a reason is required to dispute a mission"))
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID != studentID {
		return nil, s.fail(op, newError(KindForbidden, "only the student who posted the mission can dispute it"))
	}
	if err := s.requireStatus(op, m, models.DisputableStatuses, "dispute"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    models.DisputableStatuses,
		To:      models.StatusDisputed,
		ActorID: studentID,
		Set:     map[string]interface{}{"dispute_reason": reason},
	})
}

// RateMission records one side's rating. The first rating closes the mission,
// so each side can rate at most once.
func (s *DeliveryService) RateMission(ctx context.Context, raterID, missionID string, rating int, comment string) (*models.Mission, error) {
	const op = "rate_mission"

	if err := checkIDs(raterID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	in := ratingInput{Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := validateStruct(in); err != nil {
		return nil, s.fail(op, err)
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}

	var ratingCol, commentCol string
	var existing *int
	switch {
	case raterID == m.StudentID:
		ratingCol, commentCol, existing = "student_rating", "student_comment", m.StudentRating
	case m.HasRunner(raterID):
		ratingCol, commentCol, existing = "runner_rating", "runner_comment", m.RunnerRating
	default:
		return nil, s.fail(op, newError(KindForbidden, "only the mission's student or runner can rate it"))
	}

	if existing != nil {
		return nil, s.fail(op, newError(KindInvalidState, "you have already rated this mission"))
	}
	if err := s.requireStatus(op, m, []string{models.StatusAwaitingStudentConfirmation}, "rate"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    []string{models.StatusAwaitingStudentConfirmation},
		To:      models.StatusCompleted,
		ActorID: raterID,
		Set: map[string]interface{}{
			ratingCol:  in.Rating,
			commentCol: optional(in.Comment),
		},
		RequireNull: []string{ratingCol},
	})
}

// CancelMission is allowed to the posting student until payment is submitted.
func (s *DeliveryService) CancelMission(ctx context.Context, actorID, missionID, reason string) (*models.Mission, error) {
	const op = "cancel_mission"

	if err := checkIDs(actorID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	reason = strings.TrimSpace(reason)
	if err := validateStruct(reasonInput{Reason: reason}); err != nil {
		return nil, s.fail(op, newError(KindValidation, "a reason is required to cancel a mission"))
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID != actorID {
		return nil, s.fail(op, newError(KindForbidden, "only the student who posted the mission can cancel it"))
	}
	if err := s.requireStatus(op, m, models.CancellableStatuses, "cancel"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    models.CancellableStatuses,
		To:      models.StatusCancelled,
		ActorID: actorID,
		Set:     map[string]interface{}{"cancellation_reason": reason},
	})
}
