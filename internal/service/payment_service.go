package service

import (
	"context"
	"strings"

	"campusrun/internal/models"
)

// PaymentService runs the receipt submission and verification loop.
type PaymentService struct {
	*lifecycle
}

func (s *PaymentService) SubmitPaymentProof(ctx context.Context, studentID, missionID, proofURL, refNumber string) (*models.Mission, error) {
	const op = "submit_payment_proof"

	if err := checkIDs(studentID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	in := paymentProofInput{ProofURL: strings.TrimSpace(proofURL), RefNumber: strings.TrimSpace(refNumber)}
	if err := validateStruct(in); err != nil {
		return nil, s.fail(op, err)
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if m.StudentID != studentID {
		return nil, s.fail(op, newError(KindForbidden, "only the student who posted the mission can submit payment"))
	}
	if err := s.requireStatus(op, m, models.AwaitingPaymentStatuses, "submit payment"); err != nil {
		return nil, err
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    models.AwaitingPaymentStatuses,
		To:      models.StatusPaymentSubmitted,
		ActorID: studentID,
		Set: map[string]interface{}{
			"payment_proof_url": in.ProofURL,
			"payment_ref":       in.RefNumber,
		},
	})
}

// VerifyPayment lets the bound runner accept the receipt, which starts the
// mission, or reject it with a reason, which returns it to awaiting_payment.
func (s *PaymentService) VerifyPayment(ctx context.Context, runnerID, missionID string, accepted bool, rejectionReason string) (*models.Mission, error) {
	const op = "verify_payment"

	if err := checkIDs(runnerID, missionID); err != nil {
		return nil, s.fail(op, err)
	}
	reason := strings.TrimSpace(rejectionReason)
	if !accepted {
		if err := validateStruct(reasonInput{Reason: reason}); err != nil {
			return nil, s.fail(op, newError(KindValidation, "a reason is required to reject a payment"))
		}
	}

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}
	if !m.HasRunner(runnerID) {
		return nil, s.fail(op, newError(KindForbidden, "only the assigned runner can verify payment"))
	}
	if err := s.requireStatus(op, m, []string{models.StatusPaymentSubmitted}, "verify payment"); err != nil {
		return nil, err
	}

	if accepted {
		return s.transition(ctx, op, m, models.Transition{
			From:    []string{models.StatusPaymentSubmitted},
			Through: models.StatusPaymentVerified,
			To:      models.StatusActiveMission,
			ActorID: runnerID,
			Set:     map[string]interface{}{"payment_rejection_reason": nil},
		})
	}

	return s.transition(ctx, op, m, models.Transition{
		From:    []string{models.StatusPaymentSubmitted},
		To:      models.StatusAwaitingPayment,
		ActorID: runnerID,
		Set: map[string]interface{}{
			"payment_proof_url":        nil,
			"payment_ref":              nil,
			"payment_rejection_reason": reason,
		},
	})
}
