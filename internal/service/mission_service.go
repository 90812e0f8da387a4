package service

import (
	"context"
	"strings"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MissionService is the lifecycle facade. It owns no state beyond the injected
// store and sinks, so any number of instances can serve the same store.
type MissionService struct {
	*lifecycle
	Matching *MatchingService
	Payment  *PaymentService
	Delivery *DeliveryService

	pricing config.PricingConfig
	newID   func() string
}

var _ domain.MissionLifecycle = (*MissionService)(nil)

func NewMissionService(
	store domain.MissionStore,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	pricing config.PricingConfig,
	logger *zerolog.Logger,
) *MissionService {
	l := newLifecycle(store, eventBus, syncWorker, logger)
	return &MissionService{
		lifecycle: l,
		Matching:  &MatchingService{lifecycle: l},
		Payment:   &PaymentService{lifecycle: l},
		Delivery:  &DeliveryService{lifecycle: l},
		pricing:   pricing,
		newID:     uuid.NewString,
	}
}

// SetClock replaces the time source for every composed service.
func (s *MissionService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MissionService) CreateMission(ctx context.Context, studentID string, in domain.CreateMissionInput) (*models.Mission, error) {
	const op = "create_mission"

	if strings.TrimSpace(studentID) == "" {
		return nil, s.fail(op, newError(KindValidation, "student_id is required"))
	}
	in.Type = strings.TrimSpace(in.Type)
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.DropoffAddress = strings.TrimSpace(in.DropoffAddress)
	in.AdditionalCostReason = strings.TrimSpace(in.AdditionalCostReason)
	if err := validateStruct(in); err != nil {
		return nil, s.fail(op, err)
	}
	if in.AdditionalCost > 0 && in.AdditionalCostReason == "" {
		return nil, s.fail(op, newError(KindValidation, "additional_cost_reason is required when additional_cost is set"))
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = s.pricing.DefaultPaymentMethod
	}

	m := &models.Mission{
		ID:             s.newID(),
		StudentID:      studentID,
		Type:           in.Type,
		PickupAddress:  in.PickupAddress,
		DropoffAddress: in.DropoffAddress,
		Details:        strings.TrimSpace(in.Details),
		ItemCost:       in.ItemCost,
		ServiceFee:     s.pricing.ServiceFee,
		AdditionalCost: in.AdditionalCost,
		PriceEstimate:  models.ComputePriceEstimate(in.ItemCost, s.pricing.ServiceFee, in.AdditionalCost),
		Status:         models.StatusRequested,
		PaymentMethod:  method,
		CreatedAt:      s.now(),
	}
	if in.AdditionalCostReason != "" {
		reason := in.AdditionalCostReason
		m.AdditionalCostReason = &reason
	}

	if err := s.store.CreateMission(ctx, m); err != nil {
		return nil, s.fail(op, translate(err))
	}

	s.missionChanged(ctx, events.EventMissionCreated, m, "", studentID)
	s.logger.Info().Str("mission_id", m.ID).Str("student_id", studentID).Int64("price_estimate", m.PriceEstimate).Msg("Mission created")
	return m, nil
}

func (s *MissionService) ApplyToMission(ctx context.Context, runnerID, missionID string) (*models.Mission, error) {
	return s.Matching.ApplyToMission(ctx, runnerID, missionID)
}

func (s *MissionService) ConfirmRunner(ctx context.Context, studentID, missionID, runnerID string) (*models.Mission, error) {
	return s.Matching.ConfirmRunner(ctx, studentID, missionID, runnerID)
}

func (s *MissionService) SubmitPaymentProof(ctx context.Context, studentID, missionID, proofURL, refNumber string) (*models.Mission, error) {
	return s.Payment.SubmitPaymentProof(ctx, studentID, missionID, proofURL, refNumber)
}

func (s *MissionService) VerifyPayment(ctx context.Context, runnerID, missionID string, accepted bool, rejectionReason string) (*models.Mission, error) {
	return s.Payment.VerifyPayment(ctx, runnerID, missionID, accepted, rejectionReason)
}

func (s *MissionService) SubmitProofOfDelivery(ctx context.Context, runnerID, missionID, proofURL string) (*models.Mission, error) {
	return s.Delivery.SubmitProofOfDelivery(ctx, runnerID, missionID, proofURL)
}

func (s *MissionService) ConfirmDelivery(ctx context.Context, studentID, missionID string) (*models.Mission, error) {
	return s.Delivery.ConfirmDelivery(ctx, studentID, missionID)
}

func (s *MissionService) DisputeMission(ctx context.Context, studentID, missionID, reason string) (*models.Mission, error) {
	return s.Delivery.DisputeMission(ctx, studentID, missionID, reason)
}

func (s *MissionService) RateMission(ctx context.Context, raterID, missionID string, rating int, comment string) (*models.Mission, error) {
	return s.Delivery.RateMission(ctx, raterID, missionID, rating, comment)
}

func (s *MissionService) CancelMission(ctx context.Context, actorID, missionID, reason string) (*models.Mission, error) {
	return s.Delivery.CancelMission(ctx, actorID, missionID, reason)
}

func (s *MissionService) ListOpenMissions(ctx context.Context) ([]*models.Mission, error) {
	return s.list(ctx, "list_open_missions", models.MissionFilter{Statuses: models.OpenStatuses, Limit: models.DefaultListLimit})
}

func (s *MissionService) ListMissionsForRunner(ctx context.Context, runnerID string) ([]*models.Mission, error) {
	if runnerID == "" {
		return nil, s.fail("list_runner_missions", newError(KindValidation, "runner_id is required"))
	}
	return s.list(ctx, "list_runner_missions", models.MissionFilter{RunnerID: runnerID, Limit: models.DefaultListLimit})
}

func (s *MissionService) ListMissionsForStudent(ctx context.Context, studentID string) ([]*models.Mission, error) {
	if studentID == "" {
		return nil, s.fail("list_student_missions", newError(KindValidation, "student_id is required"))
	}
	return s.list(ctx, "list_student_missions", models.MissionFilter{StudentID: studentID, Limit: models.DefaultListLimit})
}

func (s *MissionService) list(ctx context.Context, op string, filter models.MissionFilter) ([]*models.Mission, error) {
	missions, err := s.store.ListMissions(ctx, filter)
	if err != nil {
		return nil, s.fail(op, translate(err))
	}
	if missions == nil {
		missions = []*models.Mission{}
	}
	return missions, nil
}

func (s *MissionService) GetMission(ctx context.Context, missionID string) (*models.Mission, error) {
	return s.load(ctx, "get_mission", missionID)
}

// ListApplicants returns applicants in application order with their derived outcome.
func (s *MissionService) ListApplicants(ctx context.Context, missionID string) ([]*models.Applicant, error) {
	const op = "list_applicants"

	m, err := s.load(ctx, op, missionID)
	if err != nil {
		return nil, err
	}

	applicants, err := s.store.ListApplicants(ctx, missionID)
	if err != nil {
		return nil, s.fail(op, translate(err))
	}
	for _, a := range applicants {
		a.Outcome = models.ApplicantOutcome(m, a.RunnerID)
	}
	if applicants == nil {
		applicants = []*models.Applicant{}
	}
	return applicants, nil
}

func (s *MissionService) GetMissionHistory(ctx context.Context, missionID string) ([]*models.TransitionRecord, error) {
	const op = "get_mission_history"

	if _, err := s.load(ctx, op, missionID); err != nil {
		return nil, err
	}
	history, err := s.store.GetMissionHistory(ctx, missionID)
	if err != nil {
		return nil, s.fail(op, translate(err))
	}
	if history == nil {
		history = []*models.TransitionRecord{}
	}
	return history, nil
}
