package service

import (
	"context"
	"fmt"
	"time"

	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/metrics"
	"campusrun/internal/models"

	"github.com/rs/zerolog"
)

// lifecycle holds what every mission service shares: the injected store,
// change notification sinks and the clock.
type lifecycle struct {
	store      domain.MissionStore
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	logger     *zerolog.Logger
	now        func() time.Time
}

func newLifecycle(store domain.MissionStore, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, logger *zerolog.Logger) *lifecycle {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &lifecycle{
		store:      store,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (l *lifecycle) load(ctx context.Context, op, missionID string) (*models.Mission, error) {
	m, err := l.store.GetMission(ctx, missionID)
	if err != nil {
		return nil, l.fail(op, translate(err))
	}
	return m, nil
}

// transition applies t to m through the store's conditional write and
// notifies consumers on success.
func (l *lifecycle) transition(ctx context.Context, op string, m *models.Mission, t models.Transition) (*models.Mission, error) {
	t.MissionID = m.ID
	t.At = l.now()

	updated, err := l.store.TransitionMission(ctx, t)
	if err != nil {
		return nil, l.fail(op, translate(err))
	}

	l.missionChanged(ctx, events.EventMissionChanged, updated, m.Status, t.ActorID)
	return updated, nil
}

func (l *lifecycle) requireStatus(op string, m *models.Mission, allowed []string, action string) error {
	if models.StatusIn(m.Status, allowed) {
		return nil
	}
	return l.fail(op, newError(KindInvalidState, "cannot %s while mission is %s", action, m.Status))
}

// fail counts a refused operation. Internal errors are wrapped with the operation name.
func (l *lifecycle) fail(op string, err error) error {
	kind := KindOf(err)
	if kind == "" {
		l.logger.Error().Err(err).Str("operation", op).Msg("Mission operation failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.IncRejection(op, string(kind))
	l.logger.Debug().Str("operation", op).Str("kind", string(kind)).Msg(err.Error())
	return err
}

func (l *lifecycle) missionChanged(ctx context.Context, eventType string, m *models.Mission, previous, actorID string) {
	metrics.IncTransition(m.Status)
	l.publishEvent(eventType, m, previous, actorID, "")
	l.enqueueSync(ctx, m)
}

func (l *lifecycle) publishEvent(eventType string, m *models.Mission, previous, actorID, applicantID string) {
	if l.eventBus == nil {
		return
	}

	payload := events.MissionEventPayload{
		MissionID:      m.ID,
		Status:         m.Status,
		PreviousStatus: previous,
		Version:        m.Version,
		StudentID:      m.StudentID,
		RunnerID:       m.Runner(),
		ActorID:        actorID,
		ApplicantID:    applicantID,
		OccurredAt:     m.UpdatedAt,
	}

	if err := l.eventBus.PublishJSON(eventType, payload); err != nil {
		l.logger.Error().Err(err).Str("event_type", eventType).Str("mission_id", m.ID).Msg("publish event error")
	}
}

func (l *lifecycle) enqueueSync(ctx context.Context, m *models.Mission) {
	if l.syncWorker == nil {
		return
	}

	if err := l.syncWorker.EnqueueTask(ctx, models.SyncTaskUpsert, m.ID, m, m.Status); err != nil {
		l.logger.Error().Err(err).Str("mission_id", m.ID).Msg("sheets enqueue error")
	}
}
