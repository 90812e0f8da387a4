package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campusrun/internal/database"
	"campusrun/internal/domain"
	"campusrun/internal/metrics"
	"campusrun/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey      = "campusrun:sheets:queue"
	redisDeadLetterKey = "campusrun:sheets:dead"

	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 20
	redisPopTimeout     = time.Second
)

// sheetTaskPayload is stored in SyncTask.Payload.
type sheetTaskPayload struct {
	MissionID string          `json:"mission_id"`
	Mission   *models.Mission `json:"mission,omitempty"`
	Status    string          `json:"status,omitempty"`
}

func decodeTaskPayload(raw string) (sheetTaskPayload, error) {
	var p sheetTaskPayload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

// SheetsWorker mirrors missions into the spreadsheet. Every task is written to
// sync_queue first; the Redis list (or the local channel without Redis) only
// carries a hint so the row is picked up without waiting for the next poll.
type SheetsWorker struct {
	db     *database.DB
	sheets domain.SheetsWriter
	redis  *redis.Client
	retry  RetryPolicy
	local  chan models.SyncTask

	pollInterval time.Duration
	batchSize    int
	log          zerolog.Logger
}

var _ domain.SyncWorker = (*SheetsWorker)(nil)

func NewSheetsWorker(db *database.DB, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "sheets_worker").Logger()
	}

	return &SheetsWorker{
		db:           db,
		sheets:       sheets,
		redis:        redisClient,
		retry:        retry.withDefaults(),
		local:        make(chan models.SyncTask, models.WorkerQueueSize),
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		log:          log,
	}
}

// EnqueueTask records a sync task for the mission and wakes the worker.
// mission may be nil when only the id is known.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType, missionID string, mission *models.Mission, status string) error {
	if missionID == "" && mission != nil {
		missionID = mission.ID
	}
	switch {
	case taskType == "":
		return errors.New("sync task type is required")
	case missionID == "":
		return errors.New("sync task mission id is required")
	}

	raw, err := json.Marshal(sheetTaskPayload{MissionID: missionID, Mission: mission, Status: status})
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		MissionID: missionID,
		Payload:   string(raw),
		Status:    models.SyncStatusPending,
	}
	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("store sync task: %w", err)
	}

	w.wake(ctx, task)
	return nil
}

func (w *SheetsWorker) wake(ctx context.Context, task models.SyncTask) {
	if w.redis != nil {
		err := w.pushJSON(ctx, redisQueueKey, task)
		if err == nil {
			return
		}
		w.log.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, using local queue")
	}

	select {
	case w.local <- task:
	default:
		w.log.Warn().Int64("task_id", task.ID).Msg("Local queue full, task waits for polling")
	}
}

// Start processes tasks until ctx is cancelled.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("Sheets worker started")
	defer w.log.Info().Msg("Sheets worker stopped")

	for ctx.Err() == nil {
		if task, ok := w.next(ctx); ok {
			w.processTask(ctx, &task)
			continue
		}
		if w.drainPending(ctx) == 0 {
			w.sleep(ctx)
		}
	}
}

func (w *SheetsWorker) next(ctx context.Context) (models.SyncTask, bool) {
	if task, ok := w.tryLocalQueue(); ok {
		return task, true
	}
	return w.tryRedis(ctx)
}

func (w *SheetsWorker) drainPending(ctx context.Context) int {
	tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Failed to load pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SheetsWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case task := <-w.local:
		return task, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}

	res, err := w.redis.BRPop(ctx, redisPopTimeout, redisQueueKey).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), ctx.Err() != nil:
		return models.SyncTask{}, false
	default:
		w.log.Error().Err(err).Msg("Redis BRPOP failed")
		return models.SyncTask{}, false
	}

	var task models.SyncTask
	if len(res) < 2 {
		return task, false
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.log.Error().Err(err).Msg("Dropping undecodable task from Redis")
		return task, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := decodeTaskPayload(task.Payload)
	if err != nil {
		w.fail(ctx, task, fmt.Errorf("decode sync payload: %w", err))
		return
	}

	if err := w.handleSheetTask(ctx, task.TaskType, payload); err != nil {
		w.reschedule(ctx, task, err)
		return
	}

	metrics.IncSyncTask(models.SyncStatusCompleted)
	w.setStatus(ctx, task, models.SyncStatusCompleted, "", nil)
}

// handleSheetTask writes the stored mission rather than the queued snapshot so
// a late or retried task cannot roll the row back.
func (w *SheetsWorker) handleSheetTask(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	if taskType != models.SyncTaskUpsert {
		return fmt.Errorf("unsupported sync task type %q", taskType)
	}
	if payload.MissionID == "" {
		return errors.New("sync payload has no mission id")
	}

	mission := payload.Mission
	if w.db != nil {
		stored, err := w.db.GetMission(ctx, payload.MissionID)
		if err == nil {
			mission = stored
		} else if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("load mission %s: %w", payload.MissionID, err)
		}
	}
	if mission == nil {
		return fmt.Errorf("mission %s not found and no snapshot queued", payload.MissionID)
	}
	return w.sheets.UpsertMission(ctx, mission)
}

func (w *SheetsWorker) reschedule(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retry.Exhausted(attempt) {
		w.fail(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(models.SyncStatusRetry)
	at := time.Now().UTC().Add(w.retry.NextDelay(attempt))
	w.log.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", at).Msg("Sync task will be retried")
	w.setStatus(ctx, task, models.SyncStatusRetry, cause.Error(), &at)
}

func (w *SheetsWorker) fail(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(models.SyncStatusFailed)
	w.log.Error().Err(cause).Int64("task_id", task.ID).Str("mission_id", task.MissionID).Msg("Sync task failed")
	w.setStatus(ctx, task, models.SyncStatusFailed, cause.Error(), nil)

	if w.redis == nil {
		return
	}
	if err := w.pushJSON(ctx, redisDeadLetterKey, task); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push dead letter")
	}
}

func (w *SheetsWorker) setStatus(ctx context.Context, task *models.SyncTask, status, msg string, next *time.Time) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, status, msg, next); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Str("status", status).Msg("Failed to update sync task")
	}
}

func (w *SheetsWorker) pushJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
