package database

import (
	"context"
	"fmt"
	"time"

	"campusrun/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var syncTaskColumns = []string{
	"id", "task_type", "mission_id", "payload", "status", "retry_count",
	"last_error", "created_at", "processed_at", "next_retry_at",
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}

	result, err := db.builder.Insert("sync_queue").
		Columns("task_type", "mission_id", "payload", "status", "retry_count", "last_error", "created_at", "next_retry_at").
		Values(task.TaskType, task.MissionID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt).
		RunWith(db.DB).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	qb := db.builder.Select(syncTaskColumns...).From("sync_queue").
		Where(sq.Eq{"status": []string{models.SyncStatusPending, models.SyncStatusRetry}}).
		Where(sq.Or{sq.Eq{"next_retry_at": nil}, sq.LtOrEq{"next_retry_at": time.Now().UTC()}}).
		OrderBy("created_at ASC").
		Limit(uint64(limit))
	return db.querySyncTasks(ctx, qb)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	qb := db.builder.Select(syncTaskColumns...).From("sync_queue").
		Where(sq.Eq{"status": models.SyncStatusFailed}).
		OrderBy("created_at DESC")
	return db.querySyncTasks(ctx, qb)
}

func (db *DB) querySyncTasks(ctx context.Context, qb sq.SelectBuilder) ([]models.SyncTask, error) {
	rows, err := qb.RunWith(db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.MissionID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	upd := db.builder.Update("sync_queue").
		Set("status", status).
		Set("last_error", errMsg).
		Set("next_retry_at", nextRetryAt).
		Where(sq.Eq{"id": id})

	switch status {
	case models.SyncStatusRetry:
		upd = upd.Set("retry_count", sq.Expr("retry_count + 1"))
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		upd = upd.Set("processed_at", time.Now().UTC())
	}

	if _, err := upd.RunWith(db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}
