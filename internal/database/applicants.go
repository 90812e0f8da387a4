package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campusrun/internal/models"
)

// AddApplicant records runnerID's application. The first application moves a
// requested mission to pending_runner_confirmation in the same transaction.
func (db *DB) AddApplicant(ctx context.Context, missionID, runnerID string, at time.Time) (*models.Mission, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var mission *models.Mission
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := db.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if !models.StatusIn(current.Status, models.OpenStatuses) {
			return statusConflict(missionID, current.Status)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO applicants (mission_id, runner_id, applied_at) VALUES (?, ?, ?)`,
			missionID, runnerID, at,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateApplication
		}
		if err != nil {
			return fmt.Errorf("failed to insert applicant in tx: %w", err)
		}

		if current.Status == models.StatusRequested {
			err = db.transitionTx(ctx, tx, models.Transition{
				MissionID: missionID,
				From:      []string{models.StatusRequested},
				To:        models.StatusPendingRunnerConfirmation,
				ActorID:   runnerID,
				At:        at,
			})
			if err != nil {
				return err
			}
		}

		mission, err = db.getMission(ctx, tx, missionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mission, nil
}

func (db *DB) ListApplicants(ctx context.Context, missionID string) ([]*models.Applicant, error) {
	query := `SELECT mission_id, runner_id, applied_at FROM applicants
              WHERE mission_id = ? ORDER BY applied_at ASC, runner_id ASC`
	rows, err := db.QueryContext(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applicants: %w", err)
	}
	defer rows.Close()

	var applicants []*models.Applicant
	for rows.Next() {
		a := &models.Applicant{}
		if err := rows.Scan(&a.MissionID, &a.RunnerID, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan applicant: %w", err)
		}
		applicants = append(applicants, a)
	}
	return applicants, rows.Err()
}
