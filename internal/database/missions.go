package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"campusrun/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var missionColumns = []string{
	"id", "student_id", "runner_id", "type", "pickup_address", "dropoff_address", "details",
	"item_cost", "service_fee", "additional_cost", "additional_cost_reason", "price_estimate",
	"status", "payment_method", "payment_proof_url", "payment_ref", "payment_rejection_reason",
	"proof_url", "student_rating", "student_comment", "runner_rating", "runner_comment",
	"cancellation_reason", "dispute_reason", "version", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanMission(row rowScanner) (*models.Mission, error) {
	var m models.Mission
	err := row.Scan(
		&m.ID, &m.StudentID, &m.RunnerID, &m.Type, &m.PickupAddress, &m.DropoffAddress, &m.Details,
		&m.ItemCost, &m.ServiceFee, &m.AdditionalCost, &m.AdditionalCostReason, &m.PriceEstimate,
		&m.Status, &m.PaymentMethod, &m.PaymentProofURL, &m.PaymentRef, &m.PaymentRejectionReason,
		&m.ProofURL, &m.StudentRating, &m.StudentComment, &m.RunnerRating, &m.RunnerComment,
		&m.CancellationReason, &m.DisputeReason, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) CreateMission(ctx context.Context, mission *models.Mission) error {
	if mission.CreatedAt.IsZero() {
		mission.CreatedAt = time.Now().UTC()
	}
	mission.UpdatedAt = mission.CreatedAt
	mission.Version = 1

	query, args, err := db.builder.Insert("missions").
		Columns(
			"id", "student_id", "type", "pickup_address", "dropoff_address", "details",
			"item_cost", "service_fee", "additional_cost", "additional_cost_reason", "price_estimate",
			"status", "payment_method", "version", "created_at", "updated_at",
		).
		Values(
			mission.ID, mission.StudentID, mission.Type, mission.PickupAddress, mission.DropoffAddress, mission.Details,
			mission.ItemCost, mission.ServiceFee, mission.AdditionalCost, mission.AdditionalCostReason, mission.PriceEstimate,
			mission.Status, mission.PaymentMethod, mission.Version, mission.CreatedAt, mission.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

func (db *DB) GetMission(ctx context.Context, id string) (*models.Mission, error) {
	return db.getMission(ctx, db.DB, id)
}

func (db *DB) getMission(ctx context.Context, q queryRower, id string) (*models.Mission, error) {
	query, args, err := db.builder.Select(missionColumns...).From("missions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	m, err := scanMission(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return m, nil
}

func (db *DB) ListMissions(ctx context.Context, filter models.MissionFilter) ([]*models.Mission, error) {
	qb := db.builder.Select(missionColumns...).From("missions").OrderBy("created_at DESC", "id ASC")

	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.StudentID != "" {
		qb = qb.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.RunnerID != "" {
		qb = qb.Where(sq.Eq{"runner_id": filter.RunnerID})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		qb = qb.Offset(filter.Offset)
	}

	rows, err := qb.RunWith(db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// TransitionMission applies a conditional status change in its own transaction.
func (db *DB) TransitionMission(ctx context.Context, t models.Transition) (*models.Mission, error) {
	var mission *models.Mission
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.transitionTx(ctx, tx, t); err != nil {
			return err
		}
		m, err := db.getMission(ctx, tx, t.MissionID)
		if err != nil {
			return err
		}
		mission = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mission, nil
}

// AssignRunner binds runnerID to an open mission. The applicant check, the
// active mission count and the write share one transaction.
func (db *DB) AssignRunner(ctx context.Context, missionID, runnerID, actorID string, at time.Time) (*models.Mission, error) {
	var mission *models.Mission
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := db.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if !models.StatusIn(current.Status, models.OpenStatuses) {
			return statusConflict(missionID, current.Status)
		}

		var applied int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM applicants WHERE mission_id = ? AND runner_id = ?`,
			missionID, runnerID,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check applicant in tx: %w", err)
		}
		if applied == 0 {
			return ErrNotApplicant
		}

		active, err := db.countActiveMissions(ctx, tx, runnerID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrRunnerBusy
		}

		err = db.transitionTx(ctx, tx, models.Transition{
			MissionID: missionID,
			From:      models.OpenStatuses,
			To:        models.StatusRunnerSelected,
			ActorID:   actorID,
			At:        at,
			Set:       map[string]interface{}{"runner_id": runnerID},
		})
		if isUniqueViolation(err) {
			return ErrRunnerBusy
		}
		if err != nil {
			return err
		}

		mission, err = db.getMission(ctx, tx, missionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mission, nil
}

// CountActiveMissions returns how many missions the runner holds in the active set.
func (db *DB) CountActiveMissions(ctx context.Context, runnerID string) (int, error) {
	return db.countActiveMissions(ctx, db.DB, runnerID)
}

func (db *DB) countActiveMissions(ctx context.Context, q queryRower, runnerID string) (int, error) {
	query, args, err := db.builder.Select("COUNT(*)").From("missions").
		Where(sq.Eq{"runner_id": runnerID, "status": models.ActiveRunnerStatuses}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active missions: %w", err)
	}
	return count, nil
}

// transitionTx is the single compare-status-and-swap write used by every
// lifecycle change. Zero affected rows means the expected status no longer holds.
func (db *DB) transitionTx(ctx context.Context, tx *sql.Tx, t models.Transition) error {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}

	var current string
	var version int64
	err := tx.QueryRowContext(ctx, `SELECT status, version FROM missions WHERE id = ?`, t.MissionID).Scan(&current, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read mission status in tx: %w", err)
	}
	if !models.StatusIn(current, t.From) {
		return statusConflict(t.MissionID, current)
	}

	upd := db.builder.Update("missions").
		Set("status", t.To).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", t.At)

	columns := make([]string, 0, len(t.Set))
	for col := range t.Set {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	for _, col := range columns {
		upd = upd.Set(col, t.Set[col])
	}

	where := sq.And{sq.Eq{"id": t.MissionID, "status": t.From}}
	for _, col := range t.RequireNull {
		where = append(where, sq.Eq{col: nil})
	}

	res, err := upd.Where(where).RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update mission status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return statusConflict(t.MissionID, current)
	}

	steps := [][2]string{{current, t.To}}
	if t.Through != "" {
		steps = [][2]string{{current, t.Through}, {t.Through, t.To}}
	}
	for _, step := range steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO mission_transitions (mission_id, from_status, to_status, actor_id, version, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.MissionID, step[0], step[1], t.ActorID, version+1, t.At,
		)
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
	}

	db.logger.Debug().
		Str("mission_id", t.MissionID).
		Str("from", current).
		Str("to", t.To).
		Int64("version", version+1).
		Msg("Mission transitioned")
	return nil
}

func (db *DB) GetMissionHistory(ctx context.Context, missionID string) ([]*models.TransitionRecord, error) {
	query := `SELECT id, mission_id, from_status, to_status, actor_id, version, created_at
              FROM mission_transitions WHERE mission_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission history: %w", err)
	}
	defer rows.Close()

	var history []*models.TransitionRecord
	for rows.Next() {
		r := &models.TransitionRecord{}
		if err := rows.Scan(&r.ID, &r.MissionID, &r.FromStatus, &r.ToStatus, &r.ActorID, &r.Version, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

func statusConflict(missionID, current string) error {
	return fmt.Errorf("%w: mission %s is %s", ErrStatusConflict, missionID, current)
}
