package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound             = errors.New("mission not found")
	ErrStatusConflict       = errors.New("mission status does not allow this change")
	ErrRunnerBusy           = errors.New("runner already has an active mission")
	ErrDuplicateApplication = errors.New("runner already applied to this mission")
	ErrNotApplicant         = errors.New("runner did not apply to this mission")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
