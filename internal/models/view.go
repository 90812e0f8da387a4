package models

import "time"

// MissionView is the consumer-side projection of a mission built from change events.
type MissionView struct {
	MissionID string    `json:"mission_id"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	StudentID string    `json:"student_id"`
	RunnerID  string    `json:"runner_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
