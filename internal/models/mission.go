package models

import "time"

// Mission is a single errand posted by a student. Amounts are minor currency units.
type Mission struct {
	ID             string  `json:"id"`
	StudentID      string  `json:"student_id"`
	RunnerID       *string `json:"runner_id,omitempty"`
	Type           string  `json:"type"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	Details        string  `json:"details"`

	ItemCost             int64   `json:"item_cost"`
	ServiceFee           int64   `json:"service_fee"`
	AdditionalCost       int64   `json:"additional_cost"`
	AdditionalCostReason *string `json:"additional_cost_reason,omitempty"`
	PriceEstimate        int64   `json:"price_estimate"`

	Status string `json:"status"`

	PaymentMethod          string  `json:"payment_method"`
	PaymentProofURL        *string `json:"payment_proof_url,omitempty"`
	PaymentRef             *string `json:"payment_ref,omitempty"`
	PaymentRejectionReason *string `json:"payment_rejection_reason,omitempty"`

	ProofURL *string `json:"proof_url,omitempty"`

	// StudentRating and StudentComment are given by the student about the runner,
	// RunnerRating and RunnerComment by the runner about the student.
	StudentRating  *int    `json:"student_rating,omitempty"`
	StudentComment *string `json:"student_comment,omitempty"`
	RunnerRating   *int    `json:"runner_rating,omitempty"`
	RunnerComment  *string `json:"runner_comment,omitempty"`

	CancellationReason *string `json:"cancellation_reason,omitempty"`
	DisputeReason      *string `json:"dispute_reason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputePriceEstimate returns the immutable estimate shown to both parties.
func ComputePriceEstimate(itemCost, serviceFee, additionalCost int64) int64 {
	return itemCost + serviceFee + additionalCost
}

// HasRunner reports whether the mission is bound to the given runner.
func (m *Mission) HasRunner(runnerID string) bool {
	return m.RunnerID != nil && *m.RunnerID == runnerID
}

// Runner returns the bound runner id or an empty string.
func (m *Mission) Runner() string {
	if m.RunnerID == nil {
		return ""
	}
	return *m.RunnerID
}

func (m *Mission) IsTerminal() bool {
	return IsTerminalStatus(m.Status)
}

// MissionFilter narrows list queries. Empty fields are ignored.
type MissionFilter struct {
	Statuses  []string
	StudentID string
	RunnerID  string
	Limit     uint64
	Offset    uint64
}

// Transition describes one conditional status change. The store applies it only
// while the mission is still in one of From.
type Transition struct {
	MissionID string
	From      []string
	To        string
	// Through records an intermediate status in the history without persisting it.
	Through string
	ActorID string
	At      time.Time
	// Set lists additional column updates; a nil value writes NULL.
	Set map[string]interface{}
	// RequireNull lists columns that must still be NULL for the update to apply.
	RequireNull []string
}

// TransitionRecord is one row of a mission's status history.
type TransitionRecord struct {
	ID         int64     `json:"id"`
	MissionID  string    `json:"mission_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
