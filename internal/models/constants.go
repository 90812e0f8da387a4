package models

const (
	StatusRequested                   = "requested"
	StatusPendingRunnerConfirmation   = "pending_runner_confirmation"
	StatusRunnerSelected              = "runner_selected"
	StatusAwaitingPayment             = "awaiting_payment"
	StatusPaymentSubmitted            = "payment_submitted"
	StatusPaymentVerified             = "payment_verified"
	StatusActiveMission               = "active_mission"
	StatusProofSubmitted              = "proof_submitted"
	StatusAwaitingStudentConfirmation = "awaiting_student_confirmation"
	StatusCompleted                   = "completed"
	StatusCancelled                   = "cancelled"
	StatusDisputed                    = "disputed"
)

const (
	OutcomePending     = "pending"
	OutcomeSelected    = "selected"
	OutcomeNotSelected = "not_selected"
)

const (
	RoleStudent = "student"
	RoleRunner  = "runner"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Status groups used by transitions and queries.
var (
	OpenStatuses = []string{
		StatusRequested,
		StatusPendingRunnerConfirmation,
	}

	// ActiveRunnerStatuses is the set in which a runner counts as busy.
	ActiveRunnerStatuses = []string{
		StatusRunnerSelected,
		StatusAwaitingPayment,
		StatusPaymentSubmitted,
		StatusPaymentVerified,
		StatusActiveMission,
		StatusProofSubmitted,
	}

	AwaitingPaymentStatuses = []string{
		StatusRunnerSelected,
		StatusAwaitingPayment,
	}

	CancellableStatuses = []string{
		StatusRequested,
		StatusPendingRunnerConfirmation,
		StatusRunnerSelected,
		StatusAwaitingPayment,
	}

	DisputableStatuses = []string{
		StatusProofSubmitted,
		StatusAwaitingStudentConfirmation,
	}

	TerminalStatuses = []string{
		StatusCompleted,
		StatusCancelled,
		StatusDisputed,
	}

	AllStatuses = []string{
		StatusRequested,
		StatusPendingRunnerConfirmation,
		StatusRunnerSelected,
		StatusAwaitingPayment,
		StatusPaymentSubmitted,
		StatusPaymentVerified,
		StatusActiveMission,
		StatusProofSubmitted,
		StatusAwaitingStudentConfirmation,
		StatusCompleted,
		StatusCancelled,
		StatusDisputed,
	}
)

func IsTerminalStatus(status string) bool {
	return StatusIn(status, TerminalStatuses)
}

func IsValidStatus(status string) bool {
	return StatusIn(status, AllStatuses)
}

func StatusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

const (
	// WorkerQueueSize is the buffer of the in-memory sync queue.
	WorkerQueueSize = 1000

	// DefaultListLimit caps list queries without an explicit limit.
	DefaultListLimit = 100
)
