package domain

import (
	"context"
	"io"
	"time"

	"campusrun/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MissionStore is the durable store behind the lifecycle services.
type MissionStore interface {
	CreateMission(ctx context.Context, mission *models.Mission) error
	GetMission(ctx context.Context, id string) (*models.Mission, error)
	ListMissions(ctx context.Context, filter models.MissionFilter) ([]*models.Mission, error)
	TransitionMission(ctx context.Context, t models.Transition) (*models.Mission, error)
	AddApplicant(ctx context.Context, missionID, runnerID string, at time.Time) (*models.Mission, error)
	AssignRunner(ctx context.Context, missionID, runnerID, actorID string, at time.Time) (*models.Mission, error)
	ListApplicants(ctx context.Context, missionID string) ([]*models.Applicant, error)
	GetMissionHistory(ctx context.Context, missionID string) ([]*models.TransitionRecord, error)
}

// ViewRepository keeps the consumer-side projection of missions.
type ViewRepository interface {
	ApplyView(ctx context.Context, view *models.MissionView) (bool, error)
	GetView(ctx context.Context, missionID string) (*models.MissionView, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StateRepository is the short-lived state kept outside the mission store.
type StateRepository interface {
	ViewRepository
	RateLimiter
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// ObjectStorage stores uploaded receipts and delivery proofs.
type ObjectStorage interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter mirrors missions into a spreadsheet, one row per mission.
type SheetsWriter interface {
	UpsertMission(ctx context.Context, mission *models.Mission) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, missionID string, mission *models.Mission, status string) error
}

// CreateMissionInput is what a student submits when posting an errand.
type CreateMissionInput struct {
	Type                 string `json:"type" validate:"required,max=64"`
	PickupAddress        string `json:"pickup_address" validate:"required,max=512"`
	DropoffAddress       string `json:"dropoff_address" validate:"required,max=512"`
	Details              string `json:"details" validate:"max=4000"`
	ItemCost             int64  `json:"item_cost" validate:"gte=0"`
	AdditionalCost       int64  `json:"additional_cost" validate:"gte=0"`
	AdditionalCostReason string `json:"additional_cost_reason" validate:"max=512"`
	PaymentMethod        string `json:"payment_method" validate:"omitempty,max=64"`
}

// MissionLifecycle is the single entry point used by the transports.
type MissionLifecycle interface {
	CreateMission(ctx context.Context, studentID string, in CreateMissionInput) (*models.Mission, error)
	ApplyToMission(ctx context.Context, runnerID, missionID string) (*models.Mission, error)
	ConfirmRunner(ctx context.Context, studentID, missionID, runnerID string) (*models.Mission, error)
	SubmitPaymentProof(ctx context.Context, studentID, missionID, proofURL, refNumber string) (*models.Mission, error)
	VerifyPayment(ctx context.Context, runnerID, missionID string, accepted bool, rejectionReason string) (*models.Mission, error)
	SubmitProofOfDelivery(ctx context.Context, runnerID, missionID, proofURL string) (*models.Mission, error)
	ConfirmDelivery(ctx context.Context, studentID, missionID string) (*models.Mission, error)
	DisputeMission(ctx context.Context, studentID, missionID, reason string) (*models.Mission, error)
	RateMission(ctx context.Context, raterID, missionID string, rating int, comment string) (*models.Mission, error)
	CancelMission(ctx context.Context, actorID, missionID, reason string) (*models.Mission, error)

	ListOpenMissions(ctx context.Context) ([]*models.Mission, error)
	ListApplicants(ctx context.Context, missionID string) ([]*models.Applicant, error)
	GetMission(ctx context.Context, missionID string) (*models.Mission, error)
	GetMissionHistory(ctx context.Context, missionID string) ([]*models.TransitionRecord, error)
	ListMissionsForRunner(ctx context.Context, runnerID string) ([]*models.Mission, error)
	ListMissionsForStudent(ctx context.Context, studentID string) ([]*models.Mission, error)
}
