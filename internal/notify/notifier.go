package notify

import (
	"context"
	"fmt"

	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier turns mission events into Telegram messages for the student and
// runner involved. Mission changes pass through the view repository first, so
// redelivered or out-of-order events are dropped instead of sent twice.
type Notifier struct {
	views  domain.ViewRepository
	sender domain.TelegramSender
	chats  map[string]int64
	logger *zerolog.Logger
}

func NewNotifier(views domain.ViewRepository, sender domain.TelegramSender, chats map[string]int64, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Notifier{views: views, sender: sender, chats: chats, logger: logger}
}

// NewTelegramSender connects to the Bot API.
func NewTelegramSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Handle is an events.EventHandler.
func (n *Notifier) Handle(event *events.Event) error {
	return n.HandleContext(context.Background(), event)
}

func (n *Notifier) HandleContext(ctx context.Context, event *events.Event) error {
	payload, err := events.DecodeMission(event)
	if err != nil {
		return err
	}

	switch event.Type {
	case events.EventApplicantAdded:
		n.send(payload.StudentID, applicantMessage(payload))
		return nil
	case events.EventMissionCreated, events.EventMissionChanged:
	default:
		n.logger.Debug().Str("event_type", event.Type).Msg("Ignoring event")
		return nil
	}

	applied, err := n.views.ApplyView(ctx, &models.MissionView{
		MissionID: payload.MissionID,
		Status:    payload.Status,
		Version:   payload.Version,
		StudentID: payload.StudentID,
		RunnerID:  payload.RunnerID,
		UpdatedAt: payload.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("apply view for mission %s: %w", payload.MissionID, err)
	}
	if !applied {
		n.logger.Debug().
			Str("mission_id", payload.MissionID).
			Int64("version", payload.Version).
			Msg("Stale mission event skipped")
		return nil
	}

	for _, r := range recipients(payload) {
		n.send(r.userID, r.text)
	}
	return nil
}

func (n *Notifier) send(userID, text string) {
	if userID == "" || text == "" || n.sender == nil {
		return
	}
	chatID, ok := n.chats[userID]
	if !ok {
		return
	}

	if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Int64("chat_id", chatID).Msg("Failed to send notification")
	}
}
