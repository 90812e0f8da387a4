package notify

import (
	"fmt"

	"campusrun/internal/events"
	"campusrun/internal/models"
)

type recipient struct {
	userID string
	text   string
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func applicantMessage(p events.MissionEventPayload) string {
	return fmt.Sprintf("A runner applied to your mission %s. Open the app to review applicants.", shortID(p.MissionID))
}

// recipients lists who hears about a status change. The actor is never told
// about their own action.
func recipients(p events.MissionEventPayload) []recipient {
	id := shortID(p.MissionID)
	var out []recipient
	add := func(userID, text string) {
		if userID != "" && userID != p.ActorID {
			out = append(out, recipient{userID: userID, text: text})
		}
	}

	switch p.Status {
	case models.StatusRunnerSelected:
		add(p.RunnerID, fmt.Sprintf("You were selected for mission %s. Wait for the student's payment.", id))
	case models.StatusPaymentSubmitted:
		add(p.RunnerID, fmt.Sprintf("Payment receipt submitted for mission %s. Please verify it.", id))
	case models.StatusAwaitingPayment:
		add(p.StudentID, fmt.Sprintf("Your payment for mission %s was rejected. Please submit a new receipt.", id))
	case models.StatusActiveMission:
		add(p.StudentID, fmt.Sprintf("Payment verified. Mission %s is under way.", id))
	case models.StatusProofSubmitted:
		add(p.StudentID, fmt.Sprintf("Proof of delivery uploaded for mission %s. Please confirm.", id))
	case models.StatusAwaitingStudentConfirmation:
		add(p.RunnerID, fmt.Sprintf("Delivery of mission %s confirmed. You can rate the student now.", id))
	case models.StatusCompleted:
		add(p.StudentID, fmt.Sprintf("Mission %s is completed.", id))
		add(p.RunnerID, fmt.Sprintf("Mission %s is completed.", id))
	case models.StatusCancelled:
		add(p.RunnerID, fmt.Sprintf("Mission %s was cancelled by the student.", id))
	case models.StatusDisputed:
		add(p.RunnerID, fmt.Sprintf("Mission %s was disputed by the student.", id))
	}
	return out
}
