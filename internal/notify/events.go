package notify

import "time"

// Event types carried on the notifications topic.
const (
	EventAssessmentAvailable = "ASSESSMENT_AVAILABLE"
	EventAssessmentExpired   = "ASSESSMENT_EXPIRED"
)

// Event is one notification addressed to a single student.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RecipientID string    `json:"recipient_id"`
	ProgressID  string    `json:"progress_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Deadline    time.Time `json:"deadline"`
	EmittedAt   time.Time `json:"emitted_at"`
}
