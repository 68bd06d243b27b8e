package services

const (
	EventAttemptStarted = "test-attempt-started"
	EventAnswerSaved    = "answer-saved"
	EventTestSubmitted  = "test-submitted"
	EventReported       = "reported"
	EventResolved       = "resolved"
	EventDismissed      = "dismissed"

	// RoomReports receives every report lifecycle event.
	RoomReports = "reports"
	// RoomAll receives every event regardless of room.
	RoomAll = "*"
)

// Notifier publishes best-effort events. Implementations must not block the
// caller and failures never surface as errors.
type Notifier interface {
	Notify(room, event string, payload interface{})
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, string, interface{}) {}
