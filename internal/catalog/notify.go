package catalog

import "github.com/google/uuid"

// EventKind tags a change notification from the remote service.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventDeleted EventKind = "deleted"
	EventUpdated EventKind = "updated"
)

// ChangeEvent is an invalidation signal: the catalog changed somewhere, go
// refetch. It carries no delta because the transport does not guarantee
// complete or ordered payloads.
type ChangeEvent struct {
	Kind    EventKind
	Subject string
	Origin  string
}

type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNegative Severity = "negative"
	SeverityNeutral  Severity = "neutral"
)

// Notification is what the UI layer shows as a toast.
type Notification struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// notificationFor classifies a change event for display. Unrecognized kinds
// return ok=false so new server-side event types pass through silently.
func notificationFor(ev ChangeEvent) (Notification, bool) {
	subject := ev.Subject
	if subject == "" {
		subject = "a product"
	}

	var n Notification
	switch ev.Kind {
	case EventAdded:
		n = Notification{Severity: SeverityPositive, Message: subject + " was added"}
	case EventDeleted:
		n = Notification{Severity: SeverityNegative, Message: subject + " was removed"}
	case EventUpdated:
		n = Notification{Severity: SeverityNeutral, Message: subject + " was updated"}
	default:
		return Notification{}, false
	}

	n.ID = uuid.NewString()
	return n, true
}
