package services

type EventType string

const (
	EventSessionOpened     EventType = "session_opened"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventSessionClosed     EventType = "session_closed"
	EventSessionCancelled  EventType = "session_cancelled"
	EventOrderPlaced       EventType = "order_placed"
	EventOrderStatus       EventType = "order_status"
	EventItemStatus        EventType = "item_status"
)

// Event is a change pushed to staff screens of one restaurant.
type Event struct {
	Type         EventType   `json:"type"`
	RestaurantID uint        `json:"restaurant_id"`
	SessionID    uint        `json:"session_id,omitempty"`
	Data         interface{} `json:"data"`
}

// Notifier delivers events after the change they describe is committed.
// Publish must not block the caller.
type Notifier interface {
	Publish(event Event)
}

type NoopNotifier struct{}

func (NoopNotifier) Publish(Event) {}
