// Package queue defines the appointment lifecycle messages exchanged over
// RabbitMQ, a publisher for them and the consumer that records them.
package queue

// AppointmentQueue is the durable queue lifecycle events are routed to.
const AppointmentQueue = "appointment.events"

// Event types.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventCancelled = "cancelled"
)

// AppointmentEvent is published after an appointment write commits.  It
// carries identifiers and the slot only; personal fields stay in the
// database.
type AppointmentEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	AppointmentID uint64 `json:"appointment_id"`
	ServiceID     uint64 `json:"service_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PromoCode     string `json:"promo_code,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
