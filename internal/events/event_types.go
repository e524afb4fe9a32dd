package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as
// the websocket event names.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventStaffJoined   EventType = "staff_joined"
	EventTicketClosed  EventType = "ticket_closed"
	EventNewMessage    EventType = "new_message"
)

// Actor identifies who caused an event.
type Actor struct {
	Role domain.SenderRole `json:"role"`
	ID   int64             `json:"id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket domain.Ticket
}

// StaffJoinedPayload payload. Auto is true when the assignment came from
// the admin's first message rather than an explicit join.
type StaffJoinedPayload struct {
	AdminID       int64
	AdminUsername string
	Auto          bool
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Ticket domain.Ticket
}

// NewMessagePayload payload.
type NewMessagePayload struct {
	Message domain.Message
}
