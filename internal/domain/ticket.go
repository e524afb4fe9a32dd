package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive TicketStatus = "ACTIVE"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusActive || s == TicketStatusClosed
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID        int64
	UserID    int64
	AdminID   *int64
	Subject   string
	Message   string
	Status    TicketStatus
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// AssignedTo reports whether adminID owns the ticket.
func (t *Ticket) AssignedTo(adminID int64) bool {
	return t.AdminID != nil && *t.AdminID == adminID
}
