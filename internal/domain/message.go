package domain

import (
	"encoding/json"
	"time"
)

// SenderRole indicates who authored a message.
type SenderRole string

const (
	SenderRoleUser  SenderRole = "USER"
	SenderRoleAdmin SenderRole = "ADMIN"
)

// Valid reports whether r is a known sender role.
func (r SenderRole) Valid() bool {
	return r == SenderRoleUser || r == SenderRoleAdmin
}

// ReadStatus tracks delivery of a message to its counterpart.
type ReadStatus string

const (
	ReadStatusSent ReadStatus = "SENT"
	ReadStatusRead ReadStatus = "READ"
)

// Message is one chat line in a ticket thread. AdminID is set iff the
// sender role is ADMIN. Attachments are stored as opaque JSON.
type Message struct {
	ID          int64
	TicketID    int64
	SenderID    int64
	SenderRole  SenderRole
	AdminID     *int64
	Text        string
	Attachments json.RawMessage
	ReadStatus  ReadStatus
	SentAt      time.Time
}
