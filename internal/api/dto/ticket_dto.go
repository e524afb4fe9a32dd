package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	UserID   int64  `json:"user_id"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// AdminActionRequest is the body of join and close.
type AdminActionRequest struct {
	AdminID int64 `json:"admin_id"`
}

// SendMessageRequest is shared by the send_message event and its HTTP twin.
type SendMessageRequest struct {
	TicketID    int64             `json:"ticket_id"`
	SenderID    int64             `json:"sender_id"`
	SenderType  domain.SenderRole `json:"sender_type"`
	MessageText string            `json:"message_text"`
	Attachments json.RawMessage   `json:"attachments,omitempty"`
}

// TicketRef is the payload of join_ticket, leave_ticket and ticket_closed.
type TicketRef struct {
	TicketID int64 `json:"ticket_id"`
}

// TicketResponse represents a ticket on the wire.
type TicketResponse struct {
	TicketID  int64               `json:"ticket_id"`
	UserID    int64               `json:"user_id"`
	AdminID   *int64              `json:"admin_id"`
	Subject   string              `json:"subject"`
	Message   string              `json:"message"`
	Status    domain.TicketStatus `json:"status"`
	Priority  int                 `json:"priority"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// TicketDetailResponse is a ticket with its ordered history.
type TicketDetailResponse struct {
	TicketResponse
	Messages []MessageResponse `json:"messages"`
}

// DashboardResponse groups tickets for the staff dashboard.
type DashboardResponse struct {
	Open   []TicketResponse `json:"open"`
	Closed []TicketResponse `json:"closed"`
	Total  int              `json:"total"`
}

// MessageResponse represents a chat message on the wire.
type MessageResponse struct {
	MessageID   int64             `json:"message_id"`
	TicketID    int64             `json:"ticket_id"`
	SenderID    int64             `json:"sender_id"`
	SenderType  domain.SenderRole `json:"sender_type"`
	AdminID     *int64            `json:"admin_id"`
	MessageText string            `json:"message_text"`
	Attachments json.RawMessage   `json:"attachments,omitempty"`
	ReadStatus  domain.ReadStatus `json:"read_status"`
	SendTime    time.Time         `json:"send_datetime"`
}

// StaffJoinedResponse is the staff_joined payload.
type StaffJoinedResponse struct {
	TicketID      int64  `json:"ticket_id"`
	AdminID       int64  `json:"admin_id"`
	AdminUsername string `json:"admin_username,omitempty"`
	Auto          bool   `json:"auto"`
}

// JoinTicketResponse is the join_ticket acknowledgement.
type JoinTicketResponse struct {
	OK       bool                `json:"ok"`
	Status   domain.TicketStatus `json:"status"`
	Closed   bool                `json:"closed"`
	Messages []MessageResponse   `json:"messages"`
}

// AssignResponse reports the outcome of join-as-staff.
type AssignResponse struct {
	Ticket   TicketResponse `json:"ticket"`
	Assigned bool           `json:"assigned"`
}

// Ticket converts a domain ticket.
func Ticket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		TicketID:  t.ID,
		UserID:    t.UserID,
		AdminID:   t.AdminID,
		Subject:   t.Subject,
		Message:   t.Message,
		Status:    t.Status,
		Priority:  t.Priority,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// Tickets converts a slice of domain tickets.
func Tickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, Ticket(&tickets[i]))
	}
	return out
}

// Message converts a domain message.
func Message(m *domain.Message) MessageResponse {
	return MessageResponse{
		MessageID:   m.ID,
		TicketID:    m.TicketID,
		SenderID:    m.SenderID,
		SenderType:  m.SenderRole,
		AdminID:     m.AdminID,
		MessageText: m.Text,
		Attachments: m.Attachments,
		ReadStatus:  m.ReadStatus,
		SendTime:    m.SentAt,
	}
}

// Messages converts an ordered message slice.
func Messages(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, Message(&msgs[i]))
	}
	return out
}
