package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Rooms is the room membership surface the services need.
type Rooms interface {
	Join(conn *realtime.Conn, ticketID int64) bool
	Leave(conn *realtime.Conn, ticketID int64)
	LeaveAll(conn *realtime.Conn)
	ForceEvictAll(ticketID int64) int
	AddObserver(conn *realtime.Conn) bool
}

// TicketService owns the ticket lifecycle: creation, staff assignment and
// closing.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	users      repository.UserRepository
	admins     repository.AdminRepository
	rooms      Rooms
	locks      *TicketLocks
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	UserRepo    repository.UserRepository
	AdminRepo   repository.AdminRepository
	Rooms       Rooms
	Locks       *TicketLocks
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	UserID   int64
	Subject  string
	Text     string
	Priority int
}

// AssignResult reports whether a join-as-staff call performed the assignment.
type AssignResult struct {
	Ticket   *domain.Ticket
	Assigned bool
}

// Dashboard groups tickets for the staff view.
type Dashboard struct {
	Open   []domain.Ticket
	Closed []domain.Ticket
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewTicketLocks()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		admins:     deps.AdminRepo,
		rooms:      deps.Rooms,
		locks:      locks,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("tickets"),
		metrics:    deps.Metrics,
	}
}

// CreateTicket creates an ACTIVE, unassigned ticket together with its first
// USER message and notifies staff observers.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	text := strings.TrimSpace(input.Text)
	if input.UserID <= 0 {
		return nil, apperrors.NewInvalidArgument("user_id must be a positive integer", nil)
	}
	if subject == "" || text == "" {
		return nil, apperrors.NewInvalidArgument("subject and message are required", nil)
	}
	if _, err := s.users.GetByID(ctx, input.UserID); err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": input.UserID})
	}

	ticket := &domain.Ticket{
		UserID:   input.UserID,
		Subject:  subject,
		Message:  text,
		Status:   domain.TicketStatusActive,
		Priority: input.Priority,
	}
	first := &domain.Message{
		SenderID:   input.UserID,
		SenderRole: domain.SenderRoleUser,
		Text:       text,
		ReadStatus: domain.ReadStatusSent,
	}
	if err := s.tickets.CreateWithMessage(ctx, ticket, first); err != nil {
		return nil, internalError("create ticket", err)
	}
	s.metrics.MessagePosted(string(domain.SenderRoleUser))
	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.Int64("user_id", ticket.UserID))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Role: domain.SenderRoleUser, ID: ticket.UserID},
		Payload:  events.TicketCreatedPayload{Ticket: *ticket},
	})
	return ticket, nil
}

// ListTickets returns tickets, optionally filtered by status, most recently
// updated first.
func (s *TicketService) ListTickets(ctx context.Context, status *domain.TicketStatus) ([]domain.Ticket, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown status", map[string]any{"status": *status})
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Status: status})
	if err != nil {
		return nil, internalError("list tickets", err)
	}
	return tickets, nil
}

// Dashboard returns open and closed tickets for staff.
func (s *TicketService) Dashboard(ctx context.Context) (*Dashboard, error) {
	active, closed := domain.TicketStatusActive, domain.TicketStatusClosed
	open, err := s.ListTickets(ctx, &active)
	if err != nil {
		return nil, err
	}
	done, err := s.ListTickets(ctx, &closed)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Open: open, Closed: done}, nil
}

// GetTicket fetches a ticket with its ordered message history.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, []domain.Message, error) {
	if ticketID <= 0 {
		return nil, nil, invalidTicketID()
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, internalError("list messages", err)
	}
	return ticket, msgs, nil
}

// AssignTicket binds adminID to the ticket if nobody owns it yet. Later
// calls, and calls on closed tickets, leave the owner unchanged and report
// Assigned=false.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, adminID int64) (*AssignResult, error) {
	if ticketID <= 0 {
		return nil, invalidTicketID()
	}
	if adminID <= 0 {
		return nil, apperrors.NewInvalidArgument("admin_id must be a positive integer", nil)
	}
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, notFoundOr(err, "admin", map[string]any{"admin_id": adminID})
	}

	unlock, err := s.locks.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, applied, err := s.tickets.AssignAdminIfUnset(ctx, ticketID, adminID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if applied {
		s.logger.Info("ticket assigned", zap.Int64("ticket_id", ticketID), zap.Int64("admin_id", adminID))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventStaffJoined,
			TicketID: ticketID,
			Actor:    events.Actor{Role: domain.SenderRoleAdmin, ID: adminID},
			Payload:  events.StaffJoinedPayload{AdminID: adminID, AdminUsername: admin.Username},
		})
	}
	return &AssignResult{Ticket: ticket, Assigned: applied}, nil
}

// CloseTicket moves the ticket to CLOSED. Only the assigned admin may close;
// closing an already closed ticket is rejected with TICKET_CLOSED. On
// success every connection in the room is told and then evicted.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID, adminID int64) (*domain.Ticket, error) {
	if ticketID <= 0 {
		return nil, invalidTicketID()
	}
	if adminID <= 0 {
		return nil, apperrors.NewInvalidArgument("admin_id must be a positive integer", nil)
	}

	unlock, err := s.locks.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, applied, err := s.tickets.CloseIfAssigned(ctx, ticketID, adminID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if !applied {
		switch {
		case !ticket.AssignedTo(adminID):
			return nil, apperrors.NewForbidden("only the assigned admin can close this ticket")
		case ticket.IsClosed():
			return nil, apperrors.NewTicketClosed(ticketID)
		default:
			return nil, apperrors.NewConflict("ticket changed concurrently", map[string]any{"ticket_id": ticketID})
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticketID,
		Actor:    events.Actor{Role: domain.SenderRoleAdmin, ID: adminID},
		Payload:  events.TicketClosedPayload{Ticket: *ticket},
	})
	evicted := 0
	if s.rooms != nil {
		evicted = s.rooms.ForceEvictAll(ticketID)
	}
	s.logger.Info("ticket closed",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("admin_id", adminID),
		zap.Int("evicted", evicted))
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func invalidTicketID() error {
	return apperrors.NewInvalidArgument("ticket_id must be a positive integer", nil)
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return internalError("load "+resource, err)
}

func internalError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewInternalError(fmt.Errorf("%s: %w", op, err))
}
