package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Limiter throttles message posting per sender.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ChatService routes live traffic: room admission, message posting and
// connection teardown.
type ChatService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	admins     repository.AdminRepository
	rooms      Rooms
	locks      *TicketLocks
	limiter    Limiter
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	sendBuffer int
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	AdminRepo   repository.AdminRepository
	Rooms       Rooms
	Locks       *TicketLocks
	Limiter     Limiter
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// PostInput describes a chat message submission.
type PostInput struct {
	TicketID    int64
	SenderID    int64
	SenderRole  domain.SenderRole
	Text        string
	Attachments json.RawMessage
}

// JoinResult is the outcome of a room join. Joined is false for closed
// tickets, which only expose their history.
type JoinResult struct {
	Ticket   *domain.Ticket
	Messages []domain.Message
	Joined   bool
	Closed   bool
}

// NewChatService constructs the service. Locks must be shared with the
// TicketService so that joins, posts and closes of one ticket are serialized.
func NewChatService(cfg config.RealtimeConfig, deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewTicketLocks()
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &ChatService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		admins:     deps.AdminRepo,
		rooms:      deps.Rooms,
		locks:      locks,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("chat"),
		metrics:    deps.Metrics,
		sendBuffer: buffer,
	}
}

// Connect opens a connection. A non-nil adminID must name an existing admin;
// such connections also receive ticket_created notifications.
func (s *ChatService) Connect(ctx context.Context, adminID *int64) (*realtime.Conn, error) {
	if adminID != nil {
		if *adminID <= 0 {
			return nil, apperrors.NewInvalidArgument("admin_id must be a positive integer", nil)
		}
		if _, err := s.admins.GetByID(ctx, *adminID); err != nil {
			return nil, notFoundOr(err, "admin", map[string]any{"admin_id": *adminID})
		}
	}
	conn := realtime.NewConn(s.sendBuffer, adminID)
	if adminID != nil {
		s.rooms.AddObserver(conn)
	}
	s.logger.Debug("connection opened", zap.String("conn_id", conn.ID()), zap.Bool("staff", adminID != nil))
	return conn, nil
}

// Join admits conn to the ticket's room and returns the full history. For a
// closed ticket the history is returned with Closed set and no membership is
// added.
func (s *ChatService) Join(ctx context.Context, conn *realtime.Conn, ticketID int64) (*JoinResult, error) {
	if ticketID <= 0 {
		return nil, invalidTicketID()
	}

	unlock, err := s.locks.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	history, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, internalError("list messages", err)
	}

	result := &JoinResult{Ticket: ticket, Messages: history, Closed: ticket.IsClosed()}
	if !result.Closed {
		if s.rooms.Join(conn, ticketID) {
			result.Joined = true
		} else if conn.Closed() {
			return nil, apperrors.NewConflict("connection is closed", nil)
		} else {
			// Room was evicted by a close whose status we did not observe.
			closed := *ticket
			closed.Status = domain.TicketStatusClosed
			result.Ticket = &closed
			result.Closed = true
		}
	}

	outcome := "joined"
	if !result.Joined {
		outcome = "read_only"
	}
	s.metrics.RoomJoin(outcome)
	s.logger.Debug("join",
		zap.String("conn_id", conn.ID()),
		zap.Int64("ticket_id", ticketID),
		zap.String("outcome", outcome))
	return result, nil
}

// Leave removes conn from one room. Leaving a room the connection is not in
// is a no-op.
func (s *ChatService) Leave(conn *realtime.Conn, ticketID int64) {
	s.rooms.Leave(conn, ticketID)
}

// Disconnect tears the connection down and drops every membership it holds.
func (s *ChatService) Disconnect(conn *realtime.Conn) {
	conn.Close()
	s.rooms.LeaveAll(conn)
	s.logger.Debug("connection closed", zap.String("conn_id", conn.ID()))
}

// Post persists a message and broadcasts it to the ticket's room. The first
// ADMIN message on an unassigned ticket assigns that admin.
func (s *ChatService) Post(ctx context.Context, input PostInput) (*domain.Message, error) {
	text := strings.TrimSpace(input.Text)
	switch {
	case input.TicketID <= 0:
		return nil, invalidTicketID()
	case input.SenderID <= 0:
		return nil, apperrors.NewInvalidArgument("sender_id must be a positive integer", nil)
	case !input.SenderRole.Valid():
		return nil, apperrors.NewInvalidArgument("sender_type must be USER or ADMIN",
			map[string]any{"sender_type": input.SenderRole})
	case text == "":
		return nil, apperrors.NewInvalidArgument("message_text is required", nil)
	case len(input.Attachments) > 0 && !json.Valid(input.Attachments):
		return nil, apperrors.NewInvalidArgument("attachments must be valid JSON", nil)
	}

	var admin *domain.Admin
	if input.SenderRole == domain.SenderRoleAdmin {
		a, err := s.admins.GetByID(ctx, input.SenderID)
		if err != nil {
			return nil, notFoundOr(err, "admin", map[string]any{"admin_id": input.SenderID})
		}
		admin = a
	}

	if err := s.checkRate(ctx, input.SenderRole, input.SenderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID:    input.TicketID,
		SenderID:    input.SenderID,
		SenderRole:  input.SenderRole,
		Text:        text,
		Attachments: input.Attachments,
		ReadStatus:  domain.ReadStatusSent,
	}
	if admin != nil {
		adminID := admin.ID
		msg.AdminID = &adminID
	}

	unlock, err := s.locks.Lock(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, assigned, err := s.messages.Append(ctx, msg)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
	case errors.Is(err, repository.ErrTicketClosed):
		return nil, apperrors.NewTicketClosed(input.TicketID)
	case err != nil:
		return nil, internalError("append message", err)
	}

	actor := events.Actor{Role: input.SenderRole, ID: input.SenderID}
	if assigned {
		s.logger.Info("ticket auto-assigned", zap.Int64("ticket_id", input.TicketID), zap.Int64("admin_id", admin.ID))
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventStaffJoined,
			TicketID: input.TicketID,
			Actor:    actor,
			Payload:  events.StaffJoinedPayload{AdminID: admin.ID, AdminUsername: admin.Username, Auto: true},
		})
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventNewMessage,
		TicketID: input.TicketID,
		Actor:    actor,
		Payload:  events.NewMessagePayload{Message: *msg},
	})
	s.metrics.MessagePosted(string(input.SenderRole))
	return msg, nil
}

func (s *ChatService) checkRate(ctx context.Context, role domain.SenderRole, senderID int64) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("%s:%d", role, senderID))
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
	}
	if !allowed {
		return apperrors.NewRateLimited("too many messages, slow down")
	}
	return nil
}
