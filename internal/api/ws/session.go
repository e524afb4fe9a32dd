package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Inbound event names.
const (
	EventJoinTicket  = "join_ticket"
	EventLeaveTicket = "leave_ticket"
	EventSendMessage = "send_message"
)

// ErrSlowConsumer is returned when a reply cannot be queued; the caller must
// drop the connection.
var ErrSlowConsumer = errors.New("ws: outbound buffer full")

// Router is the subset of the chat service a session drives.
type Router interface {
	Join(ctx context.Context, conn *realtime.Conn, ticketID int64) (*service.JoinResult, error)
	Leave(conn *realtime.Conn, ticketID int64)
	Post(ctx context.Context, input service.PostInput) (*domain.Message, error)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

type replyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type reply struct {
	OK      bool                 `json:"ok"`
	Message *dto.MessageResponse `json:"message,omitempty"`
	Error   *replyError          `json:"error,omitempty"`
}

// Session decodes inbound frames for one connection and answers each with an
// ack frame. It holds no socket, so it is driven directly in tests.
type Session struct {
	router Router
	conn   *realtime.Conn
	logger *zap.Logger
}

// NewSession binds a router to a connection.
func NewSession(router Router, conn *realtime.Conn, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{router: router, conn: conn, logger: logger.With(zap.String("conn_id", conn.ID()))}
}

// Handle processes one raw frame. Domain failures are reported to the client
// in the ack; only a failure to queue the ack is returned.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return s.fail("", apperrors.NewInvalidArgument("malformed frame", nil))
	}

	switch frame.Event {
	case EventJoinTicket:
		var ref dto.TicketRef
		if err := decode(frame.Data, &ref); err != nil {
			return s.fail(frame.Ack, err)
		}
		res, err := s.router.Join(ctx, s.conn, ref.TicketID)
		if err != nil {
			return s.fail(frame.Ack, err)
		}
		return s.ack(frame.Ack, dto.JoinTicketResponse{
			OK:       true,
			Status:   res.Ticket.Status,
			Closed:   res.Closed,
			Messages: dto.Messages(res.Messages),
		})

	case EventLeaveTicket:
		var ref dto.TicketRef
		if err := decode(frame.Data, &ref); err != nil {
			return s.fail(frame.Ack, err)
		}
		if ref.TicketID <= 0 {
			return s.fail(frame.Ack, apperrors.NewInvalidArgument("ticket_id must be a positive integer", nil))
		}
		s.router.Leave(s.conn, ref.TicketID)
		return s.ack(frame.Ack, reply{OK: true})

	case EventSendMessage:
		var req dto.SendMessageRequest
		if err := decode(frame.Data, &req); err != nil {
			return s.fail(frame.Ack, err)
		}
		msg, err := s.router.Post(ctx, service.PostInput{
			TicketID:    req.TicketID,
			SenderID:    req.SenderID,
			SenderRole:  domain.SenderRole(strings.ToUpper(string(req.SenderType))),
			Text:        req.MessageText,
			Attachments: req.Attachments,
		})
		if err != nil {
			return s.fail(frame.Ack, err)
		}
		out := dto.Message(msg)
		return s.ack(frame.Ack, reply{OK: true, Message: &out})

	default:
		return s.fail(frame.Ack, apperrors.NewInvalidArgument("unknown event",
			map[string]any{"event": frame.Event}))
	}
}

func decode(data json.RawMessage, into any) error {
	if len(data) == 0 {
		return apperrors.NewInvalidArgument("data is required", nil)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return apperrors.NewInvalidArgument("malformed data", nil)
	}
	return nil
}

func (s *Session) fail(ack string, err error) error {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= 500 {
		s.logger.Error("websocket request failed", zap.Error(err))
	}
	return s.ack(ack, reply{Error: &replyError{Code: domainErr.Code, Message: domainErr.Message}})
}

func (s *Session) ack(ack string, data any) error {
	frame, err := realtime.EncodeAck(ack, data)
	if err != nil {
		return err
	}
	if !s.conn.Enqueue(frame) {
		return ErrSlowConsumer
	}
	return nil
}
