package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler maps the ticket REST surface onto the ticket and chat
// services.
type TicketsHandler struct {
	tickets *service.TicketService
	chat    *service.ChatService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, chat *service.ChatService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, chat: chat}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		UserID:   req.UserID,
		Subject:  req.Subject,
		Text:     req.Message,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// ListTickets GET /api/tickets?status=ACTIVE|CLOSED.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var status *domain.TicketStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := domain.TicketStatus(strings.ToUpper(raw))
		status = &s
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Tickets(tickets)})
}

// Dashboard GET /api/dashboard/tickets.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	board, err := h.tickets.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		Open:   dto.Tickets(board.Open),
		Closed: dto.Tickets(board.Closed),
		Total:  len(board.Open) + len(board.Closed),
	}})
}

// GetTicket GET /api/tickets/:ticketId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.tickets.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketResponse: dto.Ticket(ticket),
		Messages:       dto.Messages(msgs),
	}})
}

// JoinTicket PATCH /api/tickets/:ticketId/join assigns the calling admin if
// the ticket has no owner yet.
func (h *TicketsHandler) JoinTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AdminActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	res, err := h.tickets.AssignTicket(c.UserContext(), id, req.AdminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AssignResponse{Ticket: dto.Ticket(res.Ticket), Assigned: res.Assigned}})
}

// CloseTicket PATCH /api/tickets/:ticketId/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AdminActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	ticket, err := h.tickets.CloseTicket(c.UserContext(), id, req.AdminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// PostMessage POST /api/tickets/:ticketId/messages is the HTTP twin of the
// send_message event.
func (h *TicketsHandler) PostMessage(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if req.TicketID != 0 && req.TicketID != id {
		return apperrors.NewInvalidArgument("ticket_id does not match path", nil)
	}
	msg, err := h.chat.Post(c.UserContext(), service.PostInput{
		TicketID:    id,
		SenderID:    req.SenderID,
		SenderRole:  domain.SenderRole(strings.ToUpper(string(req.SenderType))),
		Text:        req.MessageText,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.Message(msg)})
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("ticketId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidArgument("ticket_id must be a positive integer",
			map[string]any{"ticket_id": c.Params("ticketId")})
	}
	return id, nil
}
