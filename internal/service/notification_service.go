package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// NotificationService records lifecycle events in the audit log and hands
// them to the configured outbound channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventStaffJoined, n.handleStaffJoined)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventNewMessage, n.handleNewMessage)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.audit(event)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStaffJoined(ctx context.Context, event events.Event) error {
	fields := []zap.Field{}
	if payload, ok := event.Payload.(events.StaffJoinedPayload); ok {
		fields = append(fields, zap.Int64("admin_id", payload.AdminID), zap.Bool("auto", payload.Auto))
	}
	n.audit(event, fields...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.audit(event)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleNewMessage(_ context.Context, event events.Event) error {
	fields := []zap.Field{}
	if payload, ok := event.Payload.(events.NewMessagePayload); ok {
		fields = append(fields, zap.Int64("message_id", payload.Message.ID))
	}
	n.audit(event, fields...)
	return nil
}

func (n *NotificationService) audit(event events.Event, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Int64("actor_id", event.Actor.ID),
	}, extra...)
	n.logger.Info("ticket event", fields...)
}

// sendEmailNotificationStub only logs; no mail transport is wired.
func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification stub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event", string(event.Type)))
}

// sendWebhookNotificationStub only logs; no HTTP delivery is wired.
func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("webhook notification stub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event", string(event.Type)))
}
