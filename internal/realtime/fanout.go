package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Fanout turns domain events into websocket frames: lifecycle and message
// events go to the ticket's room, ticket creation goes to staff observers.
// Delivery is at most the current membership; nothing is queued for absent
// clients.
type Fanout struct {
	rooms  *RoomManager
	logger *zap.Logger
}

// NewFanout builds the fanout.
func NewFanout(rooms *RoomManager, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{rooms: rooms, logger: logger}
}

// Register subscribes the fanout to the dispatcher.
func (f *Fanout) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, f.handleTicketCreated)
	dispatcher.Subscribe(events.EventStaffJoined, f.handleStaffJoined)
	dispatcher.Subscribe(events.EventNewMessage, f.handleNewMessage)
	dispatcher.Subscribe(events.EventTicketClosed, f.handleTicketClosed)
}

func (f *Fanout) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	frame, err := Encode(string(event.Type), dto.Ticket(&payload.Ticket))
	if err != nil {
		return err
	}
	n := f.rooms.BroadcastStaff(frame)
	f.logger.Debug("ticket_created fanout", zap.Int64("ticket_id", event.TicketID), zap.Int("observers", n))
	return nil
}

func (f *Fanout) handleStaffJoined(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StaffJoinedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return f.toRoom(event, dto.StaffJoinedResponse{
		TicketID:      event.TicketID,
		AdminID:       payload.AdminID,
		AdminUsername: payload.AdminUsername,
		Auto:          payload.Auto,
	})
}

func (f *Fanout) handleNewMessage(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NewMessagePayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return f.toRoom(event, dto.Message(&payload.Message))
}

func (f *Fanout) handleTicketClosed(_ context.Context, event events.Event) error {
	return f.toRoom(event, dto.TicketRef{TicketID: event.TicketID})
}

func (f *Fanout) toRoom(event events.Event, data any) error {
	frame, err := Encode(string(event.Type), data)
	if err != nil {
		return err
	}
	n := f.rooms.Broadcast(event.TicketID, frame)
	f.logger.Debug("room fanout",
		zap.String("event", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int("members", n))
	return nil
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}
