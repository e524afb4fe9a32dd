package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MessageRepository manages ticket chat messages.
type MessageRepository interface {
	// Append persists msg while the ticket is ACTIVE. When the sender is an
	// admin and the ticket has no admin yet, the sender is assigned in the
	// same transaction. It returns the ticket after the call and whether the
	// assignment happened.
	Append(ctx context.Context, msg *domain.Message) (*domain.Ticket, bool, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.Message) (*domain.Ticket, bool, error) {
	var (
		ticket   *domain.Ticket
		assigned bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// The row lock orders appends per ticket and blocks a concurrent close
		// until this transaction commits.
		locked, err := scanTicket(tx.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM support_tickets WHERE ticket_id=$1 FOR UPDATE`, msg.TicketID))
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return ErrTicketClosed
		}
		if msg.SenderRole == domain.SenderRoleAdmin && locked.AdminID == nil {
			if err := tx.QueryRow(ctx,
				`UPDATE support_tickets SET admin_id=$2, updated_at=NOW() WHERE ticket_id=$1 RETURNING updated_at`,
				locked.ID, msg.SenderID,
			).Scan(&locked.UpdatedAt); err != nil {
				return translate(err)
			}
			adminID := msg.SenderID
			locked.AdminID = &adminID
			assigned = true
		}
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ticket, assigned, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT message_id, ticket_id, sender_id, sender_type, admin_id, message_text, attachments, read_status, send_datetime
        FROM chat_messages WHERE ticket_id=$1 ORDER BY send_datetime ASC, message_id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Message{}
	for rows.Next() {
		var (
			msg         domain.Message
			attachments []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.AdminID,
			&msg.Text,
			&attachments,
			&msg.ReadStatus,
			&msg.SentAt,
		); err != nil {
			return nil, err
		}
		msg.Attachments = attachments
		result = append(result, msg)
	}
	return result, rows.Err()
}

// insertMessage stamps send_datetime no earlier than the ticket's latest
// message so listing order matches insertion order; message_id breaks ties.
func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.Message) error {
	const query = `
        INSERT INTO chat_messages (ticket_id, sender_id, sender_type, admin_id, message_text, attachments, read_status, send_datetime)
        VALUES ($1,$2,$3,$4,$5,$6,$7,
            GREATEST(clock_timestamp(), COALESCE((SELECT MAX(send_datetime) FROM chat_messages WHERE ticket_id=$1), 'epoch'::timestamptz)))
        RETURNING message_id, send_datetime`
	if msg.ReadStatus == "" {
		msg.ReadStatus = domain.ReadStatusSent
	}
	var attachments any
	if len(msg.Attachments) > 0 {
		attachments = []byte(msg.Attachments)
	}
	return translate(tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.SenderRole,
		msg.AdminID,
		msg.Text,
		attachments,
		msg.ReadStatus,
	).Scan(&msg.ID, &msg.SentAt))
}
