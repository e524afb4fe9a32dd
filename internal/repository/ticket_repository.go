package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures dashboard search parameters. A zero Limit means no limit.
type TicketFilter struct {
	Status *domain.TicketStatus
	UserID *int64
	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence. The conditional updates
// return the ticket as it is after the call plus whether the update applied.
type TicketRepository interface {
	CreateWithMessage(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	AssignAdminIfUnset(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error)
	CloseIfAssigned(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `ticket_id, user_id, admin_id, subject, message, status, priority, created_at, updated_at`

func (r *ticketRepository) CreateWithMessage(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error {
	const insertTicket = `
        INSERT INTO support_tickets (user_id, subject, message, status, priority)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING ticket_id, created_at, updated_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertTicket,
			ticket.UserID,
			ticket.Subject,
			ticket.Message,
			ticket.Status,
			ticket.Priority,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return translate(err)
		}
		first.TicketID = ticket.ID
		return insertMessage(ctx, tx, first)
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE ticket_id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE %s ORDER BY updated_at DESC, ticket_id DESC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) AssignAdminIfUnset(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error) {
	query := `
        UPDATE support_tickets SET admin_id=$2, updated_at=NOW()
        WHERE ticket_id=$1 AND admin_id IS NULL AND status='ACTIVE'
        RETURNING ` + ticketColumns
	return r.conditionalUpdate(ctx, query, id, adminID)
}

func (r *ticketRepository) CloseIfAssigned(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error) {
	query := `
        UPDATE support_tickets SET status='CLOSED', updated_at=NOW()
        WHERE ticket_id=$1 AND admin_id=$2 AND status='ACTIVE'
        RETURNING ` + ticketColumns
	return r.conditionalUpdate(ctx, query, id, adminID)
}

// conditionalUpdate runs an UPDATE ... RETURNING; when the WHERE clause
// rejects the row it re-reads the current state instead.
func (r *ticketRepository) conditionalUpdate(ctx context.Context, query string, id, adminID int64) (*domain.Ticket, bool, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id, adminID))
	if err == nil {
		return ticket, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.AdminID,
		&ticket.Subject,
		&ticket.Message,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}
