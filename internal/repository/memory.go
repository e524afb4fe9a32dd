package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MemoryStore is a process-local gateway used when no Postgres DSN is
// configured and by tests. A single mutex gives every operation the same
// atomicity the Postgres implementation gets from row locks and conditional
// updates.
type MemoryStore struct {
	mu sync.Mutex

	tickets  map[int64]*domain.Ticket
	messages map[int64][]domain.Message
	users    map[int64]*domain.User
	admins   map[int64]*domain.Admin

	nextTicket  int64
	nextMessage int64
	nextUser    int64
	nextAdmin   int64

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:  make(map[int64]*domain.Ticket),
		messages: make(map[int64][]domain.Message),
		users:    make(map[int64]*domain.User),
		admins:   make(map[int64]*domain.Admin),
		now:      time.Now,
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Messages exposes the store as a MessageRepository.
func (s *MemoryStore) Messages() MessageRepository { return memoryMessages{s} }

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Admins exposes the store as an AdminRepository.
func (s *MemoryStore) Admins() AdminRepository { return memoryAdmins{s} }

type memoryTickets struct{ s *MemoryStore }

func (m memoryTickets) CreateWithMessage(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTicket++
	now := s.now()
	ticket.ID = s.nextTicket
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = copyTicket(ticket)

	first.TicketID = ticket.ID
	s.appendLocked(first)
	return nil
}

func (m memoryTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ticket, ok := m.s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTicket(ticket), nil
}

func (m memoryTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	result := []domain.Ticket{}
	for _, ticket := range m.s.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && ticket.UserID != *filter.UserID {
			continue
		}
		result = append(result, *copyTicket(ticket))
	}
	m.s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m memoryTickets) AssignAdminIfUnset(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error) {
	return m.conditionalUpdate(ctx, id, func(t *domain.Ticket) bool {
		if t.AdminID != nil || t.IsClosed() {
			return false
		}
		t.AdminID = &adminID
		return true
	})
}

func (m memoryTickets) CloseIfAssigned(ctx context.Context, id, adminID int64) (*domain.Ticket, bool, error) {
	return m.conditionalUpdate(ctx, id, func(t *domain.Ticket) bool {
		if !t.AssignedTo(adminID) || t.IsClosed() {
			return false
		}
		t.Status = domain.TicketStatusClosed
		return true
	})
}

func (m memoryTickets) conditionalUpdate(ctx context.Context, id int64, apply func(*domain.Ticket) bool) (*domain.Ticket, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if !apply(ticket) {
		return copyTicket(ticket), false, nil
	}
	ticket.UpdatedAt = s.now()
	return copyTicket(ticket), true, nil
}

type memoryMessages struct{ s *MemoryStore }

func (m memoryMessages) Append(ctx context.Context, msg *domain.Message) (*domain.Ticket, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[msg.TicketID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if ticket.IsClosed() {
		return nil, false, ErrTicketClosed
	}
	assigned := false
	if msg.SenderRole == domain.SenderRoleAdmin && ticket.AdminID == nil {
		adminID := msg.SenderID
		ticket.AdminID = &adminID
		ticket.UpdatedAt = s.now()
		assigned = true
	}
	s.appendLocked(msg)
	return copyTicket(ticket), assigned, nil
}

func (m memoryMessages) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored := m.s.messages[ticketID]
	result := make([]domain.Message, len(stored))
	copy(result, stored)
	return result, nil
}

// appendLocked assigns id and a send time no earlier than the previous
// message of the same ticket. Callers hold s.mu.
func (s *MemoryStore) appendLocked(msg *domain.Message) {
	s.nextMessage++
	msg.ID = s.nextMessage
	if msg.ReadStatus == "" {
		msg.ReadStatus = domain.ReadStatusSent
	}
	sentAt := s.now()
	thread := s.messages[msg.TicketID]
	if n := len(thread); n > 0 && sentAt.Before(thread[n-1].SentAt) {
		sentAt = thread[n-1].SentAt
	}
	msg.SentAt = sentAt
	s.messages[msg.TicketID] = append(thread, *msg)
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	s.nextUser++
	user.ID = s.nextUser
	user.CreatedAt = s.now()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (m memoryUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	user, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

type memoryAdmins struct{ s *MemoryStore }

func (m memoryAdmins) Create(ctx context.Context, admin *domain.Admin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if strings.EqualFold(existing.Email, admin.Email) {
			return ErrDuplicate
		}
	}
	s.nextAdmin++
	admin.ID = s.nextAdmin
	admin.CreatedAt = s.now()
	stored := *admin
	s.admins[admin.ID] = &stored
	return nil
}

func (m memoryAdmins) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	admin, ok := m.s.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *admin
	return &out, nil
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	if t.AdminID != nil {
		adminID := *t.AdminID
		out.AdminID = &adminID
	}
	return &out
}
