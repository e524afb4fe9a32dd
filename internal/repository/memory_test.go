package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func seedTicket(t *testing.T, store *MemoryStore) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{UserID: 7, Subject: "Login issue", Message: "Can't log in", Status: domain.TicketStatusActive}
	first := &domain.Message{SenderID: 7, SenderRole: domain.SenderRoleUser, Text: "Can't log in"}
	require.NoError(t, store.Tickets().CreateWithMessage(context.Background(), ticket, first))
	return ticket
}

func TestMemoryStore_CreateWithMessage(t *testing.T) {
	store := NewMemoryStore()
	ticket := seedTicket(t, store)

	assert.Equal(t, int64(1), ticket.ID)

	msgs, err := store.Messages().ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, ticket.ID, msgs[0].TicketID)
	assert.Equal(t, domain.ReadStatusSent, msgs[0].ReadStatus)
}

func TestMemoryStore_AssignAdminIfUnset_FirstWins(t *testing.T) {
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	ctx := context.Background()

	got, applied, err := store.Tickets().AssignAdminIfUnset(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, got.AssignedTo(1))

	got, applied, err = store.Tickets().AssignAdminIfUnset(ctx, ticket.ID, 2)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, got.AssignedTo(1))

	_, _, err = store.Tickets().AssignAdminIfUnset(ctx, 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CloseIfAssigned(t *testing.T) {
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	ctx := context.Background()

	_, applied, err := store.Tickets().CloseIfAssigned(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.False(t, applied, "unassigned ticket cannot be closed")

	_, _, err = store.Tickets().AssignAdminIfUnset(ctx, ticket.ID, 1)
	require.NoError(t, err)

	got, applied, err := store.Tickets().CloseIfAssigned(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)

	_, applied, err = store.Tickets().CloseIfAssigned(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMemoryStore_AppendRejectsClosed(t *testing.T) {
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	ctx := context.Background()
	_, _, _ = store.Tickets().AssignAdminIfUnset(ctx, ticket.ID, 1)
	_, _, _ = store.Tickets().CloseIfAssigned(ctx, ticket.ID, 1)

	_, _, err := store.Messages().Append(ctx, &domain.Message{TicketID: ticket.ID, SenderID: 7, SenderRole: domain.SenderRoleUser, Text: "hello?"})
	assert.ErrorIs(t, err, ErrTicketClosed)

	msgs, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryStore_AppendAutoAssignsOnce(t *testing.T) {
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			adminID := int64(i + 1)
			_, assigned, err := store.Messages().Append(ctx, &domain.Message{
				TicketID: ticket.ID, SenderID: adminID, SenderRole: domain.SenderRoleAdmin, AdminID: &adminID, Text: "on it",
			})
			assert.NoError(t, err)
			results[i] = assigned
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, results[0], results[1], "exactly one append assigns")
	msgs, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestMemoryStore_SendTimesNeverDecrease(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Second), base.Add(-time.Minute), base.Add(2 * time.Second)}
	store.now = func() time.Time {
		next := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return next
	}
	ticket := seedTicket(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := store.Messages().Append(ctx, &domain.Message{TicketID: ticket.ID, SenderID: 7, SenderRole: domain.SenderRoleUser, Text: "ping"})
		require.NoError(t, err)
	}

	msgs, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt))
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
}

func TestMemoryStore_ListFiltersAndOrders(t *testing.T) {
	store := NewMemoryStore()
	first := seedTicket(t, store)
	second := seedTicket(t, store)
	ctx := context.Background()
	_, _, _ = store.Tickets().AssignAdminIfUnset(ctx, first.ID, 1)
	_, _, _ = store.Tickets().CloseIfAssigned(ctx, first.ID, 1)

	active := domain.TicketStatusActive
	open, err := store.Tickets().List(ctx, TicketFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	all, err := store.Tickets().List(ctx, TicketFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := store.Tickets().List(ctx, TicketFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Users().Create(ctx, &domain.User{Username: "ana", Email: "ana@example.com"}))
	err := store.Users().Create(ctx, &domain.User{Username: "ana2", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, store.Admins().Create(ctx, &domain.Admin{Username: "ana", Email: "ana@example.com"}))
	_, err = store.Admins().GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}
