package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func newAccountService() *AccountService {
	store := repository.NewMemoryStore()
	return NewAccountService(config.AccountsConfig{BcryptCost: bcrypt.MinCost}, store.Users(), store.Admins(), nil)
}

func TestAccountService_CreateUserHashesPassword(t *testing.T) {
	svc := newAccountService()

	user, err := svc.CreateUser(context.Background(), AccountInput{
		Username: " dana ", Email: "Dana@Example.com", Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "dana", user.Username)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))
}

func TestAccountService_DuplicateEmail(t *testing.T) {
	svc := newAccountService()
	ctx := context.Background()
	input := AccountInput{Username: "sam", Email: "sam@example.com", Password: "password1"}

	_, err := svc.CreateAdmin(ctx, input)
	require.NoError(t, err)
	_, err = svc.CreateAdmin(ctx, input)
	assertCode(t, err, apperrors.CodeConflict)

	_, err = svc.CreateUser(ctx, input)
	assert.NoError(t, err, "users and admins are separate namespaces")
}

func TestAccountService_Validation(t *testing.T) {
	svc := newAccountService()
	ctx := context.Background()

	for name, input := range map[string]AccountInput{
		"no username":    {Email: "a@example.com", Password: "password1"},
		"bad email":      {Username: "a", Email: "not-an-email", Password: "password1"},
		"short password": {Username: "a", Email: "a@example.com", Password: "short"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, input)
			assertCode(t, err, apperrors.CodeInvalidArgument)
		})
	}
}

func TestNotificationService_AuditsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-1",
		Type:     events.EventStaffJoined,
		TicketID: 3,
		Actor:    events.Actor{Role: domain.SenderRoleAdmin, ID: 9},
		Payload:  events.StaffJoinedPayload{AdminID: 9, Auto: true},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("ticket event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "staff_joined", fields["event"])
	assert.Equal(t, int64(3), fields["ticket_id"])
	assert.Equal(t, true, fields["auto"])
}

func TestNotificationService_StubsLogOnlyWhenConfigured(t *testing.T) {
	event := events.Event{ID: "evt-2", Type: events.EventTicketClosed, TicketID: 4}

	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), event))
	assert.Zero(t, logs.FilterMessage("email notification stub").Len())
	assert.Zero(t, logs.FilterMessage("webhook notification stub").Len())

	core, logs = observer.New(zapcore.DebugLevel)
	dispatcher = events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "support@example.com",
		WebhookURL: "https://hooks.example.com/helpdesk",
	}).RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), event))
	assert.Equal(t, 1, logs.FilterMessage("email notification stub").Len())
	assert.Equal(t, 1, logs.FilterMessage("webhook notification stub").Len())
	assert.Zero(t, logs.FilterMessageSnippet("queued").Len())
}
