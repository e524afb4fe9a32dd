package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics()
	rooms := realtime.NewRoomManager(nil, metrics)
	dispatcher := events.NewInMemoryDispatcher()
	realtime.NewFanout(rooms, nil).Register(dispatcher)
	locks := service.NewTicketLocks()

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets(), MessageRepo: store.Messages(), UserRepo: store.Users(), AdminRepo: store.Admins(),
		Rooms: rooms, Locks: locks, Dispatcher: dispatcher, Metrics: metrics,
	})
	chat := service.NewChatService(config.RealtimeConfig{}, service.ChatDependencies{
		TicketRepo: store.Tickets(), MessageRepo: store.Messages(), AdminRepo: store.Admins(),
		Rooms: rooms, Locks: locks, Dispatcher: dispatcher, Metrics: metrics,
	})
	accounts := service.NewAccountService(config.AccountsConfig{BcryptCost: bcrypt.MinCost}, store.Users(), store.Admins(), nil)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("helpdesk-service", "test", nil),
		Tickets:  handlers.NewTicketsHandler(tickets, chat),
		Accounts: handlers.NewAccountsHandler(accounts),
		Metrics:  metrics,
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, "POST", "/api/users", `{"username":"pat","email":"pat@example.com","password":"hunter22"}`)
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = call(t, app, "POST", "/api/admins", `{"username":"alice","email":"alice@example.com","password":"hunter22"}`)
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = call(t, app, "POST", "/api/admins", `{"username":"carol","email":"carol@example.com","password":"hunter22"}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, env := call(t, app, "POST", "/api/tickets", `{"user_id":1,"subject":"Login issue","message":"Cannot log in"}`)
	require.Equal(t, fiber.StatusCreated, status)
	var ticket struct {
		TicketID int64  `json:"ticket_id"`
		Status   string `json:"status"`
		AdminID  *int64 `json:"admin_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, int64(1), ticket.TicketID)
	assert.Equal(t, "ACTIVE", ticket.Status)
	assert.Nil(t, ticket.AdminID)

	status, env = call(t, app, "PATCH", "/api/tickets/1/join", `{"admin_id":1}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"assigned":true`)

	status, env = call(t, app, "PATCH", "/api/tickets/1/join", `{"admin_id":2}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"assigned":false`)

	status, _ = call(t, app, "POST", "/api/tickets/1/messages", `{"sender_id":1,"sender_type":"admin","message_text":"Looking now"}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, env = call(t, app, "PATCH", "/api/tickets/1/close", `{"admin_id":2}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = call(t, app, "PATCH", "/api/tickets/1/close", `{"admin_id":1}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"CLOSED"`)

	status, env = call(t, app, "POST", "/api/tickets/1/messages", `{"sender_id":1,"sender_type":"USER","message_text":"thanks"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "TICKET_CLOSED", env.Error.Code)

	status, env = call(t, app, "GET", "/api/tickets/1", "")
	require.Equal(t, fiber.StatusOK, status)
	var detail struct {
		Messages []struct {
			SenderType string `json:"sender_type"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "USER", detail.Messages[0].SenderType)
	assert.Equal(t, "ADMIN", detail.Messages[1].SenderType)

	status, env = call(t, app, "GET", "/api/dashboard/tickets", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"total":1`)

	status, env = call(t, app, "GET", "/api/tickets?status=closed", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"ticket_id":1`)
}

func TestErrorsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{"GET", "/api/tickets/abc", "", fiber.StatusBadRequest, "INVALID_ARGUMENT"},
		{"GET", "/api/tickets/42", "", fiber.StatusNotFound, "NOT_FOUND"},
		{"GET", "/api/tickets?status=PENDING", "", fiber.StatusBadRequest, "INVALID_ARGUMENT"},
		{"POST", "/api/tickets", `{"user_id":5,"subject":"x","message":"y"}`, fiber.StatusNotFound, "NOT_FOUND"},
		{"POST", "/api/tickets", `{"user_id":5`, fiber.StatusBadRequest, "INVALID_ARGUMENT"},
		{"PATCH", "/api/tickets/1/join", `{"admin_id":0}`, fiber.StatusBadRequest, "INVALID_ARGUMENT"},
		{"POST", "/api/tickets/1/messages", `{"ticket_id":2,"sender_id":1,"sender_type":"USER","message_text":"x"}`, fiber.StatusBadRequest, "INVALID_ARGUMENT"},
		{"GET", "/nope", "", fiber.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, env := call(t, app, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestOpsEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, "GET", "/health/live", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = call(t, app, "GET", "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "helpdesk_")
}
