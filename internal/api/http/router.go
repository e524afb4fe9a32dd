package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/api/ws"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Tickets   *handlers.TicketsHandler
	Accounts  *handlers.AccountsHandler
	WebSocket *ws.Handler
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Post("/users", cfg.Accounts.CreateUser)
	api.Post("/admins", cfg.Accounts.CreateAdmin)

	api.Get("/dashboard/tickets", cfg.Tickets.Dashboard)
	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:ticketId", cfg.Tickets.GetTicket)
	tickets.Patch("/:ticketId/join", cfg.Tickets.JoinTicket)
	tickets.Patch("/:ticketId/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:ticketId/messages", cfg.Tickets.PostMessage)

	if cfg.WebSocket != nil {
		app.Get("/ws", cfg.WebSocket.Upgrade, cfg.WebSocket.Serve())
	}
}
