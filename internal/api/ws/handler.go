package ws

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const localsAdminID = "ws_admin_id"

// Connector opens and tears down live connections.
type Connector interface {
	Router
	Connect(ctx context.Context, adminID *int64) (*realtime.Conn, error)
	Disconnect(conn *realtime.Conn)
}

var _ Connector = (*service.ChatService)(nil)

// Handler serves the websocket endpoint.
type Handler struct {
	chat         Connector
	logger       *zap.Logger
	metrics      *observability.Metrics
	writeTimeout time.Duration
}

// NewHandler constructs the websocket handler.
func NewHandler(chat Connector, cfg config.RealtimeConfig, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chat:         chat,
		logger:       logger.Named("ws"),
		metrics:      metrics,
		writeTimeout: cfg.WriteTimeout(),
	}
}

// Upgrade rejects plain HTTP requests and validates the optional admin_id
// query parameter before the handshake.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if raw := c.Query("admin_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return apperrors.NewInvalidArgument("admin_id must be a positive integer", nil)
		}
		c.Locals(localsAdminID, id)
	}
	return c.Next()
}

// Serve returns the fiber handler performing the upgrade.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Handler) serve(socket *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var adminID *int64
	if id, ok := socket.Locals(localsAdminID).(int64); ok {
		adminID = &id
	}
	conn, err := h.chat.Connect(ctx, adminID)
	if err != nil {
		h.rejectConnect(socket, err)
		return
	}
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	done := make(chan struct{})
	go h.writePump(socket, conn, done)

	session := NewSession(h.chat, conn, h.logger)
	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read failed", zap.String("conn_id", conn.ID()), zap.Error(err))
			}
			break
		}
		if err := session.Handle(ctx, raw); err != nil {
			h.logger.Warn("dropping connection", zap.String("conn_id", conn.ID()), zap.Error(err))
			break
		}
	}

	h.chat.Disconnect(conn)
	<-done
}

// writePump is the only writer on the socket once the connection is open.
func (h *Handler) writePump(socket *websocket.Conn, conn *realtime.Conn, done chan<- struct{}) {
	defer close(done)
	broken := false
	for frame := range conn.Outbound() {
		if broken {
			continue
		}
		_ = socket.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := socket.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("write failed", zap.String("conn_id", conn.ID()), zap.Error(err))
			broken = true
			// Unblocks the read loop, which then disconnects and closes Outbound.
			_ = socket.Close()
		}
	}
	if !broken {
		_ = socket.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		_ = socket.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = socket.Close()
	}
}

func (h *Handler) rejectConnect(socket *websocket.Conn, err error) {
	domainErr := apperrors.ToDomainError(err)
	frame, encErr := realtime.Encode("error", replyError{Code: domainErr.Code, Message: domainErr.Message})
	if encErr == nil {
		_ = socket.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		_ = socket.WriteMessage(websocket.TextMessage, frame)
	}
	_ = socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, domainErr.Code))
	_ = socket.Close()
}
