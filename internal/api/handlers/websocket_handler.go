package handlers

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/proxy"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// BackendDialer opens a connection to the inference backend.
type BackendDialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	Addr() string
}

type WebSocketHandler struct {
	ctx           context.Context
	dialer        BackendDialer
	journal       proxy.Journal
	maxFrameBytes uint64
}

// NewWebSocketHandler relays chat sessions until ctx ends. journal may be nil.
func NewWebSocketHandler(ctx context.Context, dialer BackendDialer, journal proxy.Journal, maxFrameBytes uint64) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:           ctx,
		dialer:        dialer,
		journal:       journal,
		maxFrameBytes: maxFrameBytes,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := uuid.NewString()
	log := logger.GetLogger().With(zap.String("session_id", sessionID))
	log.Info("WebSocket connection established")

	defer func() {
		c.Close()
		log.Info("WebSocket connection closed")
	}()

	backend, err := h.dialer.Dial(h.ctx)
	if err != nil {
		h.sendError(c, "backend unreachable", "Cannot connect to inference server at "+h.dialer.Addr())
		return
	}

	var observer proxy.Observer
	if h.journal != nil {
		observer = proxy.NewJournalObserver(h.journal, sessionID)
	}

	bridge := proxy.NewBridge(h.maxFrameBytes, observer)
	if err := bridge.Run(h.ctx, c, backend); err != nil {
		log.Error("Chat proxy failed", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg, detail string) {
	msg := map[string]interface{}{
		"error":   errorMsg,
		"message": detail,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send error to client", zap.Error(err))
	}
}
