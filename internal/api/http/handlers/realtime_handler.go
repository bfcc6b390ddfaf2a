package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const wsActorKey = "ws_actor"

// Client frame types.
const (
	MessageJoinComplaint  = "join_complaint"
	MessageLeaveComplaint = "leave_complaint"
	MessageTypingStart    = "typing_start"
	MessageTypingStop     = "typing_stop"
)

// RealtimeHandler upgrades authenticated requests to websocket connections
// and routes client frames into the hub.
type RealtimeHandler struct {
	hub          *realtime.Hub
	bus          realtime.Bus
	lifecycle    *service.LifecycleService
	logger       *zap.Logger
	writeTimeout time.Duration
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub *realtime.Hub, bus realtime.Bus, lifecycle *service.LifecycleService, logger *zap.Logger, writeTimeout time.Duration) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, bus: bus, lifecycle: lifecycle, logger: logger, writeTimeout: writeTimeout}
}

// Upgrade rejects plain HTTP requests and carries the actor into the connection.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	c.Locals(wsActorKey, actor)
	return c.Next()
}

// Serve returns the websocket endpoint handler.
func (h *RealtimeHandler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	actor, ok := conn.Locals(wsActorKey).(domain.Actor)
	if !ok {
		_ = conn.Close()
		return
	}
	client := &wsClient{id: uuid.NewString(), userID: actor.ID, conn: conn, writeTimeout: h.writeTimeout}
	h.hub.Register(client)
	h.logger.Debug("websocket connected", zap.String("conn_id", client.id), zap.String("user_id", actor.ID))
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
		h.logger.Debug("websocket disconnected", zap.String("conn_id", client.id))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg dto.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(client, errorEnvelope(apperrors.NewValidationError("malformed frame", nil)))
			continue
		}
		h.HandleMessage(context.Background(), client, actor, msg)
	}
}

// HandleMessage applies one client frame within the handler's write timeout.
// Failures are reported back to the sending connection only.
func (h *RealtimeHandler) HandleMessage(ctx context.Context, conn realtime.Conn, actor domain.Actor, msg dto.ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, h.frameTimeout())
	defer cancel()

	if msg.ComplaintID == "" {
		h.reply(conn, errorEnvelope(apperrors.NewValidationError("complaintId required", nil)))
		return
	}
	switch msg.Type {
	case MessageJoinComplaint:
		if _, err := h.lifecycle.Get(ctx, actor, msg.ComplaintID); err != nil {
			h.reply(conn, errorEnvelope(err))
			return
		}
		if !h.hub.Join(conn, msg.ComplaintID) {
			h.reply(conn, errorEnvelope(apperrors.NewConflict("connection not registered", nil)))
			return
		}
		h.reply(conn, events.Envelope{
			Type:      events.EventJoined,
			Data:      map[string]any{"complaintId": msg.ComplaintID},
			Timestamp: time.Now(),
			Severity:  events.SeverityInfo,
		})
	case MessageLeaveComplaint:
		h.hub.Leave(conn, msg.ComplaintID)
	case MessageTypingStart, MessageTypingStop:
		if !h.hub.InRoom(conn, msg.ComplaintID) {
			h.reply(conn, errorEnvelope(apperrors.NewUnauthorized("join the complaint before typing")))
			return
		}
		delivery := realtime.TypingDelivery(msg.ComplaintID, actor.ID, msg.Type == MessageTypingStart)
		if err := h.bus.Deliver(ctx, delivery); err != nil {
			h.logger.Warn("typing indicator delivery failed", zap.String("complaint_id", msg.ComplaintID), zap.Error(err))
		}
	default:
		h.reply(conn, errorEnvelope(apperrors.NewValidationError("unknown message type", map[string]any{"type": msg.Type})))
	}
}

func (h *RealtimeHandler) frameTimeout() time.Duration {
	if h.writeTimeout > 0 {
		return h.writeTimeout
	}
	return 5 * time.Second
}

func (h *RealtimeHandler) reply(conn realtime.Conn, envelope events.Envelope) {
	if err := conn.Send(envelope); err != nil {
		h.logger.Debug("websocket reply failed", zap.String("conn_id", conn.ID()), zap.Error(err))
	}
}

func errorEnvelope(err error) events.Envelope {
	domainErr := apperrors.ToDomainError(err)
	return events.Envelope{
		Type:      events.EventError,
		Title:     domainErr.Code,
		Message:   domainErr.Message,
		Data:      map[string]any{"code": domainErr.Code},
		Timestamp: time.Now(),
		Severity:  events.SeverityError,
	}
}

// wsClient serializes writes to one websocket connection.
type wsClient struct {
	id           string
	userID       string
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsClient) ID() string     { return c.id }
func (c *wsClient) UserID() string { return c.userID }

func (c *wsClient) Send(envelope events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(envelope)
}
