package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/events"
)

// Conn is one live client connection. Send must be safe for concurrent use.
type Conn interface {
	ID() string
	UserID() string
	Send(envelope events.Envelope) error
}

// Hub owns the connection registry: user to connections and complaint room
// to connections. The maps never leave the hub.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	users  map[string]map[string]Conn
	rooms  map[string]map[string]Conn
	joined map[string]map[string]struct{}
	logger *zap.Logger
}

// Stats summarizes the registry.
type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// NewHub creates an empty registry.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:  make(map[string]Conn),
		users:  make(map[string]map[string]Conn),
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
		logger: logger,
	}
}

// Register adds conn to its user's channel.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
	addMember(h.users, conn.UserID(), conn)
	if h.joined[conn.ID()] == nil {
		h.joined[conn.ID()] = make(map[string]struct{})
	}
}

// Unregister removes conn from every room and from the user registry.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := conn.ID()
	for room := range h.joined[id] {
		removeMember(h.rooms, room, id)
	}
	delete(h.joined, id)
	removeMember(h.users, conn.UserID(), id)
	delete(h.conns, id)
}

// Join subscribes a registered conn to a complaint room. Joining twice is a
// no-op. It reports false for unknown connections.
func (h *Hub) Join(conn Conn, complaintID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[conn.ID()]
	if !ok {
		return false
	}
	rooms[complaintID] = struct{}{}
	addMember(h.rooms, complaintID, conn)
	return true
}

// Leave unsubscribes conn from a complaint room.
func (h *Hub) Leave(conn Conn, complaintID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.joined[conn.ID()]; ok {
		delete(rooms, complaintID)
	}
	removeMember(h.rooms, complaintID, conn.ID())
}

// Publish sends envelope to every connection in target and returns how many
// sends succeeded. An empty audience is not an error.
func (h *Hub) Publish(envelope events.Envelope, target events.Target) int {
	return h.Deliver(Delivery{Envelope: envelope, Target: target})
}

// Deliver sends a delivery to its audience, skipping the excluded user's
// connections. Sends happen outside the registry lock.
func (h *Hub) Deliver(d Delivery) int {
	recipients := h.audience(d.Target, d.ExcludeUser)
	delivered := 0
	for _, conn := range recipients {
		if err := conn.Send(d.Envelope); err != nil {
			h.logger.Debug("notification send failed",
				zap.String("conn_id", conn.ID()),
				zap.String("type", string(d.Envelope.Type)),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// TypingStart tells the room that actorID is typing.
func (h *Hub) TypingStart(complaintID, actorID string) int {
	return h.Deliver(TypingDelivery(complaintID, actorID, true))
}

// TypingStop tells the room that actorID stopped typing.
func (h *Hub) TypingStop(complaintID, actorID string) int {
	return h.Deliver(TypingDelivery(complaintID, actorID, false))
}

// InRoom reports whether conn has joined the complaint room.
func (h *Hub) InRoom(conn Conn, complaintID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joined[conn.ID()][complaintID]
	return ok
}

// Members returns the connection ids in a room.
func (h *Hub) Members(complaintID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[complaintID]))
	for id := range h.rooms[complaintID] {
		out = append(out, id)
	}
	return out
}

// Stats counts live connections, users with connections and non-empty rooms.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: len(h.conns), Users: len(h.users), Rooms: len(h.rooms)}
}

func (h *Hub) audience(target events.Target, excludeUser string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var members map[string]Conn
	switch target.Kind {
	case events.TargetRoom:
		members = h.rooms[target.Key]
	case events.TargetUser:
		members = h.users[target.Key]
	case events.TargetBroadcast:
		members = h.conns
	}
	out := make([]Conn, 0, len(members))
	for _, conn := range members {
		if excludeUser != "" && conn.UserID() == excludeUser {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// TypingDelivery builds the ephemeral typing indicator for a room.
func TypingDelivery(complaintID, actorID string, started bool) Delivery {
	eventType := events.EventUserStoppedTyping
	if started {
		eventType = events.EventUserTyping
	}
	return Delivery{
		Envelope: events.Envelope{
			Type:      eventType,
			Data:      map[string]any{"complaintId": complaintID, "userId": actorID},
			Timestamp: time.Now(),
			Severity:  events.SeverityInfo,
		},
		Target:      events.Room(complaintID),
		ExcludeUser: actorID,
	}
}

func addMember(index map[string]map[string]Conn, key string, conn Conn) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]Conn)
		index[key] = set
	}
	set[conn.ID()] = conn
}

func removeMember(index map[string]map[string]Conn, key, connID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(index, key)
	}
}
