package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the envelope type tag seen by clients.
type EventType string

const (
	EventStatusUpdate      EventType = "status_update"
	EventStaffAssignment   EventType = "staff_assignment"
	EventEscalation        EventType = "escalation"
	EventDeadlineReminder  EventType = "deadline_reminder"
	EventUserTyping        EventType = "user_typing"
	EventUserStoppedTyping EventType = "user_stopped_typing"
	EventJoined            EventType = "joined"
	EventError             EventType = "error"
)

// DispatchedTypes are the events produced by the lifecycle core and routed
// through the Dispatcher. Typing indicators bypass it.
var DispatchedTypes = []EventType{
	EventStatusUpdate,
	EventStaffAssignment,
	EventEscalation,
	EventDeadlineReminder,
}

// Severity tells clients how prominently to surface an envelope.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityUrgent  Severity = "urgent"
)

// Envelope is the wire-level notification payload.
type Envelope struct {
	Type      EventType      `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
}

// TargetKind selects a membership set in the fan-out router.
type TargetKind string

const (
	TargetRoom      TargetKind = "room"
	TargetUser      TargetKind = "user"
	TargetBroadcast TargetKind = "broadcast"
)

// Target addresses a room, a user or every connection.
type Target struct {
	Kind TargetKind `json:"kind"`
	Key  string     `json:"key,omitempty"`
}

// Room targets every connection joined to a complaint.
func Room(complaintID string) Target { return Target{Kind: TargetRoom, Key: complaintID} }

// User targets every connection of one identity.
func User(userID string) Target { return Target{Kind: TargetUser, Key: userID} }

// Broadcast targets all live connections.
func Broadcast() Target { return Target{Kind: TargetBroadcast} }

// Event is one envelope plus the audiences it should reach.
type Event struct {
	ID          string
	ComplaintID string
	Envelope    Envelope
	Targets     []Target
}

// NewEvent builds an event stamped with an id and the envelope timestamp.
func NewEvent(complaintID string, envelope Envelope, targets ...Target) Event {
	if envelope.Timestamp.IsZero() {
		envelope.Timestamp = time.Now()
	}
	if envelope.Data == nil {
		envelope.Data = map[string]any{}
	}
	if _, ok := envelope.Data["complaintId"]; !ok && complaintID != "" {
		envelope.Data["complaintId"] = complaintID
	}
	return Event{
		ID:          uuid.NewString(),
		ComplaintID: complaintID,
		Envelope:    envelope,
		Targets:     dedupeTargets(targets),
	}
}

func dedupeTargets(targets []Target) []Target {
	seen := make(map[Target]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Kind == TargetUser && t.Key == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
