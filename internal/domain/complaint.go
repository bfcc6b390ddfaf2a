package domain

import "time"

// ComplaintPriority enumerates resolution urgency.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
	PriorityUrgent ComplaintPriority = "urgent"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []ComplaintPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p ComplaintPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// HistoryEvent distinguishes what produced a status history entry.
type HistoryEvent string

const (
	HistorySubmission   HistoryEvent = "submission"
	HistoryStatusChange HistoryEvent = "status_change"
	HistoryReassignment HistoryEvent = "reassignment"
	HistoryUnassignment HistoryEvent = "unassignment"
	HistoryEscalation   HistoryEvent = "escalation"
)

// StatusHistoryEntry is an immutable audit trail entry.
type StatusHistoryEntry struct {
	Status    ComplaintStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	UpdatedBy string          `json:"updatedBy"`
	Remarks   string          `json:"remarks,omitempty"`
	Event     HistoryEvent    `json:"event"`
}

// Escalation records the one-time escalation of a complaint.
type Escalation struct {
	IsEscalated bool       `json:"isEscalated"`
	EscalatedAt *time.Time `json:"escalatedAt,omitempty"`
	EscalatedBy string     `json:"escalatedBy,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// AttachmentReference points at a file owned by the upload service.
type AttachmentReference struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

// Complaint is the aggregate tracked from submission to closure.
type Complaint struct {
	ID            string
	TicketID      string
	Title         string
	Description   string
	CategoryID    string
	Priority      ComplaintPriority
	Status        ComplaintStatus
	SubmittedBy   string
	AssignedTo    *string
	ContactMethod string
	Deadline      time.Time
	ResolvedAt    *time.Time
	Escalation    Escalation
	StatusHistory []StatusHistoryEntry
	Attachments   []AttachmentReference
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so mutators never alias stored state.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	if c.AssignedTo != nil {
		assignee := *c.AssignedTo
		out.AssignedTo = &assignee
	}
	if c.ResolvedAt != nil {
		resolved := *c.ResolvedAt
		out.ResolvedAt = &resolved
	}
	if c.Escalation.EscalatedAt != nil {
		at := *c.Escalation.EscalatedAt
		out.Escalation.EscalatedAt = &at
	}
	out.StatusHistory = append([]StatusHistoryEntry(nil), c.StatusHistory...)
	out.Attachments = append([]AttachmentReference(nil), c.Attachments...)
	return &out
}

// IsAssignedTo reports whether staffID currently owns the complaint.
func (c *Complaint) IsAssignedTo(staffID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == staffID
}

// AppendHistory records a new entry and moves Status to match it.
func (c *Complaint) AppendHistory(entry StatusHistoryEntry) {
	c.StatusHistory = append(c.StatusHistory, entry)
	c.Status = entry.Status
	c.UpdatedAt = entry.Timestamp
}

// LastHistory returns the most recent history entry.
func (c *Complaint) LastHistory() (StatusHistoryEntry, bool) {
	if len(c.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	return c.StatusHistory[len(c.StatusHistory)-1], true
}

// EscalationEvent is produced by the scheduler for an overdue complaint.
type EscalationEvent struct {
	ComplaintID      string
	Overdue          time.Duration
	PreviousAssignee *string
	Reason           string
}
