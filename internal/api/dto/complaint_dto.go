package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// SubmitComplaintRequest payload.
type SubmitComplaintRequest struct {
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	CategoryID    string                   `json:"categoryId"`
	Priority      domain.ComplaintPriority `json:"priority"`
	ContactMethod string                   `json:"contactMethod"`
	Attachments   []AttachmentResponse     `json:"attachments"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.ComplaintStatus `json:"status"`
	Remarks string                 `json:"remarks"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// AssignRequest payload. StaffID may be "auto".
type AssignRequest struct {
	StaffID string `json:"staffId"`
}

// ComplaintResponse provides full complaint info.
type ComplaintResponse struct {
	ID            string                   `json:"id"`
	TicketID      string                   `json:"ticketId"`
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	CategoryID    string                   `json:"categoryId"`
	Priority      domain.ComplaintPriority `json:"priority"`
	Status        domain.ComplaintStatus   `json:"status"`
	SubmittedBy   string                   `json:"submittedBy"`
	AssignedTo    *string                  `json:"assignedTo"`
	ContactMethod string                   `json:"contactMethod,omitempty"`
	Deadline      time.Time                `json:"deadline"`
	ResolvedAt    *time.Time               `json:"resolvedAt"`
	Escalation    domain.Escalation        `json:"escalation"`
	StatusHistory []HistoryEntryResponse   `json:"statusHistory"`
	Attachments   []AttachmentResponse     `json:"attachments"`
	Risk          *RiskResponse            `json:"risk,omitempty"`
	Version       int64                    `json:"version"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	Status    domain.ComplaintStatus `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	UpdatedBy string                 `json:"updatedBy"`
	Remarks   string                 `json:"remarks,omitempty"`
	Event     domain.HistoryEvent    `json:"event"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

// RiskResponse is the deadline assessment of an open complaint.
type RiskResponse struct {
	HoursUntilDeadline float64         `json:"hoursUntilDeadline"`
	Tier               domain.RiskTier `json:"tier"`
	Overdue            bool            `json:"overdue"`
}

// NewComplaintResponse maps a complaint; risk is only attached while the
// complaint can still breach its deadline.
func NewComplaintResponse(c *domain.Complaint, now time.Time) ComplaintResponse {
	history := make([]HistoryEntryResponse, 0, len(c.StatusHistory))
	for _, h := range c.StatusHistory {
		history = append(history, HistoryEntryResponse{
			Status:    h.Status,
			Timestamp: h.Timestamp,
			UpdatedBy: h.UpdatedBy,
			Remarks:   h.Remarks,
			Event:     h.Event,
		})
	}
	attachments := make([]AttachmentResponse, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		attachments = append(attachments, AttachmentResponse{ID: a.ID, FileName: a.FileName, MimeType: a.MimeType})
	}
	resp := ComplaintResponse{
		ID:            c.ID,
		TicketID:      c.TicketID,
		Title:         c.Title,
		Description:   c.Description,
		CategoryID:    c.CategoryID,
		Priority:      c.Priority,
		Status:        c.Status,
		SubmittedBy:   c.SubmittedBy,
		AssignedTo:    c.AssignedTo,
		ContactMethod: c.ContactMethod,
		Deadline:      c.Deadline,
		ResolvedAt:    c.ResolvedAt,
		Escalation:    c.Escalation,
		StatusHistory: history,
		Attachments:   attachments,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Status == domain.StatusSubmitted || c.Status.CanEscalateFrom() {
		risk := domain.AssessRisk(c, now)
		resp.Risk = &RiskResponse{
			HoursUntilDeadline: risk.HoursUntilDeadline,
			Tier:               risk.Tier,
			Overdue:            risk.Overdue,
		}
	}
	return resp
}

// AttachmentReferences converts request attachments to domain references.
func (r SubmitComplaintRequest) AttachmentReferences() []domain.AttachmentReference {
	if len(r.Attachments) == 0 {
		return nil
	}
	out := make([]domain.AttachmentReference, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		out = append(out, domain.AttachmentReference{ID: a.ID, FileName: a.FileName, MimeType: a.MimeType})
	}
	return out
}

// ClientMessage is a frame sent by a websocket client.
type ClientMessage struct {
	Type        string `json:"type"`
	ComplaintID string `json:"complaintId"`
}
