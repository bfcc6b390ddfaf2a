package service

import (
	"fmt"
	"math"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
)

func statusSeverity(status domain.ComplaintStatus) events.Severity {
	switch status {
	case domain.StatusResolved:
		return events.SeveritySuccess
	case domain.StatusEscalated:
		return events.SeverityWarning
	default:
		return events.SeverityInfo
	}
}

func statusUpdateEvent(c *domain.Complaint, previous domain.ComplaintStatus, entry domain.StatusHistoryEntry) events.Event {
	return events.NewEvent(c.ID, events.Envelope{
		Type:    events.EventStatusUpdate,
		Title:   "Complaint status updated",
		Message: fmt.Sprintf("Complaint %s is now %s", c.TicketID, c.Status),
		Data: map[string]any{
			"complaintId":    c.ID,
			"ticketId":       c.TicketID,
			"status":         c.Status,
			"previousStatus": previous,
			"updatedBy":      entry.UpdatedBy,
			"remarks":        entry.Remarks,
			"event":          entry.Event,
		},
		Timestamp: entry.Timestamp,
		Severity:  statusSeverity(c.Status),
	}, events.Room(c.ID), events.User(c.SubmittedBy))
}

func assignmentEvent(c *domain.Complaint, previousAssignee *string, at time.Time) events.Event {
	assignee := ""
	if c.AssignedTo != nil {
		assignee = *c.AssignedTo
	}
	previous := ""
	if previousAssignee != nil {
		previous = *previousAssignee
	}
	message := fmt.Sprintf("Complaint %s was assigned to %s", c.TicketID, assignee)
	if assignee == "" {
		message = fmt.Sprintf("Complaint %s was returned to the queue", c.TicketID)
	}
	return events.NewEvent(c.ID, events.Envelope{
		Type:    events.EventStaffAssignment,
		Title:   "Complaint assignment changed",
		Message: message,
		Data: map[string]any{
			"complaintId":      c.ID,
			"ticketId":         c.TicketID,
			"assignedTo":       assignee,
			"previousAssignee": previous,
			"reassignment":     previous != "" && assignee != "",
		},
		Timestamp: at,
		Severity:  events.SeverityInfo,
	}, events.User(assignee), events.User(previous), events.User(c.SubmittedBy), events.Room(c.ID))
}

func escalationEvent(c *domain.Complaint, ev domain.EscalationEvent, at time.Time) events.Event {
	data := map[string]any{
		"complaintId": c.ID,
		"ticketId":    c.TicketID,
		"reason":      ev.Reason,
		"escalatedBy": c.Escalation.EscalatedBy,
	}
	if ev.Overdue > 0 {
		data["overdueMinutes"] = int(ev.Overdue.Minutes())
	}
	targets := []events.Target{events.Room(c.ID), events.User(c.SubmittedBy)}
	if ev.PreviousAssignee != nil {
		data["previousAssignee"] = *ev.PreviousAssignee
		targets = append(targets, events.User(*ev.PreviousAssignee))
	}
	return events.NewEvent(c.ID, events.Envelope{
		Type:      events.EventEscalation,
		Title:     "Complaint escalated",
		Message:   fmt.Sprintf("Complaint %s was escalated: %s", c.TicketID, ev.Reason),
		Data:      data,
		Timestamp: at,
		Severity:  events.SeverityUrgent,
	}, targets...)
}

// DeadlineReminderEvent announces that an open complaint is close to its
// deadline. It changes no state.
func DeadlineReminderEvent(c *domain.Complaint, risk domain.DeadlineRisk, at time.Time) events.Event {
	severity := events.SeverityWarning
	if risk.Tier == domain.RiskCritical {
		severity = events.SeverityError
	}
	hours := math.Round(risk.HoursUntilDeadline*10) / 10
	targets := []events.Target{events.Room(c.ID)}
	if c.AssignedTo != nil {
		targets = append(targets, events.User(*c.AssignedTo))
	}
	return events.NewEvent(c.ID, events.Envelope{
		Type:    events.EventDeadlineReminder,
		Title:   "Deadline approaching",
		Message: fmt.Sprintf("Complaint %s is due in %.1f hours", c.TicketID, hours),
		Data: map[string]any{
			"complaintId":        c.ID,
			"ticketId":           c.TicketID,
			"deadline":           c.Deadline,
			"hoursUntilDeadline": hours,
			"riskTier":           risk.Tier,
		},
		Timestamp: at,
		Severity:  severity,
	}, targets...)
}
