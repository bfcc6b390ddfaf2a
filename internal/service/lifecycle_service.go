package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ReasonDeadlineExceeded is recorded on automatic escalations.
const ReasonDeadlineExceeded = "deadline exceeded"

// LifecycleService applies status transitions and escalations. Every
// mutation of a complaint goes through mutate so that at most one change
// per complaint is in flight.
type LifecycleService struct {
	complaints repository.ComplaintRepository
	dispatcher events.Dispatcher
	locks      *keyedLocks
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleService{
		complaints: deps.ComplaintRepo,
		dispatcher: deps.Dispatcher,
		locks:      newKeyedLocks(),
		logger:     logger,
		now:        clock,
	}
}

// Get returns a complaint the actor is allowed to see.
func (s *LifecycleService) Get(ctx context.Context, actor domain.Actor, complaintID string) (*domain.Complaint, error) {
	c, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, complaintError(err, complaintID)
	}
	if !actor.CanView(c) {
		return nil, apperrors.NewUnauthorized("complaint belongs to another user")
	}
	return c, nil
}

// Transition moves a complaint to target on behalf of actor.
func (s *LifecycleService) Transition(ctx context.Context, complaintID string, target domain.ComplaintStatus, actor domain.Actor, remarks string) (*domain.Complaint, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}
	if target == domain.StatusEscalated {
		reason := remarks
		if reason == "" {
			reason = "escalated by " + actor.ID
		}
		updated, _, err := s.escalate(ctx, complaintID, actor, reason, 0)
		return updated, err
	}

	var entry domain.StatusHistoryEntry
	before, updated, err := s.mutate(ctx, complaintID, func(c *domain.Complaint) error {
		if !actor.CanTransition(c, target) {
			return apperrors.NewUnauthorized("only the assignee or an administrator may change this complaint")
		}
		if !domain.CanTransition(c.Status, target) {
			return invalidTransition(c.Status, target)
		}
		if target == domain.StatusAssigned && c.AssignedTo == nil {
			return apperrors.NewValidationError("complaint has no assignee; use the assign operation", nil)
		}
		now := s.now()
		entry = domain.StatusHistoryEntry{
			Status:    target,
			Timestamp: now,
			UpdatedBy: actor.ID,
			Remarks:   remarks,
			Event:     domain.HistoryStatusChange,
		}
		c.AppendHistory(entry)
		if target == domain.StatusResolved {
			c.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint status changed",
		zap.String("complaint_id", complaintID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(target)),
		zap.String("actor", actor.ID))
	s.publish(ctx, statusUpdateEvent(updated, before.Status, entry))
	return updated, nil
}

// Escalate raises a complaint from assigned or in-progress.
func (s *LifecycleService) Escalate(ctx context.Context, complaintID, reason string, actor domain.Actor) (*domain.Complaint, error) {
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason is required", nil)
	}
	updated, _, err := s.escalate(ctx, complaintID, actor, reason, 0)
	return updated, err
}

// EscalateOverdue escalates a complaint whose deadline has passed on behalf
// of the system actor.
func (s *LifecycleService) EscalateOverdue(ctx context.Context, complaintID string, overdue time.Duration) (*domain.Complaint, domain.EscalationEvent, error) {
	return s.escalate(ctx, complaintID, domain.SystemActor(), ReasonDeadlineExceeded, overdue)
}

func (s *LifecycleService) escalate(ctx context.Context, complaintID string, actor domain.Actor, reason string, overdue time.Duration) (*domain.Complaint, domain.EscalationEvent, error) {
	ev := domain.EscalationEvent{ComplaintID: complaintID, Overdue: overdue, Reason: reason}
	var entry domain.StatusHistoryEntry
	before, updated, err := s.mutate(ctx, complaintID, func(c *domain.Complaint) error {
		if !actor.CanEscalate(c) {
			return apperrors.NewUnauthorized("only the assignee or an administrator may escalate this complaint")
		}
		if !c.Status.CanEscalateFrom() {
			return invalidTransition(c.Status, domain.StatusEscalated)
		}
		if c.Escalation.IsEscalated {
			return apperrors.NewConflict("complaint already escalated", map[string]any{"complaint_id": c.ID})
		}
		now := s.now()
		c.Escalation = domain.Escalation{
			IsEscalated: true,
			EscalatedAt: &now,
			EscalatedBy: actor.ID,
			Reason:      reason,
		}
		entry = domain.StatusHistoryEntry{
			Status:    domain.StatusEscalated,
			Timestamp: now,
			UpdatedBy: actor.ID,
			Remarks:   reason,
			Event:     domain.HistoryEscalation,
		}
		c.AppendHistory(entry)
		return nil
	})
	if err != nil {
		return nil, ev, err
	}
	ev.PreviousAssignee = before.AssignedTo

	s.logger.Warn("complaint escalated",
		zap.String("complaint_id", complaintID),
		zap.String("from", string(before.Status)),
		zap.String("actor", actor.ID),
		zap.String("reason", reason),
		zap.Duration("overdue", overdue))
	s.publish(ctx, statusUpdateEvent(updated, before.Status, entry))
	s.publish(ctx, escalationEvent(updated, ev, entry.Timestamp))
	return updated, ev, nil
}

// mutate serializes changes to one complaint: a per-id try-lock rejects
// concurrent callers in this process, the store's version check rejects
// writers in other processes. It returns the state before and after.
func (s *LifecycleService) mutate(ctx context.Context, complaintID string, fn repository.Mutator) (*domain.Complaint, *domain.Complaint, error) {
	release, ok := s.locks.TryLock(complaintID)
	if !ok {
		return nil, nil, apperrors.NewConflict("complaint is being modified concurrently", map[string]any{"complaint_id": complaintID})
	}
	defer release()

	current, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, nil, complaintError(err, complaintID)
	}
	updated, err := s.complaints.CompareAndSwap(ctx, complaintID, current.Version, fn)
	if err != nil {
		return nil, nil, complaintError(err, complaintID)
	}
	return current, updated, nil
}

// publish runs only after the store committed; delivery failures are logged
// by the dispatcher and never reach the caller.
func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func complaintError(err error, complaintID string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("complaint", map[string]any{"complaint_id": complaintID})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("complaint was modified concurrently", map[string]any{"complaint_id": complaintID})
	default:
		return apperrors.MapError(err)
	}
}

// invalidTransition reports a rejected edge together with the states the
// complaint could legally move to.
func invalidTransition(from, to domain.ComplaintStatus) error {
	err := apperrors.ToDomainError(apperrors.NewInvalidTransition(string(from), string(to)))
	allowed := make([]string, 0, 2)
	for _, next := range domain.Successors(from) {
		allowed = append(allowed, string(next))
	}
	err.Details["allowed"] = allowed
	if from.IsTerminal() {
		err.Message = fmt.Sprintf("complaint is %s; no further changes are possible", from)
	}
	return err
}
