package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// IntakeService records new complaints and fixes their deadline.
type IntakeService struct {
	complaints repository.ComplaintRepository
	categories repository.CategoryRepository
	deadlines  domain.DeadlinePolicy
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// IntakeDependencies bundles collaborators for intake.
type IntakeDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	CategoryRepo  repository.CategoryRepository
	Deadlines     domain.DeadlinePolicy
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// SubmitInput describes complaint creation payload.
type SubmitInput struct {
	Title         string
	Description   string
	CategoryID    string
	Priority      domain.ComplaintPriority
	ContactMethod string
	Attachments   []domain.AttachmentReference
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	deadlines := deps.Deadlines
	if deadlines.Multipliers == nil {
		deadlines = domain.NewDeadlinePolicy(nil)
	}
	return &IntakeService{
		complaints: deps.ComplaintRepo,
		categories: deps.CategoryRepo,
		deadlines:  deadlines,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Submit creates a complaint in the submitted state on behalf of actor.
func (s *IntakeService) Submit(ctx context.Context, actor domain.Actor, input SubmitInput) (*domain.Complaint, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if input.CategoryID == "" {
		details["categoryId"] = "required"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		details["priority"] = "must be one of low, medium, high, urgent"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid complaint", details)
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	complaint := &domain.Complaint{
		ID:            uuid.NewString(),
		TicketID:      generateTicketID(),
		Title:         title,
		Description:   description,
		CategoryID:    category.ID,
		Priority:      priority,
		SubmittedBy:   actor.ID,
		ContactMethod: strings.TrimSpace(input.ContactMethod),
		Deadline:      s.deadlines.Deadline(now, category.ResolutionTimeHours, priority),
		Attachments:   input.Attachments,
		CreatedAt:     now,
	}
	entry := domain.StatusHistoryEntry{
		Status:    domain.StatusSubmitted,
		Timestamp: now,
		UpdatedBy: actor.ID,
		Event:     domain.HistorySubmission,
	}
	complaint.AppendHistory(entry)

	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("complaint submitted",
		zap.String("complaint_id", complaint.ID),
		zap.String("ticket_id", complaint.TicketID),
		zap.String("category_id", complaint.CategoryID),
		zap.Time("deadline", complaint.Deadline))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, statusUpdateEvent(complaint, "", entry))
	}
	return complaint, nil
}

func generateTicketID() string {
	return "CMP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
