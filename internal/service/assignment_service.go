package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// AutoAssign asks the policy to pick the least loaded eligible staff member.
const AutoAssign = "auto"

// AssignmentService handles complaint assignment operations.
type AssignmentService struct {
	complaints repository.ComplaintRepository
	staff      repository.StaffRepository
	categories repository.CategoryRepository
	lifecycle  *LifecycleService
	dispatcher events.Dispatcher
	capacity   config.AssignmentConfig
	weights    map[domain.ComplaintPriority]float64
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	CategoryRepo  repository.CategoryRepository
	Lifecycle     *LifecycleService
	Dispatcher    events.Dispatcher
	Capacity      config.AssignmentConfig
	Logger        *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		complaints: deps.ComplaintRepo,
		staff:      deps.StaffRepo,
		categories: deps.CategoryRepo,
		lifecycle:  deps.Lifecycle,
		dispatcher: deps.Dispatcher,
		capacity:   deps.Capacity,
		weights:    domain.DefaultPriorityWeights,
		logger:     logger,
	}
}

// Workloads ranks every active staff-role member of the category's
// department, most available first. Counts are read fresh on every call.
func (s *AssignmentService) Workloads(ctx context.Context, categoryID string) ([]domain.StaffWorkload, error) {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": categoryID})
		}
		return nil, apperrors.MapError(err)
	}

	role := domain.RoleStaff
	staffList, err := s.staff.List(ctx, repository.StaffFilter{
		Role:       &role,
		Department: &category.Department,
		Active:     ptrBool(true),
		Limit:      1000,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(staffList) == 0 {
		return []domain.StaffWorkload{}, nil
	}

	ids := make([]string, len(staffList))
	for i, member := range staffList {
		ids[i] = member.ID
	}
	open, err := s.complaints.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	capacity := s.capacity.CapacityFor(category.Department)
	workloads := make([]domain.StaffWorkload, 0, len(staffList))
	for _, member := range staffList {
		if !eligible(member, category.Department) {
			continue
		}
		workloads = append(workloads, domain.NewStaffWorkload(member, open[member.ID], s.weights, capacity))
	}
	sort.SliceStable(workloads, func(i, j int) bool {
		return workloads[i].RankBefore(workloads[j])
	})
	return workloads, nil
}

// SelectCandidate returns the top ranked staff member for the category.
func (s *AssignmentService) SelectCandidate(ctx context.Context, categoryID string) (*domain.StaffWorkload, error) {
	workloads, err := s.Workloads(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if len(workloads) == 0 {
		return nil, apperrors.NewNoEligibleStaff("no active staff in the category's department",
			map[string]any{"category_id": categoryID})
	}
	best := workloads[0]
	return &best, nil
}

// Assign hands the complaint to staffID, or to the policy's pick when staffID
// is AutoAssign. Assigning an already assigned complaint records a
// reassignment and leaves the status unchanged.
func (s *AssignmentService) Assign(ctx context.Context, complaintID, staffID string, actor domain.Actor) (*domain.Complaint, error) {
	if !actor.CanAssign(staffID) {
		return nil, apperrors.NewUnauthorized("actor may not assign this complaint")
	}

	current, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, complaintError(err, complaintID)
	}

	assigneeID, err := s.resolveAssignee(ctx, current.CategoryID, staffID)
	if err != nil {
		return nil, err
	}

	var entry domain.StatusHistoryEntry
	before, updated, err := s.lifecycle.mutate(ctx, complaintID, func(c *domain.Complaint) error {
		if actor.IsStaff() && c.AssignedTo != nil && !c.IsAssignedTo(actor.ID) {
			return apperrors.NewUnauthorized("complaint is assigned to another staff member")
		}
		event := domain.HistoryStatusChange
		switch c.Status {
		case domain.StatusSubmitted:
		case domain.StatusAssigned:
			event = domain.HistoryReassignment
		default:
			return invalidTransition(c.Status, domain.StatusAssigned)
		}
		entry = domain.StatusHistoryEntry{
			Status:    domain.StatusAssigned,
			Timestamp: s.lifecycle.now(),
			UpdatedBy: actor.ID,
			Remarks:   "assigned to " + assigneeID,
			Event:     event,
		}
		c.AssignedTo = &assigneeID
		c.AppendHistory(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint assigned",
		zap.String("complaint_id", complaintID),
		zap.String("assignee", assigneeID),
		zap.String("actor", actor.ID),
		zap.Bool("reassignment", entry.Event == domain.HistoryReassignment))
	if before.Status != updated.Status {
		s.lifecycle.publish(ctx, statusUpdateEvent(updated, before.Status, entry))
	}
	s.lifecycle.publish(ctx, assignmentEvent(updated, before.AssignedTo, entry.Timestamp))
	return updated, nil
}

// Unassign releases a complaint that has not been started and returns it to
// submitted.
func (s *AssignmentService) Unassign(ctx context.Context, complaintID string, actor domain.Actor) (*domain.Complaint, error) {
	var entry domain.StatusHistoryEntry
	before, updated, err := s.lifecycle.mutate(ctx, complaintID, func(c *domain.Complaint) error {
		if !actor.CanUnassign(c) {
			return apperrors.NewUnauthorized("only the assignee or an administrator may unassign this complaint")
		}
		switch c.Status {
		case domain.StatusAssigned:
		case domain.StatusSubmitted:
			return invalidTransition(c.Status, domain.StatusSubmitted)
		default:
			return apperrors.NewCannotUnassign(string(c.Status))
		}
		entry = domain.StatusHistoryEntry{
			Status:    domain.StatusSubmitted,
			Timestamp: s.lifecycle.now(),
			UpdatedBy: actor.ID,
			Event:     domain.HistoryUnassignment,
		}
		c.AssignedTo = nil
		c.AppendHistory(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint unassigned",
		zap.String("complaint_id", complaintID),
		zap.String("actor", actor.ID))
	s.lifecycle.publish(ctx, statusUpdateEvent(updated, before.Status, entry))
	s.lifecycle.publish(ctx, assignmentEvent(updated, before.AssignedTo, entry.Timestamp))
	return updated, nil
}

func (s *AssignmentService) resolveAssignee(ctx context.Context, categoryID, staffID string) (string, error) {
	if staffID == AutoAssign {
		candidate, err := s.SelectCandidate(ctx, categoryID)
		if err != nil {
			return "", err
		}
		return candidate.StaffID, nil
	}

	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return "", apperrors.MapError(err)
	}
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("category", map[string]any{"category_id": categoryID})
		}
		return "", apperrors.MapError(err)
	}
	if !eligible(*member, category.Department) {
		return "", apperrors.NewNoEligibleStaff("not an active staff member of the category's department",
			map[string]any{"staff_id": staffID, "department": category.Department})
	}
	return member.ID, nil
}

// eligible reports whether member may hold complaints of department.
func eligible(member domain.StaffMember, department string) bool {
	return member.Role == domain.RoleStaff && member.Active && member.Department == department
}

func ptrBool(v bool) *bool {
	return &v
}
