package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/worker"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// Scheduler is the part of the escalation scheduler exposed to operators.
type Scheduler interface {
	Status() worker.SchedulerStatus
	RunCycle(ctx context.Context) (worker.CycleStats, error)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	assignment *service.AssignmentService
	scheduler  Scheduler
	metrics    *observability.Metrics
	hub        *realtime.Hub
}

// NewAdminHandler constructs handler.
func NewAdminHandler(assignment *service.AssignmentService, scheduler Scheduler, metrics *observability.Metrics, hub *realtime.Hub) *AdminHandler {
	return &AdminHandler{assignment: assignment, scheduler: scheduler, metrics: metrics, hub: hub}
}

// Workload GET /admin/workload?categoryId=.
func (h *AdminHandler) Workload(c *fiber.Ctx) error {
	categoryID := c.Query("categoryId")
	if categoryID == "" {
		return apperrors.NewValidationError("categoryId required", nil)
	}
	workloads, err := h.assignment.Workloads(c.UserContext(), categoryID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workloads})
}

// SchedulerStatus GET /admin/scheduler.
func (h *AdminHandler) SchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.scheduler.Status()})
}

// RunScheduler POST /admin/scheduler/run triggers one cycle now.
func (h *AdminHandler) RunScheduler(c *fiber.Ctx) error {
	stats, err := h.scheduler.RunCycle(c.UserContext())
	if err != nil {
		if errors.Is(err, worker.ErrCycleInProgress) || errors.Is(err, worker.ErrCycleLocked) {
			return apperrors.NewConflict(err.Error(), nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"counters": h.metrics.Snapshot(),
		"realtime": h.hub.Stats(),
	}})
}
