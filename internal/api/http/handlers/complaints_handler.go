package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ComplaintsHandler exposes the complaint lifecycle over HTTP.
type ComplaintsHandler struct {
	intake     *service.IntakeService
	lifecycle  *service.LifecycleService
	assignment *service.AssignmentService
	now        func() time.Time
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(intake *service.IntakeService, lifecycle *service.LifecycleService, assignment *service.AssignmentService) *ComplaintsHandler {
	return &ComplaintsHandler{intake: intake, lifecycle: lifecycle, assignment: assignment, now: time.Now}
}

// Submit POST /complaints.
func (h *ComplaintsHandler) Submit(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.SubmitComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.intake.Submit(c.UserContext(), actor, service.SubmitInput{
		Title:         req.Title,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Priority:      req.Priority,
		ContactMethod: req.ContactMethod,
		Attachments:   req.AttachmentReferences(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

// Get GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	complaint, err := h.lifecycle.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

// UpdateStatus POST /complaints/:id/status.
func (h *ComplaintsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	complaint, err := h.lifecycle.Transition(c.UserContext(), c.Params("id"), req.Status, actor, strings.TrimSpace(req.Remarks))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

// Escalate POST /complaints/:id/escalate.
func (h *ComplaintsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.lifecycle.Escalate(c.UserContext(), c.Params("id"), strings.TrimSpace(req.Reason), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

// Assign POST /complaints/:id/assign.
func (h *ComplaintsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError(`staffId required ("auto" lets the service choose)`, nil)
	}
	complaint, err := h.assignment.Assign(c.UserContext(), c.Params("id"), req.StaffID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

// Unassign DELETE /complaints/:id/assignee.
func (h *ComplaintsHandler) Unassign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	complaint, err := h.assignment.Unassign(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint, h.now())})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthenticated("authentication required")
	}
	return actor, nil
}
