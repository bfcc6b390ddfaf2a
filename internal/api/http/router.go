package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Admin          *handlers.AdminHandler
	Realtime       *handlers.RealtimeHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	complaints := app.Group("/complaints", cfg.AuthMiddleware.Handle)
	complaints.Post("/", cfg.Complaints.Submit)
	complaints.Get("/:id", cfg.Complaints.Get)
	complaints.Post("/:id/status", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Complaints.UpdateStatus)
	complaints.Post("/:id/escalate", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Complaints.Escalate)
	complaints.Post("/:id/assign", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Complaints.Assign)
	complaints.Delete("/:id/assignee", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Complaints.Unassign)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/workload", cfg.Admin.Workload)
	admin.Get("/scheduler", cfg.Admin.SchedulerStatus)
	admin.Post("/scheduler/run", cfg.Admin.RunScheduler)
	admin.Get("/metrics", cfg.Admin.Metrics)

	app.Get("/ws", cfg.AuthMiddleware.Handle, cfg.Realtime.Upgrade, cfg.Realtime.Serve())
}
