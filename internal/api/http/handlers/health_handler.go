package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/complaint-service/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// dependencyCheck probes one backing service. A dependency that is not
// configured reports its in-process replacement instead of being pinged.
type dependencyCheck struct {
	name     string
	fallback string
	enabled  func() bool
	ping     func(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []dependencyCheck
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		checks: []dependencyCheck{
			{name: "postgres", fallback: "in-memory", enabled: postgres.Enabled, ping: postgres.Ping},
			{name: "redis", fallback: "in-process", enabled: redis.Enabled, ping: redis.Ping},
		},
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every configured dependency concurrently. Complaint routes
// keep working on the in-process fallbacks, so only a configured but
// unreachable dependency fails readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var (
		mu        sync.Mutex
		depStatus = fiber.Map{}
		ready     = true
	)
	var g errgroup.Group
	for _, check := range h.checks {
		check := check
		g.Go(func() error {
			status := check.fallback
			healthy := true
			if check.enabled() {
				status = "ok"
				if err := check.ping(ctx); err != nil {
					status, healthy = err.Error(), false
				}
			}
			mu.Lock()
			depStatus[check.name] = status
			ready = ready && healthy
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"service":      h.serviceName,
			"dependencies": depStatus,
		})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more configured dependencies are unreachable",
			"details": depStatus,
		},
	})
}
