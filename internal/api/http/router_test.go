package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/worker"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	logs   *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	complaints := repository.NewMemoryComplaintRepository()
	staff := repository.NewMemoryStaffRepository(
		domain.StaffMember{ID: "staff-1", Name: "Ada", Role: domain.RoleStaff, Department: "it", Active: true},
		domain.StaffMember{ID: "staff-2", Name: "Bo", Role: domain.RoleStaff, Department: "it", Active: true},
	)
	categories := repository.NewMemoryCategoryRepository(
		domain.Category{ID: "network", Name: "Network", Department: "it", ResolutionTimeHours: 48},
	)
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	hub := realtime.NewHub(logger)
	bus := realtime.NewLocalBus(hub)
	service.NewNotificationService(dispatcher, bus, logger).RegisterHandlers()

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: complaints,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		ComplaintRepo: complaints,
		StaffRepo:     staff,
		CategoryRepo:  categories,
		Lifecycle:     lifecycle,
		Dispatcher:    dispatcher,
		Capacity:      config.AssignmentConfig{DefaultCapacity: 20},
		Logger:        logger,
	})
	intake := service.NewIntakeService(service.IntakeDependencies{
		ComplaintRepo: complaints,
		CategoryRepo:  categories,
		Deadlines:     domain.NewDeadlinePolicy(nil),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	scheduler := worker.NewEscalationScheduler(worker.SchedulerDependencies{
		ComplaintRepo: complaints,
		Escalator:     lifecycle,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Config:        config.SchedulerConfig{IntervalSeconds: 60, LookaheadMinutes: 120, Concurrency: 2},
	})

	tokens := auth.NewTokenManager("test-secret", 15)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("complaint-service", "test", nil, nil),
		Complaints:     handlers.NewComplaintsHandler(intake, lifecycle, assignment),
		Admin:          handlers.NewAdminHandler(assignment, scheduler, metrics, hub),
		Realtime:       handlers.NewRealtimeHandler(hub, bus, lifecycle, logger, time.Second),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens, logs: logs}
}

func (s *testServer) token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(domain.Actor{ID: id, Role: role, Department: "it"})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return d
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthEndpointsReportInProcessDependencies(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "in-memory", deps["postgres"])
	assert.Equal(t, "in-process", deps["redis"])
}

func TestComplaintRoutesRequireAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/complaints/anything", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/complaints/anything", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, "user-1", domain.RoleUser)
	admin := s.token(t, "admin-1", domain.RoleAdmin)

	status, body := s.do(t, http.MethodPost, "/complaints", user, map[string]any{
		"title":       "VPN down",
		"description": "cannot reach the office network",
		"categoryId":  "network",
		"priority":    "high",
	})
	require.Equal(t, http.StatusCreated, status, body)
	created := data(t, body)
	id := created["id"].(string)
	assert.Equal(t, "submitted", created["status"])
	assert.Regexp(t, `^CMP-`, created["ticketId"])
	assert.NotNil(t, created["risk"])

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/assign", admin, map[string]any{"staffId": "auto"})
	require.Equal(t, http.StatusOK, status, body)
	assigned := data(t, body)
	assert.Equal(t, "assigned", assigned["status"])
	assignee := assigned["assignedTo"].(string)
	assert.Contains(t, []string{"staff-1", "staff-2"}, assignee)

	other := "staff-1"
	if assignee == other {
		other = "staff-2"
	}
	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/status", s.token(t, other, domain.RoleStaff),
		map[string]any{"status": "in-progress"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	staffToken := s.token(t, assignee, domain.RoleStaff)
	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/status", staffToken,
		map[string]any{"status": "in-progress", "remarks": "looking into it"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "in-progress", data(t, body)["status"])

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/status", staffToken, map[string]any{"status": "submitted"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = s.do(t, http.MethodDelete, "/complaints/"+id+"/assignee", admin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CANNOT_UNASSIGN", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/complaints/"+id+"/escalate", staffToken, map[string]any{"reason": "needs vendor"})
	require.Equal(t, http.StatusOK, status, body)
	escalated := data(t, body)
	assert.Equal(t, "escalated", escalated["status"])
	assert.Equal(t, true, escalated["escalation"].(map[string]any)["isEscalated"])

	status, body = s.do(t, http.MethodGet, "/complaints/"+id, user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data(t, body)["statusHistory"], 4)

	status, _ = s.do(t, http.MethodGet, "/complaints/"+id, s.token(t, "user-2", domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSubmitValidationDetails(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/complaints", s.token(t, "user-1", domain.RoleUser), map[string]any{"title": " "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "categoryId")
}

func TestUsersCannotChangeStatus(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/complaints/x/status", s.token(t, "user-1", domain.RoleUser),
		map[string]any{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestUnknownComplaintIsNotFound(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/complaints/missing", s.token(t, "admin-1", domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", domain.RoleAdmin)

	status, body := s.do(t, http.MethodGet, "/admin/workload", s.token(t, "staff-1", domain.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/admin/workload", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/admin/workload?categoryId=network", admin, nil)
	require.Equal(t, http.StatusOK, status)
	ranked := body["data"].([]any)
	require.Len(t, ranked, 2)
	assert.Equal(t, "staff-1", ranked[0].(map[string]any)["staffId"])

	status, body = s.do(t, http.MethodPost, "/admin/scheduler/run", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(0), data(t, body)["candidates"])

	status, body = s.do(t, http.MethodGet, "/admin/scheduler", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, data(t, body)["active"])
	assert.NotNil(t, data(t, body)["lastCycle"])

	status, body = s.do(t, http.MethodGet, "/admin/metrics", admin, nil)
	require.Equal(t, http.StatusOK, status)
	counters := data(t, body)["counters"].(map[string]any)
	assert.Equal(t, float64(1), counters["scheduler"].(map[string]any)["cycles"])
}

func TestUnknownRouteAndPlainWebsocketRequest(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, _ = s.do(t, http.MethodGet, "/ws", s.token(t, "user-1", domain.RoleUser), nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestRequestLogCarriesFinalStatus(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodGet, "/complaints/x", "", nil)

	entries := s.logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/complaints/x", fields["path"])
	assert.EqualValues(t, http.StatusUnauthorized, fields["status"])
}
