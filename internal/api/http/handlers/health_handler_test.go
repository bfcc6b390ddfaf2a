package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/persistence"
)

func readiness(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/health/ready", h.Ready)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestReadyPingsConfiguredRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h := NewHealthHandler("complaint-service", "test", nil, &persistence.Redis{Client: client})

	status, body := readiness(t, h)
	require.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "in-memory", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])
}

func TestReadyFailsWhenConfiguredRedisIsDown(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()
	h := NewHealthHandler("complaint-service", "test", nil, &persistence.Redis{Client: client})

	status, body := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	e := body["error"].(map[string]any)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", e["code"])
	details := e["details"].(map[string]any)
	assert.Equal(t, "in-memory", details["postgres"])
	assert.NotEqual(t, "ok", details["redis"])
}
