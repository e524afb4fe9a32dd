package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

func TestReadiness_MemoryModeWithoutRedis(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	pg, err := persistence.NewPostgres(context.Background(), cfg.Postgres, zap.NewNop())
	require.NoError(t, err)
	rdb := persistence.NewRedis(cfg.Redis, zap.NewNop())

	checks := readinessChecks(pg, rdb)
	assert.Empty(t, checks)

	app := fiber.New()
	health := handlers.NewHealthHandler("helpdesk-service", "test", checks)
	app.Get("/health/ready", health.Ready)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBuildRepositories_FallsBackToMemory(t *testing.T) {
	pg, err := persistence.NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)

	repos := buildRepositories(pg)
	assert.NotNil(t, repos.tickets)
	assert.NotNil(t, repos.messages)
	assert.NotNil(t, repos.users)
	assert.NotNil(t, repos.admins)
}
