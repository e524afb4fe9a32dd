package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cases := map[string]struct {
		checks map[string]Pinger
		status int
		body   string
	}{
		"no dependencies": {nil, fiber.StatusOK, `"status":"ready"`},
		"healthy redis": {
			map[string]Pinger{"redis": pingFunc(func(context.Context) error { return nil })},
			fiber.StatusOK, `"redis":"ok"`,
		},
		"redis down": {
			map[string]Pinger{"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") })},
			fiber.StatusServiceUnavailable, `DEPENDENCY_UNAVAILABLE`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ready", NewHealthHandler("helpdesk-service", "test", tc.checks).Ready)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Contains(t, string(body), tc.body)
		})
	}
}
