package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp() *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware("X-API-Key", []string{"k1", ""}, "/api/v1/health").Authenticate())
	app.Get("/api/v1/health", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/private", func(c fiber.Ctx) error { return c.SendString("secret") })
	return app
}

func TestAuthMiddleware_APIKey(t *testing.T) {
	app := newGuardedApp()

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"missing key", "/api/v1/private", "", fiber.StatusUnauthorized},
		{"unknown key", "/api/v1/private", "k2", fiber.StatusUnauthorized},
		{"valid key", "/api/v1/private", "k1", fiber.StatusOK},
		{"skipped path", "/api/v1/health", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/leads/:uuid", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/leads/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
