package middleware

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"backend-loket/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthAndRole(t *testing.T) {
	tokens := config.NewTokenIssuer("rahasia")
	app := fiber.New()
	app.Get("/admin", JWTAuth(tokens), RoleAuth("super_user"), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("email").(string))
	})
	app.Get("/me", JWTAuth(tokens), func(c *fiber.Ctx) error {
		id, ok := c.Locals("counter_id").(int64)
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(fiber.Map{"counter_id": id})
	})

	admin, err := tokens.GenerateToken(1, "Admin", "admin@loket.id", "super_user", nil)
	require.NoError(t, err)
	counterID := int64(2)
	staff, err := tokens.GenerateToken(2, "Sari", "sari@loket.id", "counter", &counterID)
	require.NoError(t, err)

	cases := []struct {
		path, auth string
		want       int
	}{
		{"/admin", "", fiber.StatusUnauthorized},
		{"/admin", "Token " + admin, fiber.StatusUnauthorized},
		{"/admin", "Bearer nope", fiber.StatusUnauthorized},
		{"/admin", "Bearer " + staff, fiber.StatusForbidden},
		{"/admin", "Bearer " + admin, fiber.StatusOK},
		{"/me", "Bearer " + staff, fiber.StatusOK},
		{"/me", "Bearer " + admin, fiber.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", tc.path, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "%s %q", tc.path, tc.auth)
	}
}

func TestBasicAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/kiosk", BasicAuth("kiosk", "secret"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	basic := func(u, p string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(u+":"+p))
	}
	for auth, want := range map[string]int{
		"":                       fiber.StatusUnauthorized,
		basic("kiosk", "salah"):  fiber.StatusUnauthorized,
		basic("kiosk", "secret"): fiber.StatusOK,
	} {
		req := httptest.NewRequest("GET", "/kiosk", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode)
	}
}

func TestBasicAuthDisabledWithoutUser(t *testing.T) {
	app := fiber.New()
	app.Get("/kiosk", BasicAuth("", ""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/kiosk", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
