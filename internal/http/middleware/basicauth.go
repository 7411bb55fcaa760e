package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

// BasicAuth - untuk mesin kiosk ambil antrian, bukan akun petugas
func BasicAuth(user, pass string) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			user: pass,
		},
		Authorizer: func(u, p string) bool {
			return user != "" && u == user && p == pass
		},
		Unauthorized: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "unauthorized",
			})
		},
	})
}
