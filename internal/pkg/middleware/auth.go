package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

// RequireAPIAuth ensures an authenticated identity and returns JSON 401 otherwise.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}
