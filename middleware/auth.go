// middleware/auth.go
package middleware

import (
	"log"

	"github.com/AleksanderGPL/pao/services"
	"github.com/gofiber/fiber/v2"
)

// SessionAuth resolves the caller's bearer token to a session and stores it
// in c.Locals("session"). The token comes from the Authorization header, or
// from the "token" query parameter for websocket upgrades (browsers cannot
// set headers on a websocket handshake).
func SessionAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session token missing"})
		}

		session, err := auth.ResolveToken(token)
		if err != nil {
			log.Printf("[Auth] Token resolution failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
		if session == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "incorrect session token"})
		}

		c.Locals("session", session)

		return c.Next()
	}
}
