// handlers/auth.go
package handlers

import (
	"github.com/AleksanderGPL/pao/services"
	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService) {
	app.Post("/api/auth/register", authService.Register)
}
