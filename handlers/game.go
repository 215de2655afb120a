// handlers/game.go
package handlers

import (
	"github.com/AleksanderGPL/pao/middleware"
	"github.com/AleksanderGPL/pao/services"
	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, authService *services.AuthService, gameService *services.GameService) {
	api := app.Group("/api/game", middleware.SessionAuth(authService))

	api.Post("/", gameService.CreateGame)
	api.Get("/:code", gameService.GetGame)
	api.Post("/:code/join", gameService.JoinGame)
	api.Post("/:code/start", gameService.StartGame)
	api.Post("/:code/shoot", gameService.Shoot)
}
