// handlers/ws.go
package handlers

import (
	"log"

	"github.com/AleksanderGPL/pao/middleware"
	"github.com/AleksanderGPL/pao/models"
	"github.com/AleksanderGPL/pao/realtime"
	"github.com/AleksanderGPL/pao/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupWebsocketRoutes registers the realtime endpoint. A connection must
// present a session token (header or ?token=) and a game code; it is only
// registered for fan-out once the token resolves to a member of that game.
func SetupWebsocketRoutes(app *fiber.App, authService *services.AuthService, gameService *services.GameService, registry *realtime.Registry) {
	app.Use("/api/game/:code/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/api/game/:code/ws", middleware.SessionAuth(authService),
		websocket.New(func(conn *websocket.Conn) {
			session := conn.Locals("session").(*models.UserSession)
			code := conn.Params("code")

			game, player, err := gameService.FindMembership(code, session.UserID)
			if err != nil {
				// Unresolvable identity: close without registering.
				log.Printf("[Realtime] Rejecting connection to game %s for user %d: %v",
					code, session.UserID, err)
				conn.Close()
				return
			}

			registry.Register(game.Code, player.ID, conn)
			defer registry.Unregister(game.Code, player.ID, conn)

			log.Printf("[Realtime] Player %d connected to game %s (%d connections)",
				player.ID, game.Code, registry.Count(game.Code))

			// Clients only listen on this socket; the read pump exists to
			// notice the transport dying so the registration is released.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}

			log.Printf("[Realtime] Player %d disconnected from game %s", player.ID, game.Code)
		}))
}
