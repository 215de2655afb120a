// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Action failures surfaced to clients. Everything here is recovered at the
// handler boundary and mapped to an HTTP status; none of it should ever
// crash the process. Duplicate join is deliberately absent: joining a game
// twice returns the existing membership as a success.
var (
	ErrGameNotFound     = errors.New("game not found")
	ErrNotAMember       = errors.New("you are not a member of this game")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrNotYourTarget    = errors.New("that player is not your target")
	ErrGameFull         = errors.New("game is full")
	ErrGameNotInactive  = errors.New("game has already started")
	ErrGameNotActive    = errors.New("game is not active")
	ErrShooterDead      = errors.New("you have been eliminated")
	ErrTargetDead       = errors.New("target is already dead")
	ErrNotEnoughPlayers = errors.New("at least 2 players are required to start")
)

// StatusFor maps a service error onto its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrGameNotFound), errors.Is(err, ErrNotAMember):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrNotYourTarget):
		return fiber.StatusForbidden
	case errors.Is(err, ErrGameFull),
		errors.Is(err, ErrGameNotInactive),
		errors.Is(err, ErrGameNotActive),
		errors.Is(err, ErrShooterDead),
		errors.Is(err, ErrTargetDead):
		return fiber.StatusConflict
	case errors.Is(err, ErrNotEnoughPlayers):
		return fiber.StatusPreconditionFailed
	default:
		return fiber.StatusInternalServerError
	}
}

// apiError writes the standard JSON error body for a service error.
func apiError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
