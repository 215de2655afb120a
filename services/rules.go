// services/rules.go
package services

import (
	"github.com/AleksanderGPL/pao/models"
)

// State-machine checks, separated from the storage flow so they stay
// trivially testable. Every mutation in game_service.go runs the matching
// check first and re-validates anything racy with a conditional UPDATE.

// CanJoin reports whether a new player may join the game right now.
// A user who already holds a membership never reaches this check; duplicate
// joins short-circuit into an idempotent success.
func CanJoin(game *models.Game, playerCount int64) error {
	if game.Status != models.GameStatusInactive {
		return ErrGameNotInactive
	}
	if playerCount >= int64(game.MaxPlayers) {
		return ErrGameFull
	}
	return nil
}

// CanStart reports whether the acting player may start the game.
func CanStart(game *models.Game, actor *models.Player, playerCount int64) error {
	if !actor.IsHost {
		return ErrNotHost
	}
	if game.Status != models.GameStatusInactive {
		return ErrGameNotInactive
	}
	if playerCount < models.MinPlayers {
		return ErrNotEnoughPlayers
	}
	return nil
}

// CanShoot reports whether shooter may eliminate the player with targetID.
// The is-target-still-alive check here is advisory; the authoritative one
// is the conditional kill UPDATE.
func CanShoot(game *models.Game, shooter *models.Player, target *models.Player, targetID uint) error {
	if game.Status != models.GameStatusActive {
		return ErrGameNotActive
	}
	if !shooter.IsAlive {
		return ErrShooterDead
	}
	if shooter.TargetID == nil || *shooter.TargetID != targetID {
		return ErrNotYourTarget
	}
	if !target.IsAlive {
		return ErrTargetDead
	}
	return nil
}

// InheritedTarget implements the chain re-link rule: the shooter takes over
// the eliminated player's unreached target. A victim without a target
// (impossible once a game is active) leaves the shooter's chain untouched
// rather than failing the elimination.
func InheritedTarget(victim *models.Player) *uint {
	if victim.TargetID == nil {
		return nil
	}
	t := *victim.TargetID
	return &t
}
