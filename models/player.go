// models/player.go
package models

import (
	"time"
)

// Player is one user's membership in one game. A user joins a game at most
// once (unique (game_id, user_id)); exactly one player per game is created
// with IsHost = true and that flag never changes.
type Player struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	GameID uint `json:"game_id" gorm:"not null;uniqueIndex:idx_player_game_user"`
	UserID uint `json:"user_id" gorm:"uniqueIndex:idx_player_game_user"`

	User User `json:"user" gorm:"foreignKey:UserID"`

	IsHost    bool `json:"is_host" gorm:"not null;default:false"`
	IsAlive   bool `json:"is_alive" gorm:"not null;default:true"`
	KillCount int  `json:"kill_count" gorm:"not null;default:0"`

	// TargetID is nil exactly while the game is still in the lobby; once a
	// game starts every player gets a target and an alive player keeps a
	// non-nil target until the game ends (kills re-link, never clear).
	TargetID *uint `json:"target_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
