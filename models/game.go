// models/game.go
package models

import (
	"time"
)

type GameStatus string

const (
	GameStatusInactive GameStatus = "inactive"
	GameStatusActive   GameStatus = "active"
	GameStatusFinished GameStatus = "finished"
)

const (
	MinPlayers = 2
	MaxPlayers = 100
)

// Game is a single lobby/match. Status only ever moves forward:
// inactive -> active -> finished. Games are closed, never deleted.
type Game struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Code is the short join token shown to players. Stored uppercase,
	// matched case-insensitively.
	Code string `json:"code" gorm:"uniqueIndex;not null"`

	Name string `json:"name" gorm:"not null"`
	Slug string `json:"slug"`

	MaxPlayers int        `json:"max_players" gorm:"not null"`
	Status     GameStatus `json:"status" gorm:"type:varchar(16);default:'inactive'"`

	Players []Player `json:"players,omitempty" gorm:"foreignKey:GameID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
