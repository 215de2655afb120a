// models/event.go
package models

import "encoding/json"

// Realtime event types published on a game's channel. Everything except
// EventPlayerTargetAssigned is broadcast to the whole game; target
// assignments are a secret each player only learns for themselves.
const (
	EventPlayerJoin           = "player_join"
	EventStartGame            = "start_game"
	EventPlayerTargetAssigned = "player_target_assigned"
	EventPlayerKill           = "player_kill"
	EventGameEnded            = "game_ended"
)

// Event is the wire envelope for every realtime message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// RawEvent is the subscriber-side view of an Event, with the payload left
// undecoded so the relay can forward broadcast events byte-for-byte.
type RawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IsPlayerScoped reports whether an event type must only be delivered to
// the single player named in its payload.
func IsPlayerScoped(eventType string) bool {
	return eventType == EventPlayerTargetAssigned
}

type PlayerJoinData struct {
	PlayerID       uint   `json:"playerId"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
	IsHost         bool   `json:"isHost"`
}

type TargetAssignedData struct {
	PlayerID uint `json:"playerId"`
	TargetID uint `json:"targetId"`
}

type PlayerKillData struct {
	PlayerID uint `json:"playerId"`
	KilledBy uint `json:"killedBy"`
}

type GameEndedData struct {
	WinnerID uint `json:"winnerId"`
}
