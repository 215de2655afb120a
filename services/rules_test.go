package services

import (
	"errors"
	"testing"

	"github.com/AleksanderGPL/pao/models"
)

func uintPtr(v uint) *uint { return &v }

func TestCanJoin(t *testing.T) {
	tests := []struct {
		name        string
		status      models.GameStatus
		maxPlayers  int
		playerCount int64
		want        error
	}{
		{"open lobby with room", models.GameStatusInactive, 4, 2, nil},
		{"lobby at capacity", models.GameStatusInactive, 4, 4, ErrGameFull},
		{"lobby over capacity", models.GameStatusInactive, 4, 5, ErrGameFull},
		{"game already running", models.GameStatusActive, 4, 2, ErrGameNotInactive},
		{"game finished", models.GameStatusFinished, 4, 2, ErrGameNotInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &models.Game{Status: tt.status, MaxPlayers: tt.maxPlayers}
			if err := CanJoin(game, tt.playerCount); !errors.Is(err, tt.want) {
				t.Errorf("CanJoin() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanStart(t *testing.T) {
	tests := []struct {
		name        string
		status      models.GameStatus
		isHost      bool
		playerCount int64
		want        error
	}{
		{"host with enough players", models.GameStatusInactive, true, 2, nil},
		{"non-host", models.GameStatusInactive, false, 5, ErrNotHost},
		{"host alone", models.GameStatusInactive, true, 1, ErrNotEnoughPlayers},
		{"already active", models.GameStatusActive, true, 5, ErrGameNotInactive},
		{"already finished", models.GameStatusFinished, true, 5, ErrGameNotInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &models.Game{Status: tt.status}
			actor := &models.Player{IsHost: tt.isHost}
			if err := CanStart(game, actor, tt.playerCount); !errors.Is(err, tt.want) {
				t.Errorf("CanStart() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanShoot(t *testing.T) {
	activeGame := &models.Game{Status: models.GameStatusActive}

	tests := []struct {
		name     string
		game     *models.Game
		shooter  *models.Player
		target   *models.Player
		targetID uint
		want     error
	}{
		{
			"valid shot",
			activeGame,
			&models.Player{ID: 1, IsAlive: true, TargetID: uintPtr(2)},
			&models.Player{ID: 2, IsAlive: true},
			2,
			nil,
		},
		{
			"game not active",
			&models.Game{Status: models.GameStatusInactive},
			&models.Player{ID: 1, IsAlive: true, TargetID: uintPtr(2)},
			&models.Player{ID: 2, IsAlive: true},
			2,
			ErrGameNotActive,
		},
		{
			"shooter already dead",
			activeGame,
			&models.Player{ID: 1, IsAlive: false, TargetID: uintPtr(2)},
			&models.Player{ID: 2, IsAlive: true},
			2,
			ErrShooterDead,
		},
		{
			"wrong target",
			activeGame,
			&models.Player{ID: 1, IsAlive: true, TargetID: uintPtr(3)},
			&models.Player{ID: 2, IsAlive: true},
			2,
			ErrNotYourTarget,
		},
		{
			"no target assigned",
			activeGame,
			&models.Player{ID: 1, IsAlive: true, TargetID: nil},
			&models.Player{ID: 2, IsAlive: true},
			2,
			ErrNotYourTarget,
		},
		{
			"target already dead",
			activeGame,
			&models.Player{ID: 1, IsAlive: true, TargetID: uintPtr(2)},
			&models.Player{ID: 2, IsAlive: false},
			2,
			ErrTargetDead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanShoot(tt.game, tt.shooter, tt.target, tt.targetID); !errors.Is(err, tt.want) {
				t.Errorf("CanShoot() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInheritedTarget(t *testing.T) {
	victim := &models.Player{ID: 3, TargetID: uintPtr(9)}

	inherited := InheritedTarget(victim)
	if inherited == nil || *inherited != 9 {
		t.Fatalf("expected shooter to inherit target 9, got %v", inherited)
	}

	// Returned pointer must be a copy, not an alias into the victim row.
	*victim.TargetID = 99
	if *inherited != 9 {
		t.Error("inherited target aliases the victim's field")
	}
}

func TestInheritedTargetNilVictimTarget(t *testing.T) {
	if got := InheritedTarget(&models.Player{ID: 3}); got != nil {
		t.Errorf("expected nil for a victim without a target, got %v", *got)
	}
}

func TestStatusForCoversTaxonomy(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrGameNotFound, 404},
		{ErrNotAMember, 404},
		{ErrNotHost, 403},
		{ErrNotYourTarget, 403},
		{ErrGameFull, 409},
		{ErrGameNotInactive, 409},
		{ErrGameNotActive, 409},
		{ErrShooterDead, 409},
		{ErrTargetDead, 409},
		{ErrNotEnoughPlayers, 412},
		{errors.New("database exploded"), 500},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
