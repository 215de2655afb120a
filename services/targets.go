// services/targets.go
package services

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/AleksanderGPL/pao/models"
	"gorm.io/gorm"
)

// maxDerangementAttempts bounds the regenerate-on-failure loop. A uniform
// shuffle is a derangement with probability ~1/e, so even 8 attempts fail
// with probability below 1e-3 and 32 is unreachable in practice.
const maxDerangementAttempts = 32

var errDerangementFailed = errors.New("could not generate a derangement")

// Derange returns a target list aligned with ids such that the mapping
// ids[i] -> targets[i] is a bijection with no fixed point. The chain may
// split into multiple disjoint cycles; only self-targeting is forbidden.
func Derange(ids []uint) ([]uint, error) {
	n := len(ids)
	if n < models.MinPlayers {
		return nil, fmt.Errorf("need at least %d players, got %d", models.MinPlayers, n)
	}

	// n = 2 has exactly one valid derangement; the repair loop below would
	// still converge but there is nothing to randomize.
	if n == 2 {
		return []uint{ids[1], ids[0]}, nil
	}

	for attempt := 0; attempt < maxDerangementAttempts; attempt++ {
		targets := make([]uint, n)
		copy(targets, ids)

		rand.Shuffle(n, func(i, j int) {
			targets[i], targets[j] = targets[j], targets[i]
		})

		repairFixedPoints(ids, targets)

		if isDerangement(ids, targets) {
			return targets, nil
		}
	}

	return nil, errDerangementFailed
}

// repairFixedPoints swaps each self-match with a round-robin scanned
// position whose value is neither its own id nor the id being repaired, so
// the swap cannot introduce a new fixed point. If no such position exists
// the next index is used as a blind fallback; the caller re-verifies.
func repairFixedPoints(ids, targets []uint) {
	n := len(ids)

	for i := 0; i < n; i++ {
		if targets[i] != ids[i] {
			continue
		}

		swapped := false
		for j := (i + 1) % n; j != i; j = (j + 1) % n {
			if targets[j] != ids[j] && targets[j] != ids[i] {
				targets[i], targets[j] = targets[j], targets[i]
				swapped = true
				break
			}
		}

		if !swapped {
			next := (i + 1) % n
			targets[i], targets[next] = targets[next], targets[i]
		}
	}
}

func isDerangement(ids, targets []uint) bool {
	for i := range ids {
		if targets[i] == ids[i] {
			return false
		}
	}
	return true
}

// assignTargets computes and persists a fresh derangement over every player
// of the game, inside the caller's transaction. It returns the assignments
// for player-scoped event emission.
func assignTargets(tx *gorm.DB, gameID uint) ([]models.TargetAssignedData, error) {
	var players []models.Player
	if err := tx.Where("game_id = ?", gameID).Order("id ASC").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	ids := make([]uint, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}

	targets, err := Derange(ids)
	if err != nil {
		return nil, err
	}

	assignments := make([]models.TargetAssignedData, len(ids))
	for i, playerID := range ids {
		targetID := targets[i]
		if err := tx.Model(&models.Player{}).Where("id = ?", playerID).
			Update("target_id", targetID).Error; err != nil {
			return nil, fmt.Errorf("failed to persist target for player %d: %w", playerID, err)
		}
		assignments[i] = models.TargetAssignedData{PlayerID: playerID, TargetID: targetID}
	}

	return assignments, nil
}
