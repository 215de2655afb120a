package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AleksanderGPL/pao/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema. The
// pool is pinned to one connection; every pooled connection would otherwise
// get its own empty :memory: database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.UserSession{}, &models.Game{}, &models.Player{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, ProfilePicture: models.DefaultProfilePicture}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

func seedGame(t *testing.T, db *gorm.DB, code string, maxPlayers int, status models.GameStatus) *models.Game {
	t.Helper()
	g := &models.Game{
		Code:       code,
		Name:       "Test Game",
		Slug:       "test-game",
		MaxPlayers: maxPlayers,
		Status:     status,
	}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("failed to seed game: %v", err)
	}
	return g
}

func seedPlayer(t *testing.T, db *gorm.DB, gameID, userID uint, isHost bool) *models.Player {
	t.Helper()
	p := &models.Player{GameID: gameID, UserID: userID, IsHost: isHost, IsAlive: true}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}
	return p
}

func setTarget(t *testing.T, db *gorm.DB, playerID, targetID uint) {
	t.Helper()
	if err := db.Model(&models.Player{}).Where("id = ?", playerID).
		Update("target_id", targetID).Error; err != nil {
		t.Fatalf("failed to set target: %v", err)
	}
}

func reloadPlayer(t *testing.T, db *gorm.DB, id uint) *models.Player {
	t.Helper()
	var p models.Player
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("failed to reload player %d: %v", id, err)
	}
	return &p
}

func TestJoinGameIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	host := seedUser(t, db, "host")
	joiner := seedUser(t, db, "joiner")
	game := seedGame(t, db, "AAAA1111", 4, models.GameStatusInactive)
	seedPlayer(t, db, game.ID, host.ID, true)

	first, _, joined, err := svc.joinGame("aaaa1111", joiner.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if !joined {
		t.Error("first join did not create a membership")
	}

	second, _, joined, err := svc.joinGame("AAAA1111", joiner.ID)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if joined {
		t.Error("second join created a new membership")
	}
	if second.ID != first.ID {
		t.Errorf("second join returned player %d, want %d", second.ID, first.ID)
	}

	var count int64
	if err := db.Model(&models.Player{}).
		Where("game_id = ? AND user_id = ?", game.ID, joiner.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("found %d membership rows, want 1", count)
	}
}

func TestJoinGameRejectsFullLobby(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	host := seedUser(t, db, "host")
	member := seedUser(t, db, "member")
	late := seedUser(t, db, "late")
	game := seedGame(t, db, "BBBB2222", 2, models.GameStatusInactive)
	seedPlayer(t, db, game.ID, host.ID, true)
	seedPlayer(t, db, game.ID, member.ID, false)

	if _, _, _, err := svc.joinGame(game.Code, late.ID); !errors.Is(err, ErrGameFull) {
		t.Errorf("join into full lobby: got %v, want ErrGameFull", err)
	}

	// A member re-joining a full lobby still succeeds, full or not.
	player, _, joined, err := svc.joinGame(game.Code, member.ID)
	if err != nil {
		t.Fatalf("member re-join: %v", err)
	}
	if joined || player.UserID != member.ID {
		t.Error("member re-join did not return the existing membership")
	}
}

func TestJoinGameUnknownCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)
	u := seedUser(t, db, "alone")

	if _, _, _, err := svc.joinGame("ZZZZ9999", u.ID); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("join unknown game: got %v, want ErrGameNotFound", err)
	}
}

func TestJoinGameAfterStartRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	host := seedUser(t, db, "host")
	late := seedUser(t, db, "late")
	game := seedGame(t, db, "CCCC3333", 4, models.GameStatusActive)
	seedPlayer(t, db, game.ID, host.ID, true)

	if _, _, _, err := svc.joinGame(game.Code, late.ID); !errors.Is(err, ErrGameNotInactive) {
		t.Errorf("join after start: got %v, want ErrGameNotInactive", err)
	}
}

func TestStartGameDealsTargetsToEveryPlayer(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	game := seedGame(t, db, "DDDD4444", 10, models.GameStatusInactive)
	var hostUserID uint
	var playerIDs []uint
	for i := 0; i < 4; i++ {
		u := seedUser(t, db, fmt.Sprintf("player-%d", i))
		p := seedPlayer(t, db, game.ID, u.ID, i == 0)
		if i == 0 {
			hostUserID = u.ID
		}
		playerIDs = append(playerIDs, p.ID)
	}

	_, assignments, err := svc.startGame(game.Code, hostUserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(assignments) != len(playerIDs) {
		t.Fatalf("got %d assignments, want %d", len(assignments), len(playerIDs))
	}

	var stored models.Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.GameStatusActive {
		t.Errorf("game status = %s, want %s", stored.Status, models.GameStatusActive)
	}

	targets := make([]uint, 0, len(playerIDs))
	for _, id := range playerIDs {
		p := reloadPlayer(t, db, id)
		if p.TargetID == nil {
			t.Fatalf("player %d has no target after start", id)
		}
		targets = append(targets, *p.TargetID)
	}
	assertDerangement(t, playerIDs, targets)
}

func TestStartGameByNonHost(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	host := seedUser(t, db, "host")
	member := seedUser(t, db, "member")
	game := seedGame(t, db, "EEEE5555", 4, models.GameStatusInactive)
	seedPlayer(t, db, game.ID, host.ID, true)
	seedPlayer(t, db, game.ID, member.ID, false)

	if _, _, err := svc.startGame(game.Code, member.ID); !errors.Is(err, ErrNotHost) {
		t.Errorf("start by non-host: got %v, want ErrNotHost", err)
	}
}

func TestStartGameNeedsTwoPlayers(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	host := seedUser(t, db, "host")
	game := seedGame(t, db, "FFFF6666", 4, models.GameStatusInactive)
	seedPlayer(t, db, game.ID, host.ID, true)

	if _, _, err := svc.startGame(game.Code, host.ID); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("solo start: got %v, want ErrNotEnoughPlayers", err)
	}
}

func TestConcurrentShotsAtOneTargetExactlyOneLands(t *testing.T) {
	db := newTestDB(t)

	game := seedGame(t, db, "ABAB1212", 10, models.GameStatusActive)
	userA := seedUser(t, db, "a")
	userB := seedUser(t, db, "b")
	userT := seedUser(t, db, "t")
	a := seedPlayer(t, db, game.ID, userA.ID, true)
	b := seedPlayer(t, db, game.ID, userB.ID, false)
	target := seedPlayer(t, db, game.ID, userT.ID, false)

	// Not a dealable assignment, but exactly the state two racing shots
	// observe: both shooters believe the same player is their target.
	setTarget(t, db, a.ID, target.ID)
	setTarget(t, db, b.ID, target.ID)
	setTarget(t, db, target.ID, a.ID)

	// Both shooters read the target while it is still alive.
	staleTarget := reloadPlayer(t, db, target.ID)
	staleB := reloadPlayer(t, db, b.ID)

	// The first shot lands.
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := applyKill(tx, game, reloadPlayer(t, tx, a.ID), reloadPlayer(t, tx, target.ID))
		return err
	})
	if err != nil {
		t.Fatalf("winning shot: %v", err)
	}

	// The second arrives still holding the pre-kill rows; the advisory check
	// passes but the conditional kill finds no alive row to flip.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := applyKill(tx, game, staleB, staleTarget)
		return err
	})
	if !errors.Is(err, ErrTargetDead) {
		t.Fatalf("losing shot: got %v, want ErrTargetDead", err)
	}

	if reloadPlayer(t, db, target.ID).IsAlive {
		t.Error("target survived a landed shot")
	}
	if got := reloadPlayer(t, db, a.ID).KillCount; got != 1 {
		t.Errorf("winner kill count = %d, want 1", got)
	}
	loser := reloadPlayer(t, db, b.ID)
	if loser.KillCount != 0 || loser.TargetID == nil || *loser.TargetID != target.ID {
		t.Error("losing shooter was credited or re-linked")
	}
}

func TestMutualKillLoserGetsConflict(t *testing.T) {
	db := newTestDB(t)

	game := seedGame(t, db, "CDCD3434", 4, models.GameStatusActive)
	userA := seedUser(t, db, "a")
	userB := seedUser(t, db, "b")
	a := seedPlayer(t, db, game.ID, userA.ID, true)
	b := seedPlayer(t, db, game.ID, userB.ID, false)
	setTarget(t, db, a.ID, b.ID)
	setTarget(t, db, b.ID, a.ID)

	staleA := reloadPlayer(t, db, a.ID)
	staleB := reloadPlayer(t, db, b.ID)

	// A's kill commits first and ends the game.
	var outcome *killOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = applyKill(tx, game, reloadPlayer(t, tx, a.ID), reloadPlayer(t, tx, b.ID))
		return err
	})
	if err != nil {
		t.Fatalf("winning kill: %v", err)
	}
	if !outcome.Finished || outcome.WinnerID != a.ID {
		t.Errorf("outcome = %+v, want finished with winner %d", outcome, a.ID)
	}

	// B's kill was in flight with pre-kill reads. Its conditional kill would
	// land on the still-alive A, but the re-link finds B already dead and the
	// whole elimination rolls back with the documented conflict.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := applyKill(tx, game, staleB, staleA)
		return err
	})
	if !errors.Is(err, ErrShooterDead) {
		t.Fatalf("losing mutual kill: got %v, want ErrShooterDead", err)
	}

	if !reloadPlayer(t, db, a.ID).IsAlive {
		t.Error("winner was killed by the rolled-back shot")
	}
	var stored models.Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.GameStatusFinished {
		t.Errorf("game status = %s, want %s", stored.Status, models.GameStatusFinished)
	}
}

func TestShootFinishesGameWithLastSurvivor(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	game := seedGame(t, db, "EFEF5656", 4, models.GameStatusActive)
	userA := seedUser(t, db, "a")
	userB := seedUser(t, db, "b")
	a := seedPlayer(t, db, game.ID, userA.ID, true)
	b := seedPlayer(t, db, game.ID, userB.ID, false)
	setTarget(t, db, a.ID, b.ID)
	setTarget(t, db, b.ID, a.ID)

	_, shooter, outcome, err := svc.shootTarget("efef5656", userA.ID, b.ID)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if shooter.ID != a.ID {
		t.Errorf("shooter id = %d, want %d", shooter.ID, a.ID)
	}
	if !outcome.Finished || outcome.WinnerID != a.ID {
		t.Errorf("outcome = %+v, want finished with winner %d", outcome, a.ID)
	}

	if reloadPlayer(t, db, b.ID).IsAlive {
		t.Error("victim still alive")
	}
	var stored models.Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.GameStatusFinished {
		t.Errorf("game status = %s, want %s", stored.Status, models.GameStatusFinished)
	}

	// The loser's own shot after the fact hits the finished-game guard.
	if _, _, _, err := svc.shootTarget(game.Code, userB.ID, a.ID); !errors.Is(err, ErrGameNotActive) {
		t.Errorf("shot after game end: got %v, want ErrGameNotActive", err)
	}
}

func TestShootRejectsNonTargetVictim(t *testing.T) {
	db := newTestDB(t)
	svc := NewGameService(db, nil)

	game := seedGame(t, db, "ABCD7878", 4, models.GameStatusActive)
	userA := seedUser(t, db, "a")
	userB := seedUser(t, db, "b")
	userC := seedUser(t, db, "c")
	a := seedPlayer(t, db, game.ID, userA.ID, true)
	b := seedPlayer(t, db, game.ID, userB.ID, false)
	c := seedPlayer(t, db, game.ID, userC.ID, false)
	setTarget(t, db, a.ID, b.ID)
	setTarget(t, db, b.ID, c.ID)
	setTarget(t, db, c.ID, a.ID)

	if _, _, _, err := svc.shootTarget(game.Code, userA.ID, c.ID); !errors.Is(err, ErrNotYourTarget) {
		t.Errorf("shot past own target: got %v, want ErrNotYourTarget", err)
	}
	if !reloadPlayer(t, db, c.ID).IsAlive {
		t.Error("non-target was killed")
	}
}
