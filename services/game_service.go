// services/game_service.go
package services

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/AleksanderGPL/pao/models"
	"github.com/AleksanderGPL/pao/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameService owns the lobby/game state machine. The database is the single
// source of truth for every Game/Player mutation; events are published only
// after the corresponding row change has committed.
type GameService struct {
	DB     *gorm.DB
	Events *EventService
}

func NewGameService(db *gorm.DB, events *EventService) *GameService {
	return &GameService{DB: db, Events: events}
}

type createGameRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
}

// shootRequest arrives as JSON or, when a kill photo is attached, as a
// multipart form.
type shootRequest struct {
	TargetID uint `json:"targetId" form:"targetId"`
}

// PlayerView is the roster entry other players are allowed to see. Targets
// never appear here; each player only learns their own.
type PlayerView struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
	IsHost         bool   `json:"is_host"`
	IsAlive        bool   `json:"is_alive"`
	KillCount      int    `json:"kill_count"`
}

// lockForUpdate row-locks subsequent reads on dialects that support it. The
// sqlite backend used by the tests has no FOR UPDATE and serializes writers
// on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// CreateGame opens a new lobby with the caller as host.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	session := c.Locals("session").(*models.UserSession)

	var req createGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" || len(req.Name) > 256 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name must be 1-256 characters"})
	}
	if req.MaxPlayers < models.MinPlayers || req.MaxPlayers > models.MaxPlayers {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("maxPlayers must be between %d and %d", models.MinPlayers, models.MaxPlayers),
		})
	}

	code, err := s.generateUniqueCode()
	if err != nil {
		log.Printf("[Game] Failed to generate game code: %v", err)
		return apiError(c, err)
	}

	game := &models.Game{
		Code:       code,
		Name:       req.Name,
		Slug:       slug.Make(req.Name),
		MaxPlayers: req.MaxPlayers,
		Status:     models.GameStatusInactive,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return fmt.Errorf("failed to create game: %w", err)
		}

		host := &models.Player{
			GameID: game.ID,
			UserID: session.UserID,
			IsHost: true,
		}
		if err := tx.Create(host).Error; err != nil {
			return fmt.Errorf("failed to create host player: %w", err)
		}

		return nil
	})
	if err != nil {
		log.Printf("[Game] Create failed for user %d: %v", session.UserID, err)
		return apiError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"code": game.Code})
}

// joinGame adds the user to the lobby, or hands back their existing
// membership. joined reports whether a new player row was created.
func (s *GameService) joinGame(code string, userID uint) (*models.Player, *models.Game, bool, error) {
	var player models.Player
	var game models.Game
	joined := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the game row so two concurrent joins into the last free slot
		// cannot both pass the capacity check.
		err := lockForUpdate(tx).Where("upper(code) = upper(?)", code).First(&game).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up game: %w", err)
		}

		err = tx.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&player).Error
		if err == nil {
			return nil // idempotent re-join
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up membership: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Player{}).Where("game_id = ?", game.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count players: %w", err)
		}
		if err := CanJoin(&game, count); err != nil {
			return err
		}

		player = models.Player{GameID: game.ID, UserID: userID}
		if err := tx.Create(&player).Error; err != nil {
			return fmt.Errorf("failed to create player: %w", err)
		}
		joined = true

		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return &player, &game, joined, nil
}

// JoinGame adds the caller to an open lobby. Joining a game the caller is
// already in returns the existing membership instead of an error.
func (s *GameService) JoinGame(c *fiber.Ctx) error {
	session := c.Locals("session").(*models.UserSession)

	player, game, joined, err := s.joinGame(c.Params("code"), session.UserID)
	if err != nil {
		return apiError(c, err)
	}

	if joined {
		s.Events.Publish(game.Code, models.Event{
			Type: models.EventPlayerJoin,
			Data: models.PlayerJoinData{
				PlayerID:       player.ID,
				Name:           session.User.Name,
				ProfilePicture: session.User.ProfilePicture,
				IsHost:         false,
			},
		})
	}

	return c.JSON(fiber.Map{
		"code":     game.Code,
		"playerId": player.ID,
		"isHost":   player.IsHost,
	})
}

// startGame transitions the lobby to active and deals out targets. Host
// only, at least two players.
func (s *GameService) startGame(code string, userID uint) (*models.Game, []models.TargetAssignedData, error) {
	var game models.Game
	var assignments []models.TargetAssignedData

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).Where("upper(code) = upper(?)", code).First(&game).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up game: %w", err)
		}

		var actor models.Player
		err = tx.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&actor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return fmt.Errorf("failed to look up membership: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Player{}).Where("game_id = ?", game.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count players: %w", err)
		}
		if err := CanStart(&game, &actor, count); err != nil {
			return err
		}

		assignments, err = assignTargets(tx, game.ID)
		if err != nil {
			return err
		}

		// Conditional flip; the row lock already serializes us, but the
		// status guard keeps the forward-only invariant honest.
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ?", game.ID, models.GameStatusInactive).
			Update("status", models.GameStatusActive)
		if res.Error != nil {
			return fmt.Errorf("failed to activate game: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrGameNotInactive
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &game, assignments, nil
}

// StartGame is the HTTP face of startGame; it publishes the start and
// per-player target events once the transition has committed.
func (s *GameService) StartGame(c *fiber.Ctx) error {
	session := c.Locals("session").(*models.UserSession)

	game, assignments, err := s.startGame(c.Params("code"), session.UserID)
	if err != nil {
		return apiError(c, err)
	}

	s.Events.Publish(game.Code, models.Event{Type: models.EventStartGame})
	for _, a := range assignments {
		s.Events.Publish(game.Code, models.Event{
			Type: models.EventPlayerTargetAssigned,
			Data: a,
		})
	}

	log.Printf("[Game] %s started with %d players", game.Code, len(assignments))

	return c.JSON(fiber.Map{"status": models.GameStatusActive})
}

// killOutcome captures the effects of one successful elimination.
type killOutcome struct {
	NewTarget *uint
	Finished  bool
	WinnerID  uint
}

// applyKill validates and applies an elimination using player rows the
// caller read in the same transaction. The aliveness updates stay
// conditional even when the caller holds row locks, so a caller working
// from stale rows loses cleanly instead of double-killing.
func applyKill(tx *gorm.DB, game *models.Game, shooter, target *models.Player) (*killOutcome, error) {
	if err := CanShoot(game, shooter, target, target.ID); err != nil {
		return nil, err
	}

	// Single-writer-wins: of two concurrent shots at the same target,
	// exactly one sees RowsAffected == 1.
	res := tx.Model(&models.Player{}).
		Where("id = ? AND is_alive = ?", target.ID, true).
		Update("is_alive", false)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark target dead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTargetDead
	}

	// Re-read the victim: if they landed a kill of their own while this
	// request was in flight, their target has moved on.
	var victim models.Player
	if err := tx.First(&victim, target.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload victim: %w", err)
	}

	outcome := &killOutcome{}
	updates := map[string]any{"kill_count": gorm.Expr("kill_count + 1")}
	if inherited := InheritedTarget(&victim); inherited != nil {
		updates["target_id"] = *inherited
		outcome.NewTarget = inherited
	}

	res = tx.Model(&models.Player{}).
		Where("id = ? AND is_alive = ?", shooter.ID, true).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to re-link shooter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Shooter was eliminated while this shot was in flight; roll the
		// whole elimination back so the other kill stands alone.
		return nil, ErrShooterDead
	}

	var alive int64
	if err := tx.Model(&models.Player{}).
		Where("game_id = ? AND is_alive = ?", game.ID, true).Count(&alive).Error; err != nil {
		return nil, fmt.Errorf("failed to count alive players: %w", err)
	}

	if alive == 1 {
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ?", game.ID, models.GameStatusActive).
			Update("status", models.GameStatusFinished)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to finish game: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			outcome.Finished = true
			outcome.WinnerID = shooter.ID
		}
	}

	return outcome, nil
}

// shootTarget records an elimination for the user in one transaction. The
// shooter and target rows are locked in ascending id order before anything
// is mutated, so two mutual kills queue behind each other instead of
// deadlocking, and the loser revalidates against fresh rows and gets the
// documented conflict error.
func (s *GameService) shootTarget(code string, userID, targetID uint) (*models.Game, *models.Player, *killOutcome, error) {
	var game models.Game
	var shooter models.Player
	var outcome *killOutcome

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("upper(code) = upper(?)", code).First(&game).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up game: %w", err)
		}

		err = tx.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&shooter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return fmt.Errorf("failed to look up shooter: %w", err)
		}

		var target models.Player
		first, second := shooter.ID, targetID
		if first > second {
			first, second = second, first
		}
		for _, id := range []uint{first, second} {
			var row models.Player
			err := lockForUpdate(tx).Where("id = ? AND game_id = ?", id, game.ID).First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if id == shooter.ID {
					return ErrNotAMember
				}
				return ErrNotYourTarget
			}
			if err != nil {
				return fmt.Errorf("failed to lock player row: %w", err)
			}
			if row.ID == shooter.ID {
				shooter = row
			}
			if row.ID == targetID {
				target = row
			}
		}

		outcome, err = applyKill(tx, &game, &shooter, &target)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return &game, &shooter, outcome, nil
}

// Shoot records an elimination: the caller photographs their target and the
// target chain re-links around the victim. An optional multipart "photo" is
// stored out-of-band and never blocks or fails the kill.
func (s *GameService) Shoot(c *fiber.Ctx) error {
	session := c.Locals("session").(*models.UserSession)
	code := c.Params("code")

	var req shootRequest
	if err := c.BodyParser(&req); err != nil || req.TargetID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "targetId is required"})
	}

	// Read the kill photo up front; fasthttp reclaims request buffers once
	// the handler returns, so the bytes must be copied before the upload
	// goroutine is spawned.
	var photo []byte
	var photoType string
	if fh, err := c.FormFile("photo"); err == nil && fh.Size > 0 {
		f, err := fh.Open()
		if err == nil {
			photo, _ = io.ReadAll(f)
			photoType = fh.Header.Get("Content-Type")
			f.Close()
		}
	}

	game, shooter, outcome, err := s.shootTarget(code, session.UserID, req.TargetID)
	if err != nil {
		return apiError(c, err)
	}

	s.Events.Publish(game.Code, models.Event{
		Type: models.EventPlayerKill,
		Data: models.PlayerKillData{PlayerID: req.TargetID, KilledBy: shooter.ID},
	})

	if outcome.NewTarget != nil && !outcome.Finished {
		s.Events.Publish(game.Code, models.Event{
			Type: models.EventPlayerTargetAssigned,
			Data: models.TargetAssignedData{PlayerID: shooter.ID, TargetID: *outcome.NewTarget},
		})
	}

	if outcome.Finished {
		s.Events.Publish(game.Code, models.Event{
			Type: models.EventGameEnded,
			Data: models.GameEndedData{WinnerID: outcome.WinnerID},
		})
		log.Printf("[Game] %s finished, winner player %d", game.Code, outcome.WinnerID)
	}

	if len(photo) > 0 {
		go func() {
			if err := utils.UploadKillPhoto(game.Code, shooter.ID, photoType, photo); err != nil {
				log.Printf("[Game] Kill photo upload failed for game %s player %d: %v",
					game.Code, shooter.ID, err)
			}
		}()
	}

	return c.JSON(fiber.Map{
		"killed":   req.TargetID,
		"targetId": outcome.NewTarget,
		"finished": outcome.Finished,
	})
}

// GetGame returns the game, the public roster and the caller's own
// membership (the only place their target id is revealed). Clients use this
// to re-sync after missing realtime events.
func (s *GameService) GetGame(c *fiber.Ctx) error {
	session := c.Locals("session").(*models.UserSession)
	code := c.Params("code")

	var game models.Game
	err := s.DB.Preload("Players.User").
		Where("upper(code) = upper(?)", code).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apiError(c, ErrGameNotFound)
	}
	if err != nil {
		log.Printf("[Game] Failed to load game %s: %v", code, err)
		return apiError(c, err)
	}

	var me *models.Player
	roster := make([]PlayerView, 0, len(game.Players))
	for i := range game.Players {
		p := &game.Players[i]
		if p.UserID == session.UserID {
			me = p
		}
		roster = append(roster, PlayerView{
			ID:             p.ID,
			Name:           p.User.Name,
			ProfilePicture: p.User.ProfilePicture,
			IsHost:         p.IsHost,
			IsAlive:        p.IsAlive,
			KillCount:      p.KillCount,
		})
	}

	if me == nil {
		return apiError(c, ErrNotAMember)
	}

	return c.JSON(fiber.Map{
		"game": fiber.Map{
			"code":        game.Code,
			"name":        game.Name,
			"slug":        game.Slug,
			"max_players": game.MaxPlayers,
			"status":      game.Status,
		},
		"players": roster,
		"you": fiber.Map{
			"id":         me.ID,
			"is_host":    me.IsHost,
			"is_alive":   me.IsAlive,
			"kill_count": me.KillCount,
			"target_id":  me.TargetID,
		},
	})
}

// FindMembership resolves (code, user) to a player row. Used by the
// websocket endpoint to authenticate connections before registering them.
func (s *GameService) FindMembership(code string, userID uint) (*models.Game, *models.Player, error) {
	var game models.Game
	err := s.DB.Where("upper(code) = upper(?)", code).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrGameNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up game: %w", err)
	}

	var player models.Player
	err = s.DB.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotAMember
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	return &game, &player, nil
}

const maxCodeAttempts = 10

func (s *GameService) generateUniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := utils.GenerateGameCode()

		var count int64
		if err := s.DB.Model(&models.Game{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique game code")
}
