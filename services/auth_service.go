// services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/AleksanderGPL/pao/models"
	"github.com/AleksanderGPL/pao/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuthService handles user registration and session token issuance. There
// is no password flow; a user is just a display name behind an opaque
// bearer token, which is all the game needs.
type AuthService struct {
	DB *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{DB: db}
}

type registerRequest struct {
	Name string `json:"name"`
}

// Register creates a user and returns a fresh session token.
func (s *AuthService) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" || len(req.Name) > 256 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name must be 1-256 characters"})
	}

	user := &models.User{
		Name:           req.Name,
		ProfilePicture: models.DefaultProfilePicture,
	}

	var token string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		var err error
		token, err = s.generateUniqueToken(tx)
		if err != nil {
			return err
		}

		session := &models.UserSession{UserID: user.ID, SessionToken: token}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		return nil
	})
	if err != nil {
		log.Printf("[Auth] Registration failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sessionToken": token})
}

// ResolveToken maps a bearer token to its session, with the user preloaded.
func (s *AuthService) ResolveToken(token string) (*models.UserSession, error) {
	var session models.UserSession
	err := s.DB.Preload("User").Where("session_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return &session, nil
}

const maxTokenAttempts = 10

func (s *AuthService) generateUniqueToken(tx *gorm.DB) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token := utils.GenerateSessionToken()

		var count int64
		if err := tx.Model(&models.UserSession{}).
			Where("session_token = ?", token).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if count == 0 {
			return token, nil
		}
	}
	return "", errors.New("could not generate a unique session token")
}
